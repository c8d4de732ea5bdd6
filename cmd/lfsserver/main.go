package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stefando/lfsS3/internal/config"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "lfsserver",
		Short:         "Git LFS batch and locking server backed by S3",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(config.NewViper()))
	return root
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Git LFS API over HTTP",
		Long: `Serve the Git LFS batch and locking API.

Objects live in S3, or in any S3 compatible server when --s3-endpoint is set.
Locks live in DynamoDB when --table is set and in a local SQLite database otherwise.
Every flag can also be set through the environment variable named in its usage.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), config.FromViper(v))
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "address to listen on (LISTEN_ADDR)")
	flags.String("bucket", "", "object bucket (BUCKET_NAME)")
	flags.String("region", "", "AWS region (AWS_REGION)")
	flags.String("s3-endpoint", "", "S3 compatible endpoint host:port; AWS S3 when empty (S3_ENDPOINT)")
	flags.String("s3-access-key", "", "access key for --s3-endpoint (S3_ACCESS_KEY)")
	flags.String("s3-secret-key", "", "secret key for --s3-endpoint (S3_SECRET_KEY)")
	flags.Bool("s3-use-ssl", true, "use TLS towards --s3-endpoint (S3_USE_SSL)")
	flags.String("table", "", "DynamoDB lock table (TABLE_NAME)")
	flags.String("id-index", "id", "DynamoDB index on lock id (ID_INDEX_NAME)")
	flags.String("lock-db", "lfs-locks.db", "SQLite lock database used when --table is empty (LOCK_DB)")
	flags.String("users", "", "static credentials as name:password,... (LFS_USERS)")
	flags.String("webhook-token", "", "bearer token enabling POST /events/s3 bucket notifications (WEBHOOK_TOKEN)")
	flags.String("log-level", "info", "log level (LOG_LEVEL)")
	flags.String("log-format", "json", "log format: json, logfmt or text (LOG_FORMAT)")

	for key, flag := range map[string]string{
		config.KeyListenAddr:   "listen",
		config.KeyBucketName:   "bucket",
		config.KeyRegion:       "region",
		config.KeyS3Endpoint:   "s3-endpoint",
		config.KeyS3AccessKey:  "s3-access-key",
		config.KeyS3SecretKey:  "s3-secret-key",
		config.KeyS3UseSSL:     "s3-use-ssl",
		config.KeyTableName:    "table",
		config.KeyIDIndexName:  "id-index",
		config.KeyLockDB:       "lock-db",
		config.KeyUsers:        "users",
		config.KeyWebhookToken: "webhook-token",
		config.KeyLogLevel:     "log-level",
		config.KeyLogFormat:    "log-format",
	} {
		// BindPFlag only fails for a nil flag
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
