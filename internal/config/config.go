// Package config reads process configuration from the environment once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stefando/lfsS3/internal/lfs"
	"github.com/stefando/lfsS3/internal/objectstore"
)

// Environment variable names
const (
	KeyBucketName            = "BUCKET_NAME"
	KeyTableName             = "TABLE_NAME"
	KeyIDIndexName           = "ID_INDEX_NAME"
	KeyUserPoolID            = "USER_POOL_ID"
	KeyUserPoolClientID      = "USER_POOL_CLIENT_ID"
	KeyRegion                = "AWS_REGION"
	KeySigningRoleARN        = "SIGNING_ROLE_ARN"
	KeySigningSessionSeconds = "SIGNING_SESSION_SECONDS"
	KeySigningAccessKeyID    = "SIGNING_ACCESS_KEY_ID"
	KeySigningSecretKey      = "SIGNING_SECRET_ACCESS_KEY"
	KeyLogLevel              = "LOG_LEVEL"
	KeyLogFormat             = "LOG_FORMAT"
	KeyCompletionSuffix      = "COMPLETION_SUFFIX"

	// standalone server only
	KeyListenAddr   = "LISTEN_ADDR"
	KeyS3Endpoint   = "S3_ENDPOINT"
	KeyS3AccessKey  = "S3_ACCESS_KEY"
	KeyS3SecretKey  = "S3_SECRET_KEY"
	KeyS3UseSSL     = "S3_USE_SSL"
	KeyLockDB       = "LOCK_DB"
	KeyUsers        = "LFS_USERS"
	KeyWebhookToken = "WEBHOOK_TOKEN"
)

// Config holds the settings shared by the Lambda handlers and the standalone server
type Config struct {
	BucketName       string
	TableName        string
	IDIndexName      string
	UserPoolID       string
	UserPoolClientID string
	Region           string
	SigningRoleARN   string
	LogLevel         string
	LogFormat        string
	CompletionSuffix string

	// Presigning identity; see objectstore.SigningConfig
	SigningSessionSeconds int
	SigningAccessKeyID    string
	SigningSecretKey      string

	ListenAddr  string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	LockDB      string
	Users       string

	// WebhookToken enables POST /events/s3 for S3 compatible servers that
	// deliver bucket notifications over HTTP
	WebhookToken string
}

// NewViper returns a viper instance bound to the environment with defaults applied.
// Callers may bind flags to the same keys before calling FromViper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyIDIndexName, "id")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyCompletionSuffix, lfs.DefaultCompletionSuffix)
	v.SetDefault(KeyListenAddr, ":8080")
	v.SetDefault(KeyS3UseSSL, true)
	v.SetDefault(KeySigningSessionSeconds, int(objectstore.DefaultSigningSessionDuration/time.Second))

	for _, key := range []string{
		KeyBucketName, KeyTableName, KeyIDIndexName, KeyUserPoolID, KeyUserPoolClientID,
		KeyRegion, KeySigningRoleARN, KeySigningSessionSeconds, KeySigningAccessKeyID, KeySigningSecretKey,
		KeyLogLevel, KeyLogFormat, KeyCompletionSuffix,
		KeyListenAddr, KeyS3Endpoint, KeyS3AccessKey, KeyS3SecretKey, KeyS3UseSSL, KeyLockDB, KeyUsers,
		KeyWebhookToken,
	} {
		// BindEnv only fails without a key
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the configuration from the environment
func Load() *Config {
	return FromViper(NewViper())
}

// FromViper builds a Config from v
func FromViper(v *viper.Viper) *Config {
	return &Config{
		BucketName:       v.GetString(KeyBucketName),
		TableName:        v.GetString(KeyTableName),
		IDIndexName:      v.GetString(KeyIDIndexName),
		UserPoolID:       v.GetString(KeyUserPoolID),
		UserPoolClientID: v.GetString(KeyUserPoolClientID),
		Region:           v.GetString(KeyRegion),
		SigningRoleARN:   v.GetString(KeySigningRoleARN),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
		CompletionSuffix: v.GetString(KeyCompletionSuffix),

		SigningSessionSeconds: v.GetInt(KeySigningSessionSeconds),
		SigningAccessKeyID:    v.GetString(KeySigningAccessKeyID),
		SigningSecretKey:      v.GetString(KeySigningSecretKey),

		ListenAddr:   v.GetString(KeyListenAddr),
		S3Endpoint:   v.GetString(KeyS3Endpoint),
		S3AccessKey:  v.GetString(KeyS3AccessKey),
		S3SecretKey:  v.GetString(KeyS3SecretKey),
		S3UseSSL:     v.GetBool(KeyS3UseSSL),
		LockDB:       v.GetString(KeyLockDB),
		Users:        v.GetString(KeyUsers),
		WebhookToken: v.GetString(KeyWebhookToken),
	}
}

// Signing returns the identity presigned URLs are signed with. The session
// length is clamped to the range STS accepts.
func (c *Config) Signing() objectstore.SigningConfig {
	return objectstore.SigningConfig{
		AccessKeyID:     c.SigningAccessKeyID,
		SecretAccessKey: c.SigningSecretKey,
		RoleARN:         c.SigningRoleARN,
		SessionDuration: objectstore.ClampSessionDuration(time.Duration(c.SigningSessionSeconds) * time.Second),
	}
}

// Require returns an error naming every listed environment variable that is unset
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		KeyBucketName:       c.BucketName,
		KeyTableName:        c.TableName,
		KeyIDIndexName:      c.IDIndexName,
		KeyUserPoolID:       c.UserPoolID,
		KeyUserPoolClientID: c.UserPoolClientID,
		KeyRegion:           c.Region,
		KeySigningRoleARN:   c.SigningRoleARN,
		KeyS3Endpoint:       c.S3Endpoint,
		KeyLockDB:           c.LockDB,
		KeyUsers:            c.Users,
	}

	var missing []string
	for _, key := range keys {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("environment variable not set: %s", strings.Join(missing, ", "))
	}
	return nil
}
