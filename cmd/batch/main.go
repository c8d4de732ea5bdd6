package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/stefando/lfsS3/internal/api"
	"github.com/stefando/lfsS3/internal/batch"
	"github.com/stefando/lfsS3/internal/config"
	"github.com/stefando/lfsS3/internal/logging"
	"github.com/stefando/lfsS3/internal/objectstore"
)

// Global handler built once per Lambda container
var handler func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// init loads configuration and builds the batch engine
func init() {
	cfg := config.Load()
	if err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if err := cfg.Require(config.KeyBucketName); err != nil {
		log.Fatal(err)
	}

	// Load AWS configuration
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	// Sign with dedicated long-term keys or a role when configured. URLs signed
	// with session credentials expire when the session does.
	var opts []objectstore.S3Option
	if signing := cfg.Signing(); signing.Enabled() {
		opts = append(opts, objectstore.WithSigningCredentials(objectstore.NewSigningCredentials(awsCfg, signing)))
	}
	store := objectstore.NewS3Store(awsCfg, cfg.BucketName, opts...)

	engine := batch.NewEngine(store, batch.WithCompletionSuffix(cfg.CompletionSuffix))
	handler = api.LambdaHandler(api.NewRouter(api.Config{Engine: engine}))

	slog.Info("Batch handler initialized", "bucket", cfg.BucketName, "signingRole", cfg.SigningRoleARN, "signingKey", cfg.SigningAccessKeyID != "")
}

func main() {
	lambda.Start(handler)
}
