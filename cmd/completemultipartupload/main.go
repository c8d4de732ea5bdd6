package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/stefando/lfsS3/internal/completion"
	"github.com/stefando/lfsS3/internal/config"
	"github.com/stefando/lfsS3/internal/logging"
	"github.com/stefando/lfsS3/internal/objectstore"
)

var handler *completion.Handler

// init builds the completion handler. The bucket of each notification comes
// from the event itself.
func init() {
	cfg := config.Load()
	if err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Load AWS configuration
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	store := objectstore.NewS3Store(awsCfg, cfg.BucketName)
	handler = completion.NewHandler(store, completion.WithSuffix(cfg.CompletionSuffix))

	slog.Info("Completion handler initialized", "suffix", cfg.CompletionSuffix)
}

func main() {
	lambda.Start(handler.HandleS3Event)
}
