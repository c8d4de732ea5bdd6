package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/stefando/lfsS3/internal/api"
	"github.com/stefando/lfsS3/internal/config"
	"github.com/stefando/lfsS3/internal/locks"
	"github.com/stefando/lfsS3/internal/lockstore"
	"github.com/stefando/lfsS3/internal/logging"
)

// Global handler built once per Lambda container
var handler func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// init loads configuration and builds the lock manager
func init() {
	cfg := config.Load()
	if err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if err := cfg.Require(config.KeyTableName); err != nil {
		log.Fatal(err)
	}

	// Load AWS configuration
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	store := lockstore.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.TableName, cfg.IDIndexName)
	handler = api.LambdaHandler(api.NewRouter(api.Config{Locks: locks.NewManager(store)}))

	slog.Info("Locks handler initialized", "table", cfg.TableName, "idIndex", cfg.IDIndexName)
}

func main() {
	lambda.Start(handler)
}
