package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/stefando/lfsS3/internal/auth"
	"github.com/stefando/lfsS3/internal/config"
	"github.com/stefando/lfsS3/internal/logging"
)

// errUnauthorized is the exact error API Gateway maps to a 401
var errUnauthorized = errors.New("Unauthorized")

// newAuthenticator wires Basic auth against Cognito plus Cognito access tokens
func newAuthenticator() *auth.Authenticator {
	cfg := config.Load()
	if err := logging.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if err := cfg.Require(config.KeyUserPoolID, config.KeyUserPoolClientID); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	passwords := auth.NewCognitoValidator(awsCfg, cfg.UserPoolID, cfg.UserPoolClientID)

	// Bearer tokens are optional; a missing issuer document only disables them
	var tokens auth.TokenVerifier
	verifier, err := auth.NewBearerVerifier(ctx, auth.CognitoIssuer(awsCfg.Region, cfg.UserPoolID), cfg.UserPoolClientID)
	if err != nil {
		slog.Warn("Bearer token authentication disabled", "error", err)
	} else {
		tokens = verifier
	}

	return auth.NewAuthenticator(passwords, tokens)
}

// authorizationHeader finds the Authorization header regardless of case
func authorizationHeader(headers map[string]string) string {
	for key, value := range headers {
		if strings.EqualFold(key, "Authorization") {
			return value
		}
	}
	return ""
}

// authorize validates the request credentials and returns an Allow policy for
// the whole API stage with the username as principal
func authorize(ctx context.Context, a *auth.Authenticator, event events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	username, err := a.Authenticate(ctx, authorizationHeader(event.Headers))
	if err != nil {
		slog.InfoContext(ctx, "Rejected request", "methodArn", event.MethodArn, "error", err)
		return events.APIGatewayCustomAuthorizerResponse{}, errUnauthorized
	}

	policy, err := auth.AllowPolicy(username, event.MethodArn)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build policy", "methodArn", event.MethodArn, "error", err)
		return events.APIGatewayCustomAuthorizerResponse{}, errUnauthorized
	}

	slog.InfoContext(ctx, "Authorized request", "user", username)
	return policy, nil
}

func main() {
	authenticator := newAuthenticator()
	lambda.Start(func(ctx context.Context, event events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
		return authorize(ctx, authenticator, event)
	})
}
