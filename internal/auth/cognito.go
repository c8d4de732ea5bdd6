package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the Cognito client used for password checks
type CognitoAPI interface {
	AdminInitiateAuth(ctx context.Context, params *cognitoidentityprovider.AdminInitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminInitiateAuthOutput, error)
}

// CognitoValidator checks Basic auth credentials against a Cognito user pool
type CognitoValidator struct {
	client     CognitoAPI
	userPoolID string
	clientID   string
}

// NewCognitoValidator creates a validator for the given pool and app client
func NewCognitoValidator(cfg aws.Config, userPoolID, clientID string) *CognitoValidator {
	return NewCognitoValidatorWithClient(cognitoidentityprovider.NewFromConfig(cfg), userPoolID, clientID)
}

// NewCognitoValidatorWithClient creates a validator around an existing client
func NewCognitoValidatorWithClient(client CognitoAPI, userPoolID, clientID string) *CognitoValidator {
	return &CognitoValidator{
		client:     client,
		userPoolID: userPoolID,
		clientID:   clientID,
	}
}

// Validate implements PasswordValidator using the ADMIN_NO_SRP_AUTH flow.
// Any Cognito failure, including challenges, counts as invalid credentials.
func (v *CognitoValidator) Validate(ctx context.Context, username, password string) error {
	slog.DebugContext(ctx, "validating user credentials", "user", username)

	result, err := v.client.AdminInitiateAuth(ctx, &cognitoidentityprovider.AdminInitiateAuthInput{
		AuthFlow: types.AuthFlowTypeAdminNoSrpAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
		ClientId:   aws.String(v.clientID),
		UserPoolId: aws.String(v.userPoolID),
	})
	if err != nil {
		slog.InfoContext(ctx, "user failed validation", "user", username, "error", err)
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if result.AuthenticationResult == nil {
		slog.InfoContext(ctx, "user failed validation: no authentication result", "user", username, "challenge", result.ChallengeName)
		return ErrInvalidCredential
	}

	slog.DebugContext(ctx, "user credentials validated", "user", username)
	return nil
}
