package auth

import (
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// InvokeResource widens a method ARN
// (arn:aws:execute-api:region:account:apiId/stage/METHOD/path) to every
// method and path of the same API stage, so the cached policy covers all
// LFS endpoints.
func InvokeResource(methodArn string) (string, error) {
	sections := strings.Split(methodArn, ":")
	if len(sections) < 6 {
		return "", fmt.Errorf("invalid method ARN %q", methodArn)
	}
	stageAndAPI := strings.Split(sections[5], "/")
	if len(stageAndAPI) < 2 {
		return "", fmt.Errorf("invalid method ARN %q", methodArn)
	}

	// region, accountId, restapiId, stage
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s/*/*",
		sections[3], sections[4], stageAndAPI[0], stageAndAPI[1]), nil
}

// AllowPolicy creates the authorizer response granting principal access to the API stage
func AllowPolicy(principal, methodArn string) (events.APIGatewayCustomAuthorizerResponse, error) {
	resource, err := InvokeResource(methodArn)
	if err != nil {
		return events.APIGatewayCustomAuthorizerResponse{}, err
	}

	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principal,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   "Allow",
				Resource: []string{resource},
			}},
		},
	}, nil
}
