package main

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefando/lfsS3/internal/auth"
)

const methodArn = "arn:aws:execute-api:eu-west-1:123456789012:abcdef1234/prod/POST/objects/batch"

func basicHeader(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestAuthorize(t *testing.T) {
	a := auth.NewAuthenticator(auth.StaticUsers{"alice": "secret"}, nil)

	resp, err := authorize(context.Background(), a, events.APIGatewayCustomAuthorizerRequestTypeRequest{
		MethodArn: methodArn,
		Headers:   map[string]string{"authorization": basicHeader("alice", "secret")},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.PrincipalID)
	require.Len(t, resp.PolicyDocument.Statement, 1)
	assert.Equal(t, "Allow", resp.PolicyDocument.Statement[0].Effect)
	assert.Equal(t, []string{"arn:aws:execute-api:eu-west-1:123456789012:abcdef1234/prod/*/*"}, resp.PolicyDocument.Statement[0].Resource)
}

func TestAuthorizeRejects(t *testing.T) {
	a := auth.NewAuthenticator(auth.StaticUsers{"alice": "secret"}, nil)

	for name, headers := range map[string]map[string]string{
		"no header":      nil,
		"wrong password": {"Authorization": basicHeader("alice", "nope")},
		"bearer":         {"Authorization": "Bearer token"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := authorize(context.Background(), a, events.APIGatewayCustomAuthorizerRequestTypeRequest{
				MethodArn: methodArn,
				Headers:   headers,
			})
			require.Error(t, err)
			assert.Equal(t, "Unauthorized", err.Error())
		})
	}

	_, err := authorize(context.Background(), a, events.APIGatewayCustomAuthorizerRequestTypeRequest{
		MethodArn: "bogus",
		Headers:   map[string]string{"Authorization": basicHeader("alice", "secret")},
	})
	assert.EqualError(t, err, "Unauthorized")
}
