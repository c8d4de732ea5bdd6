package auth

import (
	"context"
	"fmt"
)

// Authenticator resolves an Authorization header to a principal name
type Authenticator struct {
	passwords PasswordValidator
	tokens    TokenVerifier
}

// NewAuthenticator accepts Basic credentials checked by passwords and, when
// tokens is non-nil, Bearer tokens.
func NewAuthenticator(passwords PasswordValidator, tokens TokenVerifier) *Authenticator {
	return &Authenticator{passwords: passwords, tokens: tokens}
}

// Authenticate returns the principal for header or an error wrapping ErrUnauthorized
func (a *Authenticator) Authenticate(ctx context.Context, header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, ErrMissingHeader)
	}

	if token, ok := stripBearerPrefix(header); ok {
		if a.tokens == nil {
			return "", fmt.Errorf("%w: bearer tokens not accepted", ErrUnauthorized)
		}
		username, err := a.tokens.VerifyToken(ctx, token)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return username, nil
	}

	username, password, err := ParseBasicAuth(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if err := a.passwords.Validate(ctx, username, password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return username, nil
}
