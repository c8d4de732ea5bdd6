// Package auth resolves caller identity for the LFS endpoints: HTTP Basic
// credentials checked against Cognito or a static list, Cognito bearer
// tokens, and the per-request identity context consumed by the lock manager.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Authentication errors
var (
	ErrUnauthorized      = errors.New("Unauthorized")
	ErrMissingHeader     = errors.New("missing authorization header")
	ErrMalformedHeader   = errors.New("malformed authorization header")
	ErrInvalidCredential = errors.New("invalid username or password")
)

const (
	basicPrefix  = "basic "
	bearerPrefix = "bearer "
)

// ParseBasicAuth decodes an "Authorization: Basic <base64(user:pass)>" value.
// The password may itself contain colons.
func ParseBasicAuth(header string) (username, password string, err error) {
	if len(header) < len(basicPrefix) || !strings.EqualFold(header[:len(basicPrefix)], basicPrefix) {
		return "", "", ErrMalformedHeader
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(basicPrefix):]))
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok || username == "" {
		return "", "", ErrMalformedHeader
	}
	return username, password, nil
}

// stripBearerPrefix returns the token of a case-insensitive "Bearer <token>" header
func stripBearerPrefix(header string) (string, bool) {
	if len(header) > len(bearerPrefix) && strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):]), true
	}
	return "", false
}

// PasswordValidator checks a username/password pair
type PasswordValidator interface {
	Validate(ctx context.Context, username, password string) error
}

// StaticUsers validates against a fixed username -> password table
type StaticUsers map[string]string

// ParseStaticUsers parses "name:password,name2:password2"
func ParseStaticUsers(spec string) (StaticUsers, error) {
	users := StaticUsers{}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid user entry %q: expected name:password", entry)
		}
		users[name] = password
	}
	return users, nil
}

// Validate implements PasswordValidator
func (u StaticUsers) Validate(_ context.Context, username, password string) error {
	expected, ok := u[username]
	if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(password)) != 1 {
		return ErrInvalidCredential
	}
	return nil
}
