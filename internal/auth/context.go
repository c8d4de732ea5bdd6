package auth

import "context"

// contextKey is a private key type for values stored in a request context
type contextKey string

// usernameKey is the key under which the authenticated principal is stored
const usernameKey contextKey = "username"

// WithUsername adds the authenticated caller to the context.
// The edge calls this once per request after authentication.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// GetUsername retrieves the authenticated caller from the context.
// ok is false when no non-empty principal was attached.
func GetUsername(ctx context.Context) (string, bool) {
	val, ok := ctx.Value(usernameKey).(string)
	return val, ok && val != ""
}
