package auth

import (
	"log/slog"
	"net/http"

	"github.com/stefando/lfsS3/internal/lfs"
)

// Middleware authenticates every request and stores the principal in the
// request context. Failures get a 401 with a Basic challenge so git prompts
// for credentials.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				slog.InfoContext(r.Context(), "authentication failed", "error", err)
				w.Header().Set("LFS-Authenticate", `Basic realm="Git LFS"`)
				w.Header().Set("WWW-Authenticate", `Basic realm="Git LFS"`)
				lfs.ErrUnauthorized.Write(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}
