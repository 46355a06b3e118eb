// Package admin guards operator-only routes, such as those that sign with
// the server's identity, behind a shared token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/httputil"
	"passage/pkg/requestcontext"
)

// HeaderToken carries the operator token.
const HeaderToken = "X-Admin-Token"

// RequireAdminToken rejects requests whose token does not match. An empty
// expected token disables the check.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expectedToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderToken)
			// constant-time comparison
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
