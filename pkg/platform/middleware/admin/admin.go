// Package admin guards operator-only routes with a shared token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"agegate/pkg/platform/httputil"
	"agegate/pkg/requestcontext"
)

// HeaderName carries the operator token.
const HeaderName = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expectedToken. An empty expectedToken rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderName)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"lane_id", requestcontext.LaneID(ctx),
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: "admin token required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
