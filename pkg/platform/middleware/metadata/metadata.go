package metadata

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"agegate/pkg/requestcontext"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderLaneID    = "X-Lane-ID"
)

// ClientMetadata extracts request ID, lane, client IP and terminal description
// from the request and adds them to the context for handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(defaultLane string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			lane := strings.TrimSpace(r.Header.Get(HeaderLaneID))
			if lane == "" {
				lane = defaultLane
			}

			ctx := r.Context()
			ctx = requestcontext.WithRequestID(ctx, requestID)
			ctx = requestcontext.WithLaneID(ctx, lane)
			ctx = requestcontext.WithClientMetadata(ctx, ClientIPFromRequest(r), ParseTerminal(r.Header.Get("User-Agent")))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseTerminal describes the kiosk front-end from its User-Agent string.
func ParseTerminal(userAgent string) requestcontext.Terminal {
	if userAgent == "" {
		return requestcontext.Terminal{}
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	return requestcontext.Terminal{
		Name:      name,
		Version:   version,
		OS:        ua.OS(),
		UserAgent: userAgent,
	}
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port", IPv6 is "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
