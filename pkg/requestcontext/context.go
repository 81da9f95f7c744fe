// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the verification state machine read
// them without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	lane := requestcontext.LaneID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	laneIDKey      struct{}
	clientIPKey    struct{}
	terminalKey    struct{}
)

// Terminal describes the kiosk software that issued the request, derived from
// its User-Agent.
type Terminal struct {
	Name      string
	Version   string
	OS        string
	UserAgent string
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// LaneID retrieves the checkout lane that issued the request.
func LaneID(ctx context.Context) string {
	if lane, ok := ctx.Value(laneIDKey{}).(string); ok {
		return lane
	}
	return ""
}

// WithLaneID injects a checkout lane identifier into the context.
func WithLaneID(ctx context.Context, lane string) context.Context {
	return context.WithValue(ctx, laneIDKey{}, lane)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// TerminalInfo retrieves the terminal description from the context.
func TerminalInfo(ctx context.Context) Terminal {
	if t, ok := ctx.Value(terminalKey{}).(Terminal); ok {
		return t
	}
	return Terminal{}
}

// WithClientMetadata injects client IP and terminal description into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP string, terminal Terminal) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, terminalKey{}, terminal)
	return ctx
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like the sampler loop and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := Time(ctx); ok {
		return t
	}
	return time.Now()
}

// Time reports the request-scoped time, if the middleware set one.
func Time(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(requestTimeKey{}).(time.Time)
	return t, ok
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
