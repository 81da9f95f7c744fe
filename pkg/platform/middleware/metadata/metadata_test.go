package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/pkg/requestcontext"
)

func TestClientMetadata(t *testing.T) {
	var (
		gotLane     string
		gotReqID    string
		gotIP       string
		gotTerminal requestcontext.Terminal
	)
	h := ClientMetadata("lane-default")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLane = requestcontext.LaneID(r.Context())
		gotReqID = requestcontext.RequestID(r.Context())
		gotIP = requestcontext.ClientIP(r.Context())
		gotTerminal = requestcontext.TerminalInfo(r.Context())
	}))

	t.Run("falls back to default lane and generates request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.7:51234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, "lane-default", gotLane)
		require.NotEmpty(t, gotReqID)
		assert.Equal(t, gotReqID, rr.Header().Get(HeaderRequestID))
		assert.Equal(t, "10.0.0.7", gotIP)
		assert.Empty(t, gotTerminal.Name)
	})

	t.Run("uses lane and request id headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderLaneID, "lane-4")
		req.Header.Set(HeaderRequestID, "req-123")
		req.Header.Set("X-Forwarded-For", "192.168.1.20, 10.0.0.1")
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "lane-4", gotLane)
		assert.Equal(t, "req-123", gotReqID)
		assert.Equal(t, "192.168.1.20", gotIP)
		assert.Equal(t, "Chrome", gotTerminal.Name)
		assert.Contains(t, gotTerminal.OS, "Linux")
	})
}
