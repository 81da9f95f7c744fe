package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/internal/estimation"
	"agegate/pkg/platform/circuit"
	"agegate/pkg/platform/sentinel"
)

func newSidecar(t *testing.T, bracket int, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/faces", func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"faces": []map[string]int{{"x": 1, "y": 2, "width": 30, "height": 40}},
		})
	})
	mux.HandleFunc("POST /v1/age", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Face faceDTO `json:"face"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Face.Width != 30 {
			http.Error(w, "bad face", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"bracket": bracket})
	})
	var seq atomic.Uint64
	mux.HandleFunc("GET /v1/frame", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"seq": seq.Add(1), "width": 640, "height": 480, "data": []byte{1, 2, 3},
		})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteEstimator_DetectAndClassify(t *testing.T) {
	srv := newSidecar(t, 6, nil)
	est, err := NewRemoteEstimator(srv.URL, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, est.HealthCheck(ctx))

	faces, err := est.DetectFaces(ctx, estimation.Frame{Data: []byte{9}})
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, estimation.FaceRegion{X: 1, Y: 2, Width: 30, Height: 40}, faces[0])

	b, err := est.ClassifyAge(ctx, estimation.Frame{Data: []byte{9}}, faces[0])
	require.NoError(t, err)
	assert.Equal(t, estimation.AgeBracket(6), b)
}

func TestRemoteEstimator_OpensCircuitOnRepeatedFailures(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := newSidecar(t, 4, &fail)
	est, err := NewRemoteEstimator(srv.URL, time.Second,
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = est.DetectFaces(ctx, estimation.Frame{})
	require.Error(t, err)
	_, err = est.DetectFaces(ctx, estimation.Frame{})
	require.Error(t, err)

	fail.Store(false)
	_, err = est.DetectFaces(ctx, estimation.Frame{})
	assert.ErrorIs(t, err, sentinel.ErrUnavailable, "open circuit short-circuits the call")
}

func TestNewRemoteEstimator_RequiresURL(t *testing.T) {
	_, err := NewRemoteEstimator("", time.Second)
	assert.Error(t, err)
}

func TestHTTPFrameSource_ServesEachFrameOnce(t *testing.T) {
	srv := newSidecar(t, 4, nil)
	src := NewHTTPFrameSource(srv.URL, 5*time.Millisecond, time.Second, nil)

	require.NoError(t, src.Open(context.Background()))
	first, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, []byte{1, 2, 3}, first.Data)

	_, ok = src.Next()
	assert.False(t, ok, "same frame is not served twice")

	assert.Eventually(t, func() bool {
		f, ok := src.Next()
		return ok && f.Seq > first.Seq
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, src.Close())
	_, ok = src.Next()
	assert.False(t, ok)
}

func TestHTTPFrameSource_OpenFailsWhenCameraUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	src := NewHTTPFrameSource(srv.URL, time.Millisecond, time.Second, nil)
	assert.Error(t, src.Open(context.Background()))
	assert.NoError(t, src.Close())
}

func TestRemoteEstimator_CallerCancellationIsNotAFailure(t *testing.T) {
	srv := newSidecar(t, 4, nil)
	est, err := NewRemoteEstimator(srv.URL, time.Second,
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = est.DetectFaces(ctx, estimation.Frame{})
	require.ErrorIs(t, err, context.Canceled)

	faces, err := est.DetectFaces(context.Background(), estimation.Frame{})
	require.NoError(t, err, "a stopped sampler does not open the circuit")
	assert.Len(t, faces, 1)
}

func TestHTTPFrameSource_SecondOpenIsRejected(t *testing.T) {
	srv := newSidecar(t, 4, nil)
	src := NewHTTPFrameSource(srv.URL, 5*time.Millisecond, time.Second, nil)
	t.Cleanup(func() { _ = src.Close() })

	require.NoError(t, src.Open(context.Background()))
	err := src.Open(context.Background())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	require.NoError(t, src.Close())
	assert.NoError(t, src.Open(context.Background()), "camera can be reopened once released")
}
