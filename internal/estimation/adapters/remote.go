package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"agegate/internal/estimation"
	"agegate/pkg/platform/circuit"
	"agegate/pkg/platform/sentinel"
)

var (
	errCircuitOpen = fmt.Errorf("estimator circuit open: %w", sentinel.ErrUnavailable)
	errCameraBusy  = fmt.Errorf("camera already open: %w", sentinel.ErrUnavailable)
)

// RemoteEstimator calls an inference sidecar over HTTP.
//
//	POST {base}/v1/faces     {"frame": b64}                 -> {"faces": [...]}
//	POST {base}/v1/age       {"frame": b64, "face": {...}}  -> {"bracket": n}
type RemoteEstimator struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

type RemoteOption func(*RemoteEstimator)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteEstimator) {
		if c != nil {
			r.httpClient = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) RemoteOption {
	return func(r *RemoteEstimator) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithRemoteLogger(logger *slog.Logger) RemoteOption {
	return func(r *RemoteEstimator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRemoteEstimator creates a client for baseURL with a per-call timeout.
func NewRemoteEstimator(baseURL string, timeout time.Duration, opts ...RemoteOption) (*RemoteEstimator, error) {
	if baseURL == "" {
		return nil, errors.New("estimator base URL is required")
	}
	r := &RemoteEstimator{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuit.New("age-estimator", circuit.WithFailureThreshold(5), circuit.WithCooldown(2*time.Second)),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type faceDTO struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r *RemoteEstimator) DetectFaces(ctx context.Context, frame estimation.Frame) ([]estimation.FaceRegion, error) {
	var resp struct {
		Faces []faceDTO `json:"faces"`
	}
	body := map[string]any{"frame": base64.StdEncoding.EncodeToString(frame.Data)}
	if err := r.post(ctx, "/v1/faces", body, &resp); err != nil {
		return nil, err
	}
	faces := make([]estimation.FaceRegion, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		faces = append(faces, estimation.FaceRegion(f))
	}
	return faces, nil
}

func (r *RemoteEstimator) ClassifyAge(ctx context.Context, frame estimation.Frame, face estimation.FaceRegion) (estimation.AgeBracket, error) {
	var resp struct {
		Bracket *int `json:"bracket"`
	}
	body := map[string]any{
		"frame": base64.StdEncoding.EncodeToString(frame.Data),
		"face":  faceDTO(face),
	}
	if err := r.post(ctx, "/v1/age", body, &resp); err != nil {
		return 0, err
	}
	if resp.Bracket == nil {
		return 0, errors.New("estimator response missing bracket")
	}
	return estimation.AgeBracket(*resp.Bracket), nil
}

// HealthCheck verifies the sidecar answers.
func (r *RemoteEstimator) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("estimator health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("estimator health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func (r *RemoteEstimator) post(ctx context.Context, path string, in, out any) error {
	if !r.breaker.Allow() {
		return errCircuitOpen
	}
	err := r.do(ctx, path, in, out)
	if err != nil && ctx.Err() != nil {
		// stopped by the caller, says nothing about the estimator
		r.breaker.Release()
		return err
	}
	if err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "estimator circuit opened", "error", err)
		}
		return err
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "estimator circuit closed")
	}
	return nil
}

func (r *RemoteEstimator) do(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal estimator request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create estimator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("estimator request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("estimator %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode estimator response: %w", err)
	}
	return nil
}

// HTTPFrameSource pulls frames from the camera sidecar in the background and
// serves the newest unseen one from Next without blocking.
//
//	GET {base}/v1/frame -> {"seq": n, "width": w, "height": h, "data": b64}
type HTTPFrameSource struct {
	baseURL    string
	interval   time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	latest *estimation.Frame
	unread bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHTTPFrameSource(baseURL string, interval, timeout time.Duration, logger *slog.Logger) *HTTPFrameSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPFrameSource{
		baseURL:    baseURL,
		interval:   interval,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Open fetches one frame synchronously to prove the camera is reachable,
// then starts the background poller.
func (s *HTTPFrameSource) Open(ctx context.Context) error {
	s.mu.Lock()
	busy := s.cancel != nil
	s.mu.Unlock()
	if busy {
		return errCameraBusy
	}
	frame, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return errCameraBusy
	}
	s.latest = &frame
	s.unread = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.poll(pollCtx, done)
	return nil
}

func (s *HTTPFrameSource) Next() (estimation.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil || !s.unread {
		return estimation.Frame{}, false
	}
	s.unread = false
	return *s.latest, true
}

func (s *HTTPFrameSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	s.mu.Lock()
	s.latest, s.unread = nil, false
	s.mu.Unlock()
	return nil
}

func (s *HTTPFrameSource) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := s.fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.DebugContext(ctx, "frame fetch failed", "error", err)
				}
				continue
			}
			s.mu.Lock()
			if s.latest == nil || frame.Seq != s.latest.Seq {
				s.latest = &frame
				s.unread = true
			}
			s.mu.Unlock()
		}
	}
}

func (s *HTTPFrameSource) fetch(ctx context.Context) (estimation.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/frame", nil)
	if err != nil {
		return estimation.Frame{}, fmt.Errorf("create frame request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return estimation.Frame{}, fmt.Errorf("fetch frame: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return estimation.Frame{}, fmt.Errorf("fetch frame failed with status %d", resp.StatusCode)
	}
	var dto struct {
		Seq    uint64 `json:"seq"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Data   []byte `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return estimation.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return estimation.Frame{
		Seq:        dto.Seq,
		Width:      dto.Width,
		Height:     dto.Height,
		Data:       dto.Data,
		CapturedAt: time.Now(),
	}, nil
}
