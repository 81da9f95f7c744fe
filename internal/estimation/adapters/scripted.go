package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"agegate/internal/estimation"
)

var errNoFaceInFrame = errors.New("frame has no face")

// NoFace marks a scripted frame without a visible face.
const NoFace = -1

// ScriptedCamera is a deterministic frame source and estimator for demos and
// tests. Each frame plays the next scripted bracket; the last entry repeats.
// The bracket travels inside the frame so the estimator stays stateless.
type ScriptedCamera struct {
	mu      sync.Mutex
	script  []int
	pos     int
	seq     uint64
	open    bool
	openErr error
	// Gaps makes every Nth poll return no frame (0 disables).
	gaps int
	now  func() time.Time
}

// NewScriptedCamera plays script; an empty script shows no face.
func NewScriptedCamera(script ...int) *ScriptedCamera {
	c := &ScriptedCamera{now: time.Now}
	c.SetScript(script...)
	return c
}

// SetScript replaces the script and restarts it. Safe while the camera runs.
func (c *ScriptedCamera) SetScript(script ...int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(script) == 0 {
		script = []int{NoFace}
	}
	c.script = append([]int(nil), script...)
	c.pos = 0
}

// FailOpen makes the next Open calls fail with err (nil restores).
func (c *ScriptedCamera) FailOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openErr = err
}

// DropEvery makes every nth poll miss its frame.
func (c *ScriptedCamera) DropEvery(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gaps = n
}

// IsOpen reports whether the device is currently held.
func (c *ScriptedCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *ScriptedCamera) Open(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return c.openErr
	}
	c.open = true
	c.pos = 0
	return nil
}

func (c *ScriptedCamera) Next() (estimation.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return estimation.Frame{}, false
	}
	c.seq++
	if c.gaps > 0 && c.seq%uint64(c.gaps) == 0 {
		return estimation.Frame{}, false
	}
	bracket := c.script[c.pos]
	if c.pos < len(c.script)-1 {
		c.pos++
	}
	return estimation.Frame{
		Seq:        c.seq,
		Width:      640,
		Height:     480,
		Data:       []byte{byte(bracket + 1)},
		CapturedAt: c.now(),
	}, true
}

func (c *ScriptedCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// DetectFaces reports one centred face unless the frame was scripted empty.
func (c *ScriptedCamera) DetectFaces(_ context.Context, frame estimation.Frame) ([]estimation.FaceRegion, error) {
	if len(frame.Data) == 0 || frame.Data[0] == 0 {
		return nil, nil
	}
	return []estimation.FaceRegion{{X: 220, Y: 120, Width: 200, Height: 240}}, nil
}

// ClassifyAge returns the bracket carried by the frame.
func (c *ScriptedCamera) ClassifyAge(_ context.Context, frame estimation.Frame, _ estimation.FaceRegion) (estimation.AgeBracket, error) {
	if len(frame.Data) == 0 || frame.Data[0] == 0 {
		return 0, errNoFaceInFrame
	}
	return estimation.AgeBracket(int(frame.Data[0]) - 1), nil
}
