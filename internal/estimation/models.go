package estimation

import (
	"fmt"
	"time"

	"agegate/internal/policy"
)

// AgeBracket is the estimator's coarse age label, 0 (youngest) to 7.
type AgeBracket int

// Valid reports whether b is one of the eight known brackets.
func (b AgeBracket) Valid() bool {
	return b >= 0 && int(b) < policy.BracketCount
}

// AgeSample is derived deterministically from a bracket through the policy table.
type AgeSample struct {
	Bracket           AgeBracket  `json:"bracket"`
	Label             string      `json:"label"`
	RepresentativeAge int         `json:"representative_age"`
	Tier              policy.Tier `json:"tier"`
	CapturedAt        time.Time   `json:"captured_at"`
}

// Frame is one image from the frame source. The core never inspects Data.
type Frame struct {
	Seq        uint64
	Width      int
	Height     int
	Data       []byte
	CapturedAt time.Time
}

// FaceRegion is a detected face bounding box in frame coordinates.
type FaceRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r FaceRegion) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Signal is the per-tick status shown to the operator. Observational only.
type Signal string

const (
	SignalNoFace           Signal = "no_face"
	SignalCameraEligible   Signal = "camera_eligible"
	SignalDocumentRequired Signal = "document_required"
	SignalDenyCandidate    Signal = "deny_candidate"
)

// Tick is what the sampler publishes after each processed frame.
type Tick struct {
	Signal Signal
	// Sample is nil when no face was detected.
	Sample *AgeSample
	// Faces is the number of faces detected in the frame.
	Faces int
	// Err is set only on a fatal device failure; the loop stops after publishing it.
	Err error
	At  time.Time
}

// SampleFor maps a bracket to its sample under p.
func SampleFor(p policy.Policy, b AgeBracket, at time.Time) (AgeSample, error) {
	entry, ok := p.Bracket(int(b))
	if !ok {
		return AgeSample{}, fmt.Errorf("age bracket %d out of range", b)
	}
	return AgeSample{
		Bracket:           b,
		Label:             entry.Label,
		RepresentativeAge: entry.RepresentativeAge,
		Tier:              entry.Tier,
		CapturedAt:        at,
	}, nil
}

// SignalFor classifies a sample for operator feedback.
func SignalFor(p policy.Policy, s AgeSample) Signal {
	switch p.Classify(s.RepresentativeAge) {
	case policy.BandConfident:
		return SignalCameraEligible
	case policy.BandUncertain:
		return SignalDocumentRequired
	default:
		return SignalDenyCandidate
	}
}

// SelectPrimary picks the subject being checked out: the largest face, ties
// broken by detection order. ok is false for an empty slice.
func SelectPrimary(faces []FaceRegion) (FaceRegion, bool) {
	if len(faces) == 0 {
		return FaceRegion{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Area() > best.Area() {
			best = f
		}
	}
	return best, true
}
