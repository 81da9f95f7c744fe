package estimation

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks FrameSource,Estimator

import "context"

// FrameSource supplies successive frames. Open acquires the device, Close
// releases it. Next is a non-blocking poll; ok=false is not an error.
type FrameSource interface {
	Open(ctx context.Context) error
	Next() (frame Frame, ok bool)
	Close() error
}

// Estimator wraps the face detector and age classifier. Implementations are
// stateless per call.
type Estimator interface {
	DetectFaces(ctx context.Context, frame Frame) ([]FaceRegion, error)
	ClassifyAge(ctx context.Context, frame Frame, face FaceRegion) (AgeBracket, error)
}
