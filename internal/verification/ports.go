package verification

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Sampler,DocumentLookup

import (
	"context"

	"agegate/internal/document"
	"agegate/internal/estimation"
)

// Sampler is the part of *estimation.Sampler a run drives.
type Sampler interface {
	Start(ctx context.Context) error
	Stop()
	Latest() (estimation.AgeSample, bool)
	Ticks() <-chan estimation.Tick
}

// SamplerFactory builds a fresh sampler for each run. The frame source is
// opened by Sampler.Start, not by the factory.
type SamplerFactory func() (Sampler, error)

// DocumentLookup resolves scanned card identifiers. Found=false means the
// card is unknown; any error is a device failure.
type DocumentLookup interface {
	Lookup(ctx context.Context, rawCardID string) (document.Result, error)
}
