package document

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Registry,Writer

import "context"

// Registry resolves normalized card identifiers. Unknown cards return
// sentinel.ErrNotFound.
type Registry interface {
	Resolve(ctx context.Context, cardID string) (*IdentityRecord, error)
}

// Writer stores cards. Implemented by every registry backend so Seed can
// load fixtures into any of them.
type Writer interface {
	Put(ctx context.Context, cardID string, record IdentityRecord) error
}
