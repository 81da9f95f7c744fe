package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, device adapters and other
// infrastructure layers return these (optionally wrapped) so services can
// translate them into domain errors or outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a competing operation already holds the resource
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: service, device or resource temporarily unavailable
// - ErrTimeout: the resource did not answer within its deadline
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrTimeout      = errors.New("timeout")
)
