package estimation

import (
	"errors"
	"fmt"

	"agegate/pkg/platform/sentinel"
)

var (
	// ErrDeviceUnavailable is fatal to a run: the frame source could not be
	// opened or the estimator kept failing.
	ErrDeviceUnavailable = fmt.Errorf("camera device: %w", sentinel.ErrUnavailable)

	// ErrAlreadyStarted is returned by Start on a sampler that was started before.
	ErrAlreadyStarted = errors.New("sampler already started")
)
