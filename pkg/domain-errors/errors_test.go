package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("lookup: %w", Wrap(cause, CodeUnavailable, "registry unavailable"))

	assert.True(t, HasCode(err, CodeUnavailable))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Equal(t, "registry unavailable: connection reset", errors.Unwrap(err).Error())
}

func TestCodeOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.False(t, Is(nil, CodeInternal))
}
