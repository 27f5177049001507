package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Shape / cardinality errors
	ErrShape                = errors.New("invalid signal shape")
	ErrInsufficientSubjects = fmt.Errorf("%w: at least two subjects are required", ErrShape)
	ErrShapeMismatch        = fmt.Errorf("%w: dimensions do not match", ErrShape)
	ErrEmptySignal          = fmt.Errorf("%w: signals contain no samples", ErrShape)
	ErrNonFiniteSample      = errors.New("signal contains NaN or infinite samples")

	// Configuration errors
	ErrConfig            = errors.New("invalid configuration")
	ErrInvalidSampleRate = fmt.Errorf("%w: sampling frequency must be positive", ErrConfig)
	ErrInvalidPercentile = fmt.Errorf("%w: percentile must lie in [0, 100]", ErrConfig)
	ErrInvalidChunking   = fmt.Errorf("%w: chunking requires at least one index and one worker", ErrConfig)
	ErrInvalidOption     = fmt.Errorf("%w: wavelet option", ErrConfig)

	// Resource lifecycle errors
	ErrPoolClosed    = errors.New("worker pool is closed")
	ErrCacheReleased = errors.New("array cache has been released")
)

// NewShapeMismatchError reports two shapes that were required to be equal.
func NewShapeMismatchError(what string, got, want [2]int) error {
	return fmt.Errorf("%w: %s is %dx%d, expected %dx%d", ErrShapeMismatch, what, got[0], got[1], want[0], want[1])
}

// NewOptionError reports a wavelet option with an unusable value.
func NewOptionError(key string, value interface{}) error {
	return fmt.Errorf("%w %q: unsupported value %v", ErrInvalidOption, key, value)
}

// Error checking helpers
func IsShapeError(err error) bool {
	return errors.Is(err, ErrShape)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
