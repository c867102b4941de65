package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for the two gating failures. Callers are expected to branch
// on these with errors.Is, so the messages are part of the contract.
var (
	// ErrNotInitialized is returned by any gated operation called before
	// Initialize has succeeded.
	ErrNotInitialized = errors.New("camera has not been initialized")

	// ErrRunning is returned by any gated operation called while the
	// capture loop is active.
	ErrRunning = errors.New("camera is currently running; stop it first")

	// ErrSizeMismatch matches (via errors.Is) every *SizeMismatchError
	// returned by the Image SetData variants.
	ErrSizeMismatch = errors.New("data size does not match image dimensions")
)

// SizeMismatchError reports a SetData call whose source does not hold exactly
// one frame's worth of data. Got and Want are in the unit of the rejected
// source: pixel elements for SetData, bytes for SetDataBytes and SetDataFrom.
type SizeMismatchError struct {
	Got  int
	Want int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("data size does not match image dimensions: got %d, want %d", e.Got, e.Want)
}

// Is makes errors.Is(err, ErrSizeMismatch) work.
func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}
