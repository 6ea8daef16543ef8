package segstream

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned for positions, lengths or offsets outside the valid range.
	ErrOutOfRange = errors.New("segstream: out of range")

	// ErrUnsupported is returned for mutating operations on a fixed stream.
	ErrUnsupported = fmt.Errorf("segstream: %w", errors.ErrUnsupported)

	// ErrInvalidOperation is the base error for operations invalid in the current state.
	ErrInvalidOperation = errors.New("segstream: invalid operation")

	// ErrCapacityExceeded is returned when growth is requested past the maximum capacity.
	ErrCapacityExceeded = fmt.Errorf("%w: maximum capacity exceeded", ErrInvalidOperation)

	// ErrNotOwner is returned when growth is requested on a stream that does not own its storage.
	ErrNotOwner = fmt.Errorf("%w: stream does not own its storage (%w)", ErrInvalidOperation, errors.ErrUnsupported)

	// ErrInvariantViolation indicates the stream accounting reached an inconsistent state.
	ErrInvariantViolation = fmt.Errorf("%w: invariant violation", ErrInvalidOperation)

	// ErrDisposed is returned by every operation on a closed stream, except Close.
	ErrDisposed = errors.New("segstream: stream is disposed")

	ErrInvalidWhence = errors.New("segstream: invalid whence")
)
