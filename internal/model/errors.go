package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVersion marks a vault api version outside the known releases.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	// ErrHeightUnavailable is returned when a state read targets a block the node cannot serve yet.
	ErrHeightUnavailable = errors.New("block height unavailable")
	// ErrAlreadyLoaded marks a report that is already persisted.
	ErrAlreadyLoaded = errors.New("report already loaded")
)

// StructuralError reports a trace that does not have the expected shape.
type StructuralError struct {
	Op     string
	PC     uint64
	Detail string
}

func (e *StructuralError) Error() string {
	if e.PC != 0 {
		return fmt.Sprintf("%s: pc %d: %s", e.Op, e.PC, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// IsStructural reports whether err is a trace shape failure.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// IsRetryable reports whether err may succeed on a later attempt.
// Configuration and structural errors are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedVersion) || errors.Is(err, ErrAlreadyLoaded) {
		return false
	}
	return !IsStructural(err)
}
