package whisper

import (
	"errors"
	"fmt"
)

// FatalError aborts the entire request when returned by an extractor.
// Any other extractor error is recoverable: it is appended to the
// owning node's error_message meta and processing continues.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf wraps a formatted error as fatal.
func Fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
