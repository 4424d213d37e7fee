package generator

import "errors"

// ErrNoJSON means a response held no parseable JSON object.
var ErrNoJSON = errors.New("generator: no JSON object in response")

// TransientError is a failure that may succeed on retry: timeouts, rate
// limits, upstream 5xx.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError is a failure that will not improve on retry: bad credentials,
// malformed requests.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError marks err as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is marked retryable.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err is marked non-retryable.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
