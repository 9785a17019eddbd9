package ports

import "errors"

// TransientError marks a collaborator failure as retryable (timeouts,
// rate-limit responses). Anything not wrapped in it is permanent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err carries the retryable marker.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
