// errors/connector_errors.go
package errors

import (
	"errors"
	"fmt"
)

// AuthError means the upstream rejected the configured credentials. It is
// never retried automatically.
type AuthError struct {
	ConnectionID string
	Op           string
	Err          error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed for connection %s: %v", e.Op, e.ConnectionID, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientNetworkError is a retryable upstream failure.
type TransientNetworkError struct {
	ConnectionID string
	Op           string
	Err          error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: transient failure for connection %s: %v", e.Op, e.ConnectionID, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// PermanentError is a misconfiguration or non-retryable upstream answer.
type PermanentError struct {
	ConnectionID string
	Op           string
	Err          error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent failure for connection %s: %v", e.Op, e.ConnectionID, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var target *TransientNetworkError
	return errors.As(err, &target)
}

func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}
