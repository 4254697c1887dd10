// errors/connection_errors.go
package errors

import "errors"

var (
	ErrConnectionNotFound     = errors.New("connection not found")
	ErrConnectionConflict     = errors.New("connection conflict")
	ErrInvalidConnectionData  = errors.New("invalid connection data")
	ErrConnectionDisabled     = errors.New("connection disabled")
	ErrConnectorNotRegistered = errors.New("no connector registered for connection type and provider")
	ErrConnectionSuspended    = errors.New("connection suspended after permanent error")
)
