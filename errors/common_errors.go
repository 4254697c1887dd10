// errors/common_errors.go
package errors

import "errors"

var (
	ErrDatabaseOperation = errors.New("database operation failed")
	ErrInternalServer    = errors.New("internal server error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidPagination = errors.New("invalid pagination parameters")
	ErrInvalidQuery      = errors.New("invalid query parameters")
)
