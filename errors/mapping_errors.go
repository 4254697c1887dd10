// errors/mapping_errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMappingData = errors.New("invalid mapping data")
	ErrMappingConflict    = errors.New("mapping target attribute conflict")
	ErrAttributeNotMapped = errors.New("attribute not mapped by any connection")
)

// MappingError reports raw data that could not be mapped by a rule: a missing
// required field, a coercion failure or a failed validation rule.
type MappingError struct {
	ConnectionID string
	RuleID       string
	Attribute    string
	Reason       string
	Err          error
}

func (e *MappingError) Error() string {
	msg := fmt.Sprintf("mapping %s for connection %s: %s", e.Attribute, e.ConnectionID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() error { return e.Err }

// TransformError reports a failing transform, including errors and panics
// raised by custom transformation code.
type TransformError struct {
	ConnectionID string
	RuleID       string
	Attribute    string
	Transform    string
	Err          error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s on %s for connection %s: %v", e.Transform, e.Attribute, e.ConnectionID, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
