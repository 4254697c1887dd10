// errors/resolution_errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidResolutionRequest = errors.New("invalid resolution request")
	ErrSourceTimeout            = errors.New("source did not respond before the deadline")
)

// AttributeFailure names a required attribute that could not be resolved.
type AttributeFailure struct {
	Attribute    string `json:"attribute"`
	ConnectionID string `json:"connection_id,omitempty"`
	Reason       string `json:"reason"`
}

// ResolutionError is returned when at least one required attribute is
// unavailable. Callers must not evaluate policy without it.
type ResolutionError struct {
	Subject  string             `json:"subject"`
	Failures []AttributeFailure `json:"failures"`
}

func (e *ResolutionError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Attribute)
	}
	return fmt.Sprintf("required attributes unavailable for subject %s: %s", e.Subject, strings.Join(names, ", "))
}

func IsResolution(err error) bool {
	var target *ResolutionError
	return errors.As(err, &target)
}
