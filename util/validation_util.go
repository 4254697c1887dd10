// util/validation_util.go

package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/controlcoreio/control-core-012025-sub001/connector"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
)

type ValidationUtil struct {
	validate   *validator.Validate
	connectors *connector.Registry
}

func NewValidationUtil(connectors *connector.Registry) *ValidationUtil {
	return &ValidationUtil{
		validate:   validator.New(),
		connectors: connectors,
	}
}

// ValidateConnection checks struct tags, cache settings and that a
// connector can be built for the configuration. Every problem is reported,
// wrapped in ErrInvalidConnectionData.
func (v *ValidationUtil) ValidateConnection(conn model.Connection) error {
	var result *multierror.Error
	if err := v.validate.Struct(conn); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				result = multierror.Append(result, fmt.Errorf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
		} else {
			result = multierror.Append(result, err)
		}
	}
	if conn.CacheEnabled && conn.CacheTTLSeconds == 0 {
		result = multierror.Append(result, fmt.Errorf("cache_ttl_seconds must be positive when caching is enabled"))
	}
	if result.ErrorOrNil() == nil {
		if err := v.checkConnector(conn); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %v", pip_errors.ErrInvalidConnectionData, err)
	}
	return nil
}

func (v *ValidationUtil) checkConnector(conn model.Connection) error {
	if v.connectors == nil {
		return nil
	}
	if !v.connectors.Supports(conn.Type, conn.Provider) {
		return fmt.Errorf("%w: %s/%s", pip_errors.ErrConnectorNotRegistered, conn.Type, conn.Provider)
	}
	c, err := v.connectors.Build(connector.ConfigFromConnection(&conn))
	if err != nil {
		return err
	}
	if closer, ok := c.(io.Closer); ok {
		_ = closer.Close()
	}
	return nil
}

// ValidateSubject rejects empty subjects and control characters.
func (v *ValidationUtil) ValidateSubject(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return fmt.Errorf("%w: subject is empty", pip_errors.ErrInvalidResolutionRequest)
	}
	if strings.ContainsFunc(subject, func(r rune) bool { return r < 0x20 || r == 0x7f }) {
		return fmt.Errorf("%w: subject contains control characters", pip_errors.ErrInvalidResolutionRequest)
	}
	return nil
}
