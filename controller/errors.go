// controller/errors.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

// respondWithServiceError maps service sentinels to status codes. Client
// errors echo the error text; anything else answers with fallback.
func respondWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, pip_errors.ErrConnectionNotFound):
		util.RespondWithError(c, http.StatusNotFound, "Connection not found", err)
	case errors.Is(err, pip_errors.ErrConnectionConflict):
		util.RespondWithError(c, http.StatusConflict, "Connection already exists", err)
	case errors.Is(err, pip_errors.ErrMappingConflict):
		util.RespondWithError(c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, pip_errors.ErrInvalidConnectionData),
		errors.Is(err, pip_errors.ErrInvalidMappingData),
		errors.Is(err, pip_errors.ErrInvalidResolutionRequest),
		errors.Is(err, pip_errors.ErrInvalidPagination),
		errors.Is(err, pip_errors.ErrInvalidQuery):
		util.RespondWithError(c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, pip_errors.ErrDatabaseOperation):
		util.RespondWithError(c, http.StatusServiceUnavailable, "Configuration store unavailable", err)
	default:
		util.RespondWithError(c, http.StatusInternalServerError, fallback, err)
	}
}
