// util/helper/api.go
package helper_util

import (
	"strconv"

	"github.com/gin-gonic/gin"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
)

const maxPageSize = 500

// GetPaginationParams reads limit and offset. Limit defaults to 50 and is
// capped at 500.
func GetPaginationParams(c *gin.Context) (limit int, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		return 0, 0, pip_errors.ErrInvalidPagination
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		return 0, 0, pip_errors.ErrInvalidPagination
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

// Page slices items for limit and offset.
func Page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
