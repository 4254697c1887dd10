// util/helper/helper_test.go
package helper_util

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query      string
		limit      int
		offset     int
		wantErrors bool
	}{
		{"", 50, 0, false},
		{"?limit=10&offset=20", 10, 20, false},
		{"?limit=10000", maxPageSize, 0, false},
		{"?limit=0", 0, 0, true},
		{"?offset=-1", 0, 0, true},
		{"?limit=ten", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/connections"+tt.query, nil)
			limit, offset, err := GetPaginationParams(c)
			if tt.wantErrors {
				assert.ErrorIs(t, err, pip_errors.ErrInvalidPagination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, limit)
			assert.Equal(t, tt.offset, offset)
		})
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, Page(items, 2, 2))
	assert.Equal(t, []int{5}, Page(items, 10, 4))
	assert.Empty(t, Page(items, 2, 9))
}

func TestParseQueryTime(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	got, err := ParseQueryTime("15m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-15*time.Minute), got)

	got, err = ParseQueryTime("2026-01-01T00:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	zero, err := ParseQueryTime("", now)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseQueryTime("last tuesday", now)
	assert.Error(t, err)
}
