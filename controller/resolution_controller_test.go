// controller/resolution_controller_test.go
package controller_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
	"github.com/controlcoreio/control-core-012025-sub001/controller"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	mock_service "github.com/controlcoreio/control-core-012025-sub001/test/service_mock"
)

func TestResolutionController(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockResolutionService := mock_service.NewMockIResolutionService(ctrl)
	resolutionController := controller.NewResolutionController(mockResolutionService)
	router := setupRouter()
	api := router.Group("/api/v1")
	resolutionController.RegisterRoutes(api)
	resolutionController.RegisterAdminRoutes(api)

	t.Run("Resolve_Success", func(t *testing.T) {
		mockResolutionService.EXPECT().
			Resolve(gomock.Any(), model.ResolutionRequest{Subject: "alice", Attributes: []string{"user.tier", "user.region"}, DeadlineMS: 200}, "pdp-1").
			Return(&model.ResolutionResponse{
				Values:   model.AttributeBag{"user.tier": "GOLD"},
				Warnings: []model.ResolutionWarning{{Attribute: "user.region", Reason: "source timed out"}},
			}, nil)

		w := serve(router, "POST", "/api/v1/attributes/resolve",
			`{"subject":"alice","attributes":["user.tier","user.region"],"deadline_ms":200}`, "X-Test-User", "pdp-1")
		assert.Equal(t, http.StatusOK, w.Code)

		var resp model.ResolutionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "GOLD", resp.Values["user.tier"])
		require.Len(t, resp.Warnings, 1)
		assert.Nil(t, resp.Error)
	})

	t.Run("Resolve_PassesRequestContext", func(t *testing.T) {
		mockResolutionService.EXPECT().
			Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ model.ResolutionRequest, _ string) (*model.ResolutionResponse, error) {
				_, isGin := ctx.(*gin.Context)
				assert.False(t, isGin, "services must not keep the recycled gin context")
				return &model.ResolutionResponse{Values: model.AttributeBag{}, Warnings: []model.ResolutionWarning{}}, nil
			})

		w := serve(router, "POST", "/api/v1/attributes/resolve", `{"subject":"alice","attributes":["user.tier"]}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Resolve_RequiredMissingIs422", func(t *testing.T) {
		rerr := &pip_errors.ResolutionError{Subject: "alice", Failures: []pip_errors.AttributeFailure{{Attribute: "user.tier", ConnectionID: "crm-1", Reason: "source timed out"}}}
		mockResolutionService.EXPECT().
			Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&model.ResolutionResponse{Values: model.AttributeBag{}, Warnings: []model.ResolutionWarning{}, Error: rerr}, rerr)

		w := serve(router, "POST", "/api/v1/attributes/resolve", `{"subject":"alice","attributes":["user.tier"]}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp model.ResolutionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Values)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "user.tier", resp.Error.Failures[0].Attribute)
	})

	t.Run("Resolve_Failure_NoAttributes", func(t *testing.T) {
		w := serve(router, "POST", "/api/v1/attributes/resolve", `{"subject":"alice","attributes":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Resolve_Failure_InvalidRequest", func(t *testing.T) {
		mockResolutionService.EXPECT().
			Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: deadline_ms must not be negative", pip_errors.ErrInvalidResolutionRequest))

		w := serve(router, "POST", "/api/v1/attributes/resolve", `{"subject":"alice","attributes":["user.tier"],"deadline_ms":-1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidateCache_Subject", func(t *testing.T) {
		mockResolutionService.EXPECT().
			InvalidateCache(gomock.Any(), "crm-1", "alice", gomock.Any()).
			Return(1, nil)

		w := serve(router, "DELETE", "/api/v1/connections/crm-1/cache?subject=alice", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"invalidated":1}`, w.Body.String())
	})

	t.Run("InvalidateCache_Failure_NotFound", func(t *testing.T) {
		mockResolutionService.EXPECT().
			InvalidateCache(gomock.Any(), "missing", "", gomock.Any()).
			Return(0, pip_errors.ErrConnectionNotFound)

		w := serve(router, "DELETE", "/api/v1/connections/missing/cache", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("CacheStats", func(t *testing.T) {
		mockResolutionService.EXPECT().
			CacheStats(gomock.Any()).
			Return(model.CacheStats{Entries: 3, Hits: 9, Misses: 1, HitRatio: 0.9})

		w := serve(router, "GET", "/api/v1/cache/stats", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"hit_ratio":0.9`)
	})

	t.Run("QueryAudit", func(t *testing.T) {
		mockResolutionService.EXPECT().
			QueryAudit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, q audit.Query) ([]audit.AuditLog, error) {
				assert.Equal(t, audit.ActionCacheInvalidated, q.Action)
				assert.False(t, q.From.IsZero())
				assert.Equal(t, 50, q.Size)
				return []audit.AuditLog{{Action: audit.ActionCacheInvalidated, ResourceID: "crm-1"}}, nil
			})

		w := serve(router, "GET", "/api/v1/audit?action=cache.invalidated&from=1h", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("QueryAudit_Failure_BadTime", func(t *testing.T) {
		w := serve(router, "GET", "/api/v1/audit?from=yesterday", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
