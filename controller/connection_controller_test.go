// controller/connection_controller_test.go
package controller_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/controlcoreio/control-core-012025-sub001/controller"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	logger "github.com/controlcoreio/control-core-012025-sub001/logging"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	mock_service "github.com/controlcoreio/control-core-012025-sub001/test/service_mock"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(util.ContextUserID, user)
		}
		c.Next()
	})
	return r
}

func serve(router *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestConnectionController(t *testing.T) {
	logger.InitLogger("", "error")
	defer logger.Sync()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockConnectionService := mock_service.NewMockIConnectionService(ctrl)
	connectionController := controller.NewConnectionController(mockConnectionService)
	router := setupRouter()
	connectionController.RegisterRoutes(router.Group("/api/v1"))

	t.Run("CreateConnection_Success", func(t *testing.T) {
		mockConnectionService.EXPECT().
			CreateConnection(gomock.Any(), gomock.Any(), "admin-1").
			DoAndReturn(func(_ any, conn model.Connection, _ string) (*model.Connection, error) {
				assert.Equal(t, "CRM", conn.Name)
				assert.Equal(t, 60, conn.CacheTTLSeconds)
				conn.ID = "crm-1"
				conn.Version = 1
				return conn.Redacted(), nil
			})

		body := `{"name":"CRM","type":"crm","provider":"rest","endpoint":"https://crm.example.com","auth":{"token":"s3cret"},"cache_enabled":true,"cache_ttl_seconds":60,"enabled":true}`
		w := serve(router, "POST", "/api/v1/connections", body, "X-Test-User", "admin-1")

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NotContains(t, w.Body.String(), "s3cret")
	})

	t.Run("CreateConnection_Failure_BadJSON", func(t *testing.T) {
		w := serve(router, "POST", "/api/v1/connections", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("CreateConnection_Failure_Invalid", func(t *testing.T) {
		mockConnectionService.EXPECT().
			CreateConnection(gomock.Any(), gomock.Any(), "anonymous").
			Return(nil, fmt.Errorf("%w: name failed required", pip_errors.ErrInvalidConnectionData))

		w := serve(router, "POST", "/api/v1/connections", `{"provider":"rest"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "name failed required")
	})

	t.Run("CreateConnection_Failure_Conflict", func(t *testing.T) {
		mockConnectionService.EXPECT().
			CreateConnection(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: crm-1", pip_errors.ErrConnectionConflict))

		w := serve(router, "POST", "/api/v1/connections", `{"id":"crm-1"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CreateConnection_Failure_StoreDown", func(t *testing.T) {
		mockConnectionService.EXPECT().
			CreateConnection(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("failed to persist connection crm-1: %w", pip_errors.ErrDatabaseOperation))

		w := serve(router, "POST", "/api/v1/connections", `{"id":"crm-1"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("UpdateConnection_Success", func(t *testing.T) {
		mockConnectionService.EXPECT().
			UpdateConnection(gomock.Any(), "crm-1", gomock.Any(), gomock.Any()).
			Return(&model.Connection{ID: "crm-1", Name: "Renamed", Version: 2}, nil)

		w := serve(router, "PUT", "/api/v1/connections/crm-1", `{"name":"Renamed"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("UpdateConnection_Failure_NotFound", func(t *testing.T) {
		mockConnectionService.EXPECT().
			UpdateConnection(gomock.Any(), "missing", gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("%w: missing", pip_errors.ErrConnectionNotFound))

		w := serve(router, "PUT", "/api/v1/connections/missing", `{"name":"x"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("DeleteConnection_Success", func(t *testing.T) {
		mockConnectionService.EXPECT().
			DeleteConnection(gomock.Any(), "crm-1", "admin-1").
			Return(nil)

		w := serve(router, "DELETE", "/api/v1/connections/crm-1", "", "X-Test-User", "admin-1")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("DeleteConnection_Failure_NotFound", func(t *testing.T) {
		mockConnectionService.EXPECT().
			DeleteConnection(gomock.Any(), "crm-1", gomock.Any()).
			Return(pip_errors.ErrConnectionNotFound)

		w := serve(router, "DELETE", "/api/v1/connections/crm-1", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GetConnection_Success", func(t *testing.T) {
		mockConnectionService.EXPECT().
			GetConnection(gomock.Any(), "crm-1").
			Return(&model.Connection{ID: "crm-1", Auth: model.Credentials{"token": model.RedactedCredential}}, nil)

		w := serve(router, "GET", "/api/v1/connections/crm-1", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var conn model.Connection
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))
		assert.Equal(t, model.RedactedCredential, conn.Auth["token"])
	})

	t.Run("ListConnections_Success", func(t *testing.T) {
		mockConnectionService.EXPECT().
			ListConnections(gomock.Any(), 10, 20).
			Return([]model.ConnectionSummary{{ID: "crm-1"}, {ID: "hr-1"}}, nil)

		w := serve(router, "GET", "/api/v1/connections?limit=10&offset=20", "")
		assert.Equal(t, http.StatusOK, w.Code)

		var summaries []model.ConnectionSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
		assert.Len(t, summaries, 2)
	})

	t.Run("ListConnections_Failure_BadPagination", func(t *testing.T) {
		w := serve(router, "GET", "/api/v1/connections?limit=-3", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("TestConnection_ReportsFailureWith200", func(t *testing.T) {
		mockConnectionService.EXPECT().
			TestConnection(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req model.ConnectionTestRequest) *model.ConnectionTestResponse {
				assert.Equal(t, model.ConnectionTypeCRM, req.ConnectionType)
				assert.Equal(t, "salesforce", req.Provider)
				return &model.ConnectionTestResponse{
					Success:      false,
					Status:       model.StatusError,
					ErrorReason:  model.ReasonConfiguration,
					ErrorMessage: "no connector registered for connection type and provider",
				}
			})

		w := serve(router, "POST", "/api/v1/connections/test", `{"connection_type":"crm","provider":"salesforce","configuration":{}}`)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp model.ConnectionTestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, model.ReasonConfiguration, resp.ErrorReason)
	})

	t.Run("TestConnection_Failure_MissingProvider", func(t *testing.T) {
		w := serve(router, "POST", "/api/v1/connections/test", `{"connection_type":"crm"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("TestExistingConnection_Success", func(t *testing.T) {
		mockConnectionService.EXPECT().
			TestExistingConnection(gomock.Any(), "crm-1").
			Return(&model.ConnectionTestResponse{Success: true, Status: model.StatusConnected, ResponseTimeMS: 12.5}, nil)

		w := serve(router, "POST", "/api/v1/connections/crm-1/test", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"connected"`)
	})
}
