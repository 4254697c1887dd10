// controller/connection_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/service"
	"github.com/controlcoreio/control-core-012025-sub001/util"
	helper_util "github.com/controlcoreio/control-core-012025-sub001/util/helper"
)

type ConnectionController struct {
	connectionService service.IConnectionService
}

func NewConnectionController(connectionService service.IConnectionService) *ConnectionController {
	return &ConnectionController{
		connectionService: connectionService,
	}
}

// RegisterRoutes registers the API routes
func (cc *ConnectionController) RegisterRoutes(r *gin.RouterGroup) {
	connections := r.Group("/connections")
	{
		connections.POST("", cc.CreateConnection)
		connections.GET("", cc.ListConnections)
		connections.POST("/test", cc.TestConnection)
		connections.GET("/:id", cc.GetConnection)
		connections.PUT("/:id", cc.UpdateConnection)
		connections.DELETE("/:id", cc.DeleteConnection)
		connections.POST("/:id/test", cc.TestExistingConnection)
	}
}

func (cc *ConnectionController) CreateConnection(c *gin.Context) {
	var conn model.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid connection data", err)
		return
	}

	created, err := cc.connectionService.CreateConnection(c.Request.Context(), conn, util.GetUserIDFromContext(c))
	if err != nil {
		respondWithServiceError(c, err, "Failed to create connection")
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (cc *ConnectionController) UpdateConnection(c *gin.Context) {
	var conn model.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid connection data", err)
		return
	}

	updated, err := cc.connectionService.UpdateConnection(c.Request.Context(), c.Param("id"), conn, util.GetUserIDFromContext(c))
	if err != nil {
		respondWithServiceError(c, err, "Failed to update connection")
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (cc *ConnectionController) DeleteConnection(c *gin.Context) {
	if err := cc.connectionService.DeleteConnection(c.Request.Context(), c.Param("id"), util.GetUserIDFromContext(c)); err != nil {
		respondWithServiceError(c, err, "Failed to delete connection")
		return
	}

	c.Status(http.StatusNoContent)
}

func (cc *ConnectionController) GetConnection(c *gin.Context) {
	conn, err := cc.connectionService.GetConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, "Failed to retrieve connection")
		return
	}

	c.JSON(http.StatusOK, conn)
}

func (cc *ConnectionController) ListConnections(c *gin.Context) {
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", pip_errors.ErrInvalidPagination)
		return
	}

	connections, err := cc.connectionService.ListConnections(c.Request.Context(), limit, offset)
	if err != nil {
		respondWithServiceError(c, err, "Failed to list connections")
		return
	}

	c.JSON(http.StatusOK, connections)
}

// TestConnection tests an unsaved configuration. Failures are reported in
// the body; the status is 200 whenever the request itself was well formed.
func (cc *ConnectionController) TestConnection(c *gin.Context) {
	var req model.ConnectionTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid connection test request", err)
		return
	}

	c.JSON(http.StatusOK, cc.connectionService.TestConnection(c.Request.Context(), req))
}

func (cc *ConnectionController) TestExistingConnection(c *gin.Context) {
	resp, err := cc.connectionService.TestExistingConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, "Failed to test connection")
		return
	}

	c.JSON(http.StatusOK, resp)
}
