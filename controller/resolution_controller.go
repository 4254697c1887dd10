// controller/resolution_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/controlcoreio/control-core-012025-sub001/audit"
	pip_errors "github.com/controlcoreio/control-core-012025-sub001/errors"
	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/service"
	"github.com/controlcoreio/control-core-012025-sub001/util"
	helper_util "github.com/controlcoreio/control-core-012025-sub001/util/helper"
)

type ResolutionController struct {
	resolutionService service.IResolutionService
}

func NewResolutionController(resolutionService service.IResolutionService) *ResolutionController {
	return &ResolutionController{
		resolutionService: resolutionService,
	}
}

// RegisterRoutes registers the resolution endpoint used by policy decision
// points.
func (rc *ResolutionController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/attributes/resolve", rc.Resolve)
}

// RegisterAdminRoutes registers cache and audit administration.
func (rc *ResolutionController) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.DELETE("/connections/:id/cache", rc.InvalidateCache)
	r.GET("/cache/stats", rc.CacheStats)
	r.GET("/audit", rc.QueryAudit)
}

// Resolve answers 422 with the response body when a required attribute is
// unavailable so the caller can fail closed.
func (rc *ResolutionController) Resolve(c *gin.Context) {
	var req model.ResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid resolution request", err)
		return
	}

	resp, err := rc.resolutionService.Resolve(c.Request.Context(), req, util.GetUserIDFromContext(c))
	if err != nil {
		if pip_errors.IsResolution(err) && resp != nil {
			c.JSON(http.StatusUnprocessableEntity, resp)
			return
		}
		respondWithServiceError(c, err, "Failed to resolve attributes")
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (rc *ResolutionController) InvalidateCache(c *gin.Context) {
	n, err := rc.resolutionService.InvalidateCache(c.Request.Context(), c.Param("id"), c.Query("subject"), util.GetUserIDFromContext(c))
	if err != nil {
		respondWithServiceError(c, err, "Failed to invalidate cache")
		return
	}

	c.JSON(http.StatusOK, gin.H{"invalidated": n})
}

func (rc *ResolutionController) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, rc.resolutionService.CacheStats(c.Request.Context()))
}

func (rc *ResolutionController) QueryAudit(c *gin.Context) {
	now := time.Now()
	from, err := helper_util.ParseQueryTime(c.DefaultQuery("from", "24h"), now)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid from parameter", err)
		return
	}
	to, err := helper_util.ParseQueryTime(c.Query("to"), now)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid to parameter", err)
		return
	}
	limit, _, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	logs, err := rc.resolutionService.QueryAudit(c.Request.Context(), audit.Query{
		From:       from,
		To:         to,
		UserID:     c.Query("user_id"),
		Action:     c.Query("action"),
		ResourceID: c.Query("resource_id"),
		Size:       limit,
	})
	if err != nil {
		respondWithServiceError(c, err, "Failed to query audit logs")
		return
	}

	c.JSON(http.StatusOK, logs)
}
