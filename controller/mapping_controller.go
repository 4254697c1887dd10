// controller/mapping_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/controlcoreio/control-core-012025-sub001/model"
	"github.com/controlcoreio/control-core-012025-sub001/service"
	"github.com/controlcoreio/control-core-012025-sub001/util"
)

type MappingController struct {
	mappingService service.IMappingService
}

func NewMappingController(mappingService service.IMappingService) *MappingController {
	return &MappingController{
		mappingService: mappingService,
	}
}

// RegisterRoutes registers the API routes
func (mc *MappingController) RegisterRoutes(r *gin.RouterGroup) {
	mappings := r.Group("/connections/:id/mappings")
	{
		mappings.GET("", mc.GetMappings)
		mappings.PUT("", mc.SetMappings)
	}
}

func (mc *MappingController) GetMappings(c *gin.Context) {
	rules, err := mc.mappingService.GetMappings(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithServiceError(c, err, "Failed to retrieve mappings")
		return
	}

	c.JSON(http.StatusOK, rules)
}

// SetMappings replaces the whole ordered table; an empty list clears it.
func (mc *MappingController) SetMappings(c *gin.Context) {
	var rules []model.MappingRule
	if err := c.ShouldBindJSON(&rules); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid mapping data", err)
		return
	}

	stored, err := mc.mappingService.SetMappings(c.Request.Context(), c.Param("id"), rules, util.GetUserIDFromContext(c))
	if err != nil {
		respondWithServiceError(c, err, "Failed to update mappings")
		return
	}

	c.JSON(http.StatusOK, stored)
}
