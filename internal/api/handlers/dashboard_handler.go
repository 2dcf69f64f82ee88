package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Djiouwairia/RED-Product/internal/api/middleware"
	"github.com/Djiouwairia/RED-Product/internal/services"
)

// DashboardHandler serves the aggregated dashboard payload.
type DashboardHandler struct {
	dashboard services.IDashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard services.IDashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats handles GET /api/dashboard. The scope is derived from the actor's
// role; there is no way to request a wider scope over the wire.
func (h *DashboardHandler) Stats(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	scope := services.ScopeFor(actor)

	stats, err := h.dashboard.Stats(c.Request.Context(), actor, scope)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
