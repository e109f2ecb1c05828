package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetVehicles handles GET /api/vehicles, serving the latest tracker
// snapshot.
func (h *Handler) GetVehicles(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Vehicles())
}

// GetAlerts handles GET /api/alerts. Resolved alerts are included only
// with ?include_resolved=true.
func (h *Handler) GetAlerts(c *gin.Context) {
	includeResolved, _ := strconv.ParseBool(c.DefaultQuery("include_resolved", "false"))
	c.JSON(http.StatusOK, h.tracker.Alerts(includeResolved))
}

// ResolveAlert handles POST /api/alerts/:id/resolve.
func (h *Handler) ResolveAlert(c *gin.Context) {
	if err := h.tracker.ResolveAlert(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
