package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AutoAssign handles POST /api/requests/:id/assign.
func (h *Handler) AutoAssign(c *gin.Context) {
	assignment, err := h.coord.AutoAssign(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}

type manualAssignBody struct {
	VehicleID        string    `json:"vehicleId" binding:"required"`
	EstimatedArrival time.Time `json:"estimatedArrival" binding:"required"`
	Reason           string    `json:"reason" binding:"required"`
}

// ManualAssign handles POST /api/requests/:id/assign/manual. The reason
// is mandatory so manual overrides stay auditable.
func (h *Handler) ManualAssign(c *gin.Context) {
	var body manualAssignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment, err := h.coord.ManualAssign(c.Request.Context(), c.Param("id"),
		body.VehicleID, body.EstimatedArrival, body.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, assignment)
}
