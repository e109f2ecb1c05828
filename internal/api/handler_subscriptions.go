package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/parse"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`

	RequestStatusEnabled     *bool  `json:"requestStatusEnabled"`
	VehicleAssignmentEnabled *bool  `json:"vehicleAssignmentEnabled"`
	EmergencyEnabled         *bool  `json:"emergencyEnabled"`
	SystemEnabled            *bool  `json:"systemEnabled"`
	ChatEnabled              *bool  `json:"chatEnabled"`
	QuietHoursEnabled        bool   `json:"quietHoursEnabled"`
	QuietStart               string `json:"quietStart"`
	QuietEnd                 string `json:"quietEnd"`
}

func orDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// PutSubscription handles the creation or replacement of a push
// subscription and its notification preferences.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.QuietHoursEnabled {
		if _, err := parse.ParseWindow(req.QuietStart, req.QuietEnd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	subscription := model.PushSubscription{
		Endpoint:                 req.Endpoint,
		P256DH:                   req.P256DH,
		Auth:                     req.Auth,
		RequestStatusEnabled:     orDefault(req.RequestStatusEnabled, true),
		VehicleAssignmentEnabled: orDefault(req.VehicleAssignmentEnabled, true),
		EmergencyEnabled:         orDefault(req.EmergencyEnabled, true),
		SystemEnabled:            orDefault(req.SystemEnabled, true),
		ChatEnabled:              orDefault(req.ChatEnabled, true),
		QuietHoursEnabled:        req.QuietHoursEnabled,
		QuietStart:               req.QuietStart,
		QuietEnd:                 req.QuietEnd,
	}

	err := h.store.DB().Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"p256dh", "auth",
			"request_status_enabled", "vehicle_assignment_enabled",
			"emergency_enabled", "system_enabled", "chat_enabled",
			"quiet_hours_enabled", "quiet_start", "quiet_end",
		}),
	}).Create(&subscription).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.DB().Delete(&model.PushSubscription{Endpoint: req.Endpoint}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSubscription handles the retrieval of a subscription's preference
// set.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	var subscription model.PushSubscription
	if err := h.store.DB().First(&subscription, "endpoint = ?", endpoint).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, subscription)
}
