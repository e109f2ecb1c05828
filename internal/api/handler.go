package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"transport-dispatch-backend/internal/dispatch"
	"transport-dispatch-backend/internal/geo"
	"transport-dispatch-backend/internal/status"
	"transport-dispatch-backend/internal/store"
	"transport-dispatch-backend/internal/tracker"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	coord   *dispatch.Coordinator
	tracker *tracker.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, coord *dispatch.Coordinator, t *tracker.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		coord:   coord,
		tracker: t,
		webpush: webpushOptions,
	}
}

// fail maps core errors onto HTTP statuses: validation errors are the
// caller's fault, availability errors are expected dispatch outcomes,
// persistence errors are upstream failures.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, status.ErrInvalidTransition),
		errors.Is(err, status.ErrMissingAssignmentData),
		errors.Is(err, store.ErrInvalidSchedule),
		errors.Is(err, dispatch.ErrReasonRequired):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, dispatch.ErrNoVehicleAvailable),
		errors.Is(err, dispatch.ErrConflictUnresolvable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "manualAssignment": true})
	case errors.Is(err, geo.ErrGeocodeUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "manualAssignment": true})
	case errors.Is(err, store.ErrPersistence):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
