package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/status"
)

// GetRequests handles GET /api/requests.
func (h *Handler) GetRequests(c *gin.Context) {
	requests, err := h.store.ListRequests(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

// GetRequest handles GET /api/requests/:id.
func (h *Handler) GetRequest(c *gin.Context) {
	req, err := h.store.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if req == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
		return
	}
	c.JSON(http.StatusOK, req)
}

type createRequestBody struct {
	PatientName        string     `json:"patientName" binding:"required"`
	PatientID          string     `json:"patientId"`
	OriginAddress      string     `json:"originAddress" binding:"required"`
	DestinationAddress string     `json:"destinationAddress" binding:"required"`
	DateTime           time.Time  `json:"dateTime" binding:"required"`
	ReturnDateTime     *time.Time `json:"returnDateTime"`
	TransportMode      string     `json:"transportMode" binding:"required,oneof=stretcher wheelchair walking"`
	ServiceType        string     `json:"serviceType" binding:"required,oneof=consultation admission discharge transfer"`
	CreatedBy          string     `json:"createdBy"`
	Observations       string     `json:"observations"`
	Equipment          []string   `json:"equipment"`
}

// CreateRequest handles POST /api/requests. New requests always start
// in status pending.
func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.store.CreateRequest(c.Request.Context(), &model.TransportRequest{
		PatientName:        body.PatientName,
		PatientID:          body.PatientID,
		OriginAddress:      body.OriginAddress,
		DestinationAddress: body.DestinationAddress,
		DateTime:           body.DateTime,
		ReturnDateTime:     body.ReturnDateTime,
		TransportMode:      model.TransportMode(body.TransportMode),
		ServiceType:        model.ServiceType(body.ServiceType),
		CreatedBy:          body.CreatedBy,
		Observations:       body.Observations,
		Equipment:          body.Equipment,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type updateRequestBody struct {
	Observations   *string    `json:"observations"`
	ReturnDateTime *time.Time `json:"returnDateTime"`
	Equipment      []string   `json:"equipment"`
}

// UpdateRequest handles PATCH /api/requests/:id for the request's own
// fields. Status changes go through TransitionRequest.
func (h *Handler) UpdateRequest(c *gin.Context) {
	var body updateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]any)
	if body.Observations != nil {
		updates["observations"] = *body.Observations
	}
	if body.ReturnDateTime != nil {
		updates["return_date_time"] = *body.ReturnDateTime
	}
	if body.Equipment != nil {
		updates["equipment"] = model.EquipmentList(body.Equipment)
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updatable fields supplied"})
		return
	}

	updated, err := h.store.UpdateRequest(c.Request.Context(), c.Param("id"), updates)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteRequest handles DELETE /api/requests/:id.
func (h *Handler) DeleteRequest(c *gin.Context) {
	if err := h.store.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transitionBody struct {
	Status           string     `json:"status" binding:"required,oneof=pending assigned inRoute completed cancelled"`
	Vehicle          string     `json:"vehicle"`
	EstimatedArrival *time.Time `json:"estimatedArrival"`
}

// TransitionRequest handles PATCH /api/requests/:id/status.
func (h *Handler) TransitionRequest(c *gin.Context) {
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.store.Transition(c.Request.Context(), c.Param("id"),
		model.RequestStatus(body.Status), status.ChangeData{
			Vehicle:          body.Vehicle,
			EstimatedArrival: body.EstimatedArrival,
		})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}
