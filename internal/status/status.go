// Package status validates and applies transport request status
// transitions and derives the notification event for each change.
package status

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"transport-dispatch-backend/internal/model"
)

var (
	// ErrInvalidTransition reports a target status not reachable from
	// the request's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingAssignmentData reports a transition into assigned or
	// inRoute without a vehicle and estimated arrival.
	ErrMissingAssignmentData = errors.New("missing assignment data")
)

// transitions maps each status to the set it may move to. completed is
// terminal; cancelled allows explicit reactivation back to pending.
var transitions = map[model.RequestStatus][]model.RequestStatus{
	model.StatusPending:   {model.StatusAssigned, model.StatusCancelled},
	model.StatusAssigned:  {model.StatusInRoute, model.StatusCancelled},
	model.StatusInRoute:   {model.StatusCompleted, model.StatusCancelled},
	model.StatusCompleted: {},
	model.StatusCancelled: {model.StatusPending},
}

// CanTransition reports whether target is reachable from current.
func CanTransition(current, target model.RequestStatus) bool {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ChangeData carries the extra fields a transition may require.
type ChangeData struct {
	Vehicle          string
	EstimatedArrival *time.Time
}

// requiresAssignment reports whether a status needs vehicle and ETA.
func requiresAssignment(s model.RequestStatus) bool {
	return s == model.StatusAssigned || s == model.StatusInRoute
}

// Apply validates the transition and returns the updated request copy
// together with the notification event describing the change. It never
// mutates the input; persisting the result and emitting the event
// atomically is the store's responsibility.
func Apply(req model.TransportRequest, target model.RequestStatus, data ChangeData, now time.Time) (model.TransportRequest, *model.Event, error) {
	if !CanTransition(req.Status, target) {
		return req, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, target)
	}

	updated := req
	if requiresAssignment(target) {
		if data.Vehicle == "" || data.EstimatedArrival == nil {
			return req, nil, fmt.Errorf("%w: transition to %s requires vehicle and estimated arrival", ErrMissingAssignmentData, target)
		}
		vehicle := data.Vehicle
		eta := *data.EstimatedArrival
		updated.AssignedVehicle = &vehicle
		updated.EstimatedArrival = &eta
	} else {
		// Vehicle and ETA are populated iff assigned or inRoute.
		updated.AssignedVehicle = nil
		updated.EstimatedArrival = nil
	}
	updated.Status = target

	if req.Status == target {
		return updated, nil, nil
	}

	priority := model.PriorityMedium
	if target == model.StatusCancelled {
		priority = model.PriorityHigh
	}

	event := &model.Event{
		ID:        uuid.NewString(),
		Category:  model.CategoryRequestStatus,
		Priority:  priority,
		RequestID: req.ID,
		OldStatus: req.Status,
		NewStatus: target,
		Message:   fmt.Sprintf("request %s moved from %s to %s", req.ID, req.Status, target),
		At:        now,
	}
	return updated, event, nil
}
