package model

import "time"

// EventCategory classifies a notification event.
type EventCategory string

const (
	CategoryRequestStatus     EventCategory = "request-status"
	CategoryVehicleAssignment EventCategory = "vehicle-assignment"
	CategoryEmergency         EventCategory = "emergency"
	CategorySystem            EventCategory = "system"
	CategoryChat              EventCategory = "chat"
)

// EventPriority orders notification events by urgency.
type EventPriority string

const (
	PriorityLow    EventPriority = "low"
	PriorityMedium EventPriority = "medium"
	PriorityHigh   EventPriority = "high"
)

// Event is a fact about one lifecycle change. It is created once per
// triggering mutation and consumed exactly once by the dispatcher's
// fan-out; persistence of delivered notifications belongs to the
// recipients, not the core.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Priority  EventPriority `json:"priority"`
	RequestID string        `json:"requestId,omitempty"`
	OldStatus RequestStatus `json:"oldStatus,omitempty"`
	NewStatus RequestStatus `json:"newStatus,omitempty"`
	Message   string        `json:"message"`
	At        time.Time     `json:"at"`
}
