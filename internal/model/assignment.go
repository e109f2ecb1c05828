package model

import "time"

// AssignmentStatus is the lifecycle state of a vehicle assignment.
type AssignmentStatus string

const (
	AssignmentScheduled  AssignmentStatus = "scheduled"
	AssignmentInProgress AssignmentStatus = "inProgress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

// Active reports whether the assignment still occupies its vehicle.
func (s AssignmentStatus) Active() bool {
	return s == AssignmentScheduled || s == AssignmentInProgress
}

// Assignment binds one vehicle to one request for a time window.
//
// WindowEnd is nil when the service duration could not be estimated;
// conflict checking treats such a window as unbounded on that side.
type Assignment struct {
	ID              string           `gorm:"primaryKey;size:36" json:"id"`
	RequestID       string           `gorm:"size:36;not null;index" json:"requestId"`
	VehicleID       string           `gorm:"size:36;not null;index" json:"vehicleId"`
	AssignedAt      time.Time        `gorm:"not null" json:"assignedAt"`
	WindowStart     time.Time        `gorm:"not null" json:"windowStart"`
	WindowEnd       *time.Time       `json:"windowEnd,omitempty"`
	PickupAt        *time.Time       `json:"pickupAt,omitempty"`
	DeliveredAt     *time.Time       `json:"deliveredAt,omitempty"`
	DistanceKm      float64          `json:"distanceKm"`
	DurationMinutes int              `json:"durationMinutes"`
	SeatedCount     int              `json:"seatedCount"`
	StretcherCount  int              `json:"stretcherCount"`
	WheelchairCount int              `json:"wheelchairCount"`
	Automatic       bool             `gorm:"not null" json:"automatic"`
	Reason          string           `gorm:"type:text" json:"reason,omitempty"`
	Status          AssignmentStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// OverlapsWindow reports whether the assignment's [WindowStart,
// WindowEnd) intersects the candidate [start, end). Windows are
// half-open, so touching endpoints do not overlap. A nil end on either
// side is treated as unbounded, which conservatively counts as overlap.
func (a *Assignment) OverlapsWindow(start time.Time, end *time.Time) bool {
	candidateStartsBeforeExistingEnds := a.WindowEnd == nil || start.Before(*a.WindowEnd)
	existingStartsBeforeCandidateEnds := end == nil || a.WindowStart.Before(*end)
	return candidateStartsBeforeExistingEnds && existingStartsBeforeCandidateEnds
}
