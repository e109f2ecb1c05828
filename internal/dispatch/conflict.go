// Package dispatch coordinates vehicle assignment: conflict detection
// over assignment time windows, and the greedy nearest-free-vehicle
// placement algorithm.
package dispatch

import (
	"context"
	"time"

	"transport-dispatch-backend/internal/store"
)

// Window is a half-open [Start, End) candidate service window. A nil End
// means the duration is unknown; conflict checking then treats the
// window as unbounded on that side.
type Window struct {
	Start time.Time
	End   *time.Time
}

// BoundedWindow builds a window of the given duration from a start time.
func BoundedWindow(start time.Time, duration time.Duration) Window {
	end := start.Add(duration)
	return Window{Start: start, End: &end}
}

// ConflictChecker answers whether a vehicle is free for a window.
type ConflictChecker struct {
	store store.Store
}

// NewConflictChecker creates a checker over the given store.
func NewConflictChecker(s store.Store) *ConflictChecker {
	return &ConflictChecker{store: s}
}

// HasConflict reports whether any active assignment for the vehicle
// overlaps the candidate window. Completed and cancelled assignments
// never conflict.
func (c *ConflictChecker) HasConflict(ctx context.Context, vehicleID string, w Window) (bool, error) {
	active, err := c.store.ActiveAssignments(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	for i := range active {
		if active[i].OverlapsWindow(w.Start, w.End) {
			return true, nil
		}
	}
	return false, nil
}
