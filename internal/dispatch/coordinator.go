package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"transport-dispatch-backend/internal/geo"
	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/status"
	"transport-dispatch-backend/internal/store"
)

var (
	// ErrNoVehicleAvailable reports that no available vehicle exists
	// for automatic placement.
	ErrNoVehicleAvailable = errors.New("no vehicle available")

	// ErrConflictUnresolvable reports that every candidate vehicle has
	// a conflicting assignment for the requested window.
	ErrConflictUnresolvable = errors.New("no conflict-free vehicle for the requested window")

	// ErrReasonRequired reports a manual assignment without the
	// mandatory audit reason.
	ErrReasonRequired = errors.New("manual assignment requires a reason")
)

// VehicleSource provides the latest known vehicle locations.
type VehicleSource interface {
	Vehicles() []model.VehicleLocation
}

// Options tunes the coordinator's placement behavior.
type Options struct {
	// Candidates is how many nearest vehicles to try in distance order.
	Candidates int
	// ServiceDuration sizes the candidate window from the request time.
	ServiceDuration time.Duration
	// AverageSpeedKmh converts straight-line distance into an ETA. The
	// distance is a great-circle approximation, so the ETA is a rough
	// planning figure, not a road-routing promise.
	AverageSpeedKmh float64
}

func (o *Options) applyDefaults() {
	if o.Candidates <= 0 {
		o.Candidates = 3
	}
	if o.ServiceDuration <= 0 {
		o.ServiceDuration = time.Hour
	}
	if o.AverageSpeedKmh <= 0 {
		o.AverageSpeedKmh = 40
	}
}

// Coordinator places vehicles onto transport requests. Automatic
// placement is greedy nearest-free: it walks candidates in distance
// order and takes the first conflict-free vehicle, never reconsidering
// vehicles already bound elsewhere. That favors responsiveness over
// global optimality and is intentional.
type Coordinator struct {
	store    store.Store
	geocoder geo.Geocoder
	vehicles VehicleSource
	checker  *ConflictChecker
	opts     Options

	// mu serializes the check phase across concurrent assignment calls
	// for this process; the store re-validates under its transaction as
	// the second line of defense.
	mu sync.Mutex

	now func() time.Time
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(s store.Store, g geo.Geocoder, v VehicleSource, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{
		store:    s,
		geocoder: g,
		vehicles: v,
		checker:  NewConflictChecker(s),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AutoAssign finds the nearest conflict-free available vehicle for the
// request and binds it. On failure no state is mutated.
func (c *Coordinator) AutoAssign(ctx context.Context, requestID string) (*model.Assignment, error) {
	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrRequestNotFound, requestID)
	}
	if !status.CanTransition(req.Status, model.StatusAssigned) {
		return nil, fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, req.Status, model.StatusAssigned)
	}

	origin, err := c.geocoder.Geocode(ctx, req.OriginAddress)
	if err != nil {
		// Surfaced as-is so the caller can offer manual assignment.
		return nil, err
	}

	ranked := geo.Nearest(origin, c.vehicles.Vehicles(), c.opts.Candidates)
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: request %s", ErrNoVehicleAvailable, requestID)
	}

	window := BoundedWindow(req.DateTime, c.opts.ServiceDuration)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, candidate := range ranked {
		conflict, err := c.checker.HasConflict(ctx, candidate.Vehicle.VehicleID, window)
		if err != nil {
			return nil, err
		}
		if conflict {
			continue
		}

		eta := c.estimateArrival(candidate.DistanceKm)
		a := model.Assignment{
			VehicleID:       candidate.Vehicle.VehicleID,
			WindowStart:     window.Start,
			WindowEnd:       window.End,
			DistanceKm:      candidate.DistanceKm,
			DurationMinutes: int(c.opts.ServiceDuration.Minutes()),
			Automatic:       true,
		}

		created, err := c.store.Assign(ctx, requestID, a, eta)
		if errors.Is(err, store.ErrWindowConflict) {
			// Lost a commit-time race for this vehicle; try the next.
			log.Printf("vehicle %s taken while assigning request %s, trying next candidate", candidate.Vehicle.VehicleID, requestID)
			continue
		}
		if err != nil {
			return nil, err
		}
		return created, nil
	}

	return nil, fmt.Errorf("%w: request %s, %d candidates tried", ErrConflictUnresolvable, requestID, len(ranked))
}

// ManualAssign binds a coordinator-chosen vehicle, bypassing the
// locator ranking but never the conflict check. The reason is mandatory
// because a manual placement overrides automatic dispatch and must be
// auditable.
func (c *Coordinator) ManualAssign(ctx context.Context, requestID, vehicleID string, eta time.Time, reason string) (*model.Assignment, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrRequestNotFound, requestID)
	}

	window := BoundedWindow(req.DateTime, c.opts.ServiceDuration)

	c.mu.Lock()
	defer c.mu.Unlock()

	conflict, err := c.checker.HasConflict(ctx, vehicleID, window)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, fmt.Errorf("%w: vehicle %s", ErrConflictUnresolvable, vehicleID)
	}

	a := model.Assignment{
		VehicleID:       vehicleID,
		WindowStart:     window.Start,
		WindowEnd:       window.End,
		DurationMinutes: int(c.opts.ServiceDuration.Minutes()),
		Automatic:       false,
		Reason:          reason,
	}

	created, err := c.store.Assign(ctx, requestID, a, eta)
	if errors.Is(err, store.ErrWindowConflict) {
		return nil, fmt.Errorf("%w: vehicle %s", ErrConflictUnresolvable, vehicleID)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// estimateArrival converts a straight-line distance into an arrival
// estimate at the configured average speed.
func (c *Coordinator) estimateArrival(distanceKm float64) time.Time {
	travel := time.Duration(distanceKm / c.opts.AverageSpeedKmh * float64(time.Hour))
	return c.now().Add(travel)
}
