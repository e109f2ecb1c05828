// Package store is the persistence facade for transport requests and
// vehicle assignments. Reads go through a short-lived TTL cache; every
// mutation is committed first, then reflected (cache invalidation and
// event publication happen only after the transaction resolves).
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transport-dispatch-backend/internal/cache"
	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/status"
)

var (
	// ErrPersistence wraps any collaborator I/O failure. Reads may be
	// retried by the caller; writes must not be retried silently.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidSchedule reports a round trip whose return time is not
	// strictly after the outbound time.
	ErrInvalidSchedule = errors.New("return time must be after departure time")

	// ErrRequestNotFound reports an operation on an unknown request.
	ErrRequestNotFound = errors.New("transport request not found")

	// ErrWindowConflict reports that the vehicle already has an active
	// assignment overlapping the requested window. Detected at commit
	// time, under the same transaction that would create the binding.
	ErrWindowConflict = errors.New("vehicle already assigned in overlapping window")
)

const (
	requestKeyPrefix = "request:"
	requestListKey   = "request:all"
)

// Publisher receives the event derived from a committed mutation.
// Publication must not block the mutating caller.
type Publisher interface {
	Publish(event model.Event)
}

// Store defines the persistence operations the dispatch core relies on.
type Store interface {
	ListRequests(ctx context.Context) ([]model.TransportRequest, error)
	GetRequest(ctx context.Context, id string) (*model.TransportRequest, error)
	CreateRequest(ctx context.Context, req *model.TransportRequest) (*model.TransportRequest, error)
	UpdateRequest(ctx context.Context, id string, updates map[string]any) (*model.TransportRequest, error)
	DeleteRequest(ctx context.Context, id string) error

	// Transition moves a request to the target status through the
	// status machine, persists the result and publishes the derived
	// event after commit.
	Transition(ctx context.Context, id string, target model.RequestStatus, data status.ChangeData) (*model.TransportRequest, error)

	// ActiveAssignments returns the scheduled and inProgress
	// assignments for one vehicle.
	ActiveAssignments(ctx context.Context, vehicleID string) ([]model.Assignment, error)

	// Assign atomically creates the assignment and transitions its
	// request to assigned with the given estimated arrival. The
	// vehicle's window is re-validated inside the transaction; a lost
	// race surfaces as ErrWindowConflict with no state change.
	Assign(ctx context.Context, requestID string, a model.Assignment, eta time.Time) (*model.Assignment, error)

	// InvalidateRequest drops any cached view of the given request so
	// the next read hits the database.
	InvalidateRequest(id string)

	DB() *gorm.DB
}

// gormStore implements Store using GORM, a read cache and a publisher.
type gormStore struct {
	db     *gorm.DB
	cache  *cache.Cache
	events Publisher

	// locks serializes writes per request key so a check-then-act
	// sequence on one request cannot interleave with another writer.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// New creates a gorm-backed store. The publisher may be nil, in which
// case committed mutations emit no events.
func New(db *gorm.DB, c *cache.Cache, events Publisher) Store {
	return &gormStore{
		db:     db,
		cache:  c,
		events: events,
		locks:  make(map[string]*sync.Mutex),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) lockRequest(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *gormStore) publish(event *model.Event) {
	if event == nil || s.events == nil {
		return
	}
	s.events.Publish(*event)
}

// validateSchedule enforces the round-trip invariant at store level.
func validateSchedule(req *model.TransportRequest) error {
	if req.ReturnDateTime != nil && !req.ReturnDateTime.After(req.DateTime) {
		return fmt.Errorf("%w: return %s, departure %s",
			ErrInvalidSchedule, req.ReturnDateTime.Format(time.RFC3339), req.DateTime.Format(time.RFC3339))
	}
	return nil
}

// ListRequests returns all requests, served from cache when fresh.
func (s *gormStore) ListRequests(ctx context.Context) ([]model.TransportRequest, error) {
	if cached, ok := s.cache.Get(requestListKey); ok {
		return cached.([]model.TransportRequest), nil
	}

	var requests []model.TransportRequest
	if err := s.db.WithContext(ctx).Order("date_time").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list requests: %w", ErrPersistence, err)
	}

	s.cache.Set(requestListKey, requests)
	return requests, nil
}

// GetRequest returns one request, or nil when it does not exist.
func (s *gormStore) GetRequest(ctx context.Context, id string) (*model.TransportRequest, error) {
	key := requestKeyPrefix + id
	if cached, ok := s.cache.Get(key); ok {
		req := cached.(model.TransportRequest)
		return &req, nil
	}

	var req model.TransportRequest
	err := s.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load request %s: %w", ErrPersistence, id, err)
	}

	s.cache.Set(key, req)
	return &req, nil
}

// CreateRequest persists a new request in status pending.
func (s *gormStore) CreateRequest(ctx context.Context, req *model.TransportRequest) (*model.TransportRequest, error) {
	if err := validateSchedule(req); err != nil {
		return nil, err
	}

	created := *req
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.Status = model.StatusPending
	created.AssignedVehicle = nil
	created.EstimatedArrival = nil

	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrPersistence, err)
	}

	s.cache.Invalidate(requestKeyPrefix)
	return &created, nil
}

// UpdateRequest applies a partial update to a request's own fields.
// Status changes must go through Transition instead.
func (s *gormStore) UpdateRequest(ctx context.Context, id string, updates map[string]any) (*model.TransportRequest, error) {
	unlock := s.lockRequest(id)
	defer unlock()

	delete(updates, "status")

	var updated model.TransportRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
			}
			return fmt.Errorf("%w: failed to load request %s: %w", ErrPersistence, id, err)
		}
		if err := tx.Model(&updated).Updates(updates).Error; err != nil {
			return fmt.Errorf("%w: failed to update request %s: %w", ErrPersistence, id, err)
		}
		if err := validateSchedule(&updated); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(requestKeyPrefix)
	return &updated, nil
}

// DeleteRequest removes a request record. Normal operation ends a
// request at completed or cancelled; deletion exists for administrative
// cleanup only.
func (s *gormStore) DeleteRequest(ctx context.Context, id string) error {
	unlock := s.lockRequest(id)
	defer unlock()

	if err := s.db.WithContext(ctx).Delete(&model.TransportRequest{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("%w: failed to delete request %s: %w", ErrPersistence, id, err)
	}

	s.cache.Invalidate(requestKeyPrefix)
	return nil
}

// Transition validates and applies a status change, closing the
// request's active assignments when it reaches a terminal status. The
// event derived by the status machine is published only after commit.
func (s *gormStore) Transition(ctx context.Context, id string, target model.RequestStatus, data status.ChangeData) (*model.TransportRequest, error) {
	unlock := s.lockRequest(id)
	defer unlock()

	var updated model.TransportRequest
	var event *model.Event

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.TransportRequest
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
			}
			return fmt.Errorf("%w: failed to load request %s: %w", ErrPersistence, id, err)
		}

		next, ev, err := status.Apply(current, target, data, s.now())
		if err != nil {
			return err
		}

		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("%w: failed to persist transition for %s: %w", ErrPersistence, id, err)
		}

		if target == model.StatusCompleted || target == model.StatusCancelled {
			if err := closeAssignments(tx, id, target); err != nil {
				return err
			}
		}

		updated = next
		event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(requestKeyPrefix)
	s.publish(event)
	return &updated, nil
}

// closeAssignments terminates the active assignments of a request when
// the request itself reaches a terminal status.
func closeAssignments(tx *gorm.DB, requestID string, target model.RequestStatus) error {
	final := model.AssignmentCancelled
	if target == model.StatusCompleted {
		final = model.AssignmentCompleted
	}
	err := tx.Model(&model.Assignment{}).
		Where("request_id = ? AND status IN ?", requestID,
			[]model.AssignmentStatus{model.AssignmentScheduled, model.AssignmentInProgress}).
		Update("status", final).Error
	if err != nil {
		return fmt.Errorf("%w: failed to close assignments for %s: %w", ErrPersistence, requestID, err)
	}
	return nil
}

// ActiveAssignments returns the vehicle's scheduled and inProgress
// assignments.
func (s *gormStore) ActiveAssignments(ctx context.Context, vehicleID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND status IN ?", vehicleID,
			[]model.AssignmentStatus{model.AssignmentScheduled, model.AssignmentInProgress}).
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load assignments for vehicle %s: %w", ErrPersistence, vehicleID, err)
	}
	return assignments, nil
}

// Assign creates the assignment and moves the request to assigned under
// one transaction. The vehicle's active windows are re-checked inside
// the transaction so two racing callers cannot both bind the vehicle.
func (s *gormStore) Assign(ctx context.Context, requestID string, a model.Assignment, eta time.Time) (*model.Assignment, error) {
	unlock := s.lockRequest(requestID)
	defer unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.RequestID = requestID
	a.Status = model.AssignmentScheduled
	if a.AssignedAt.IsZero() {
		a.AssignedAt = s.now()
	}

	var event *model.Event

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.TransportRequest
		if err := tx.First(&current, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrRequestNotFound, requestID)
			}
			return fmt.Errorf("%w: failed to load request %s: %w", ErrPersistence, requestID, err)
		}

		// Commit-time revalidation of the conflict check.
		var active []model.Assignment
		err := tx.Where("vehicle_id = ? AND status IN ?", a.VehicleID,
			[]model.AssignmentStatus{model.AssignmentScheduled, model.AssignmentInProgress}).
			Find(&active).Error
		if err != nil {
			return fmt.Errorf("%w: failed to load assignments for vehicle %s: %w", ErrPersistence, a.VehicleID, err)
		}
		for i := range active {
			if active[i].OverlapsWindow(a.WindowStart, a.WindowEnd) {
				return fmt.Errorf("%w: vehicle %s, window starting %s",
					ErrWindowConflict, a.VehicleID, a.WindowStart.Format(time.RFC3339))
			}
		}

		next, ev, err := status.Apply(current, model.StatusAssigned, status.ChangeData{
			Vehicle:          a.VehicleID,
			EstimatedArrival: &eta,
		}, s.now())
		if err != nil {
			return err
		}

		if err := tx.Save(&next).Error; err != nil {
			return fmt.Errorf("%w: failed to persist transition for %s: %w", ErrPersistence, requestID, err)
		}
		if err := tx.Create(&a).Error; err != nil {
			return fmt.Errorf("%w: failed to create assignment: %w", ErrPersistence, err)
		}

		event = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(requestKeyPrefix)
	s.publish(event)
	return &a, nil
}

// InvalidateRequest drops the cached view of one request and the list.
func (s *gormStore) InvalidateRequest(id string) {
	s.cache.Invalidate(requestKeyPrefix + id)
	s.cache.Invalidate(requestListKey)
}
