package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"transport-dispatch-backend/internal/cache"
	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/status"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *capturePublisher) Publish(event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) all() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Event, len(p.events))
	copy(out, p.events)
	return out
}

func newStoreEnv(t *testing.T) (*gorm.DB, Store, *capturePublisher) {
	t.Helper()

	dsn := fmt.Sprintf("file:store-%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.TransportRequest{}, &model.Assignment{}))

	pub := &capturePublisher{}
	s := New(db, cache.New(time.Minute), pub)
	return db, s, pub
}

func newRequest(dateTime time.Time) *model.TransportRequest {
	return &model.TransportRequest{
		PatientName:        "Ana Sousa",
		PatientID:          "P-1042",
		OriginAddress:      "Rua das Flores 10, Porto",
		DestinationAddress: "Hospital de Santo António, Porto",
		DateTime:           dateTime,
		TransportMode:      model.ModeStretcher,
		ServiceType:        model.ServiceConsultation,
		CreatedBy:          "scheduler",
	}
}

func TestCreateRequest(t *testing.T) {
	_, s, _ := newStoreEnv(t)
	ctx := context.Background()
	departure := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	t.Run("forces pending and generates an ID", func(t *testing.T) {
		req := newRequest(departure)
		req.Status = model.StatusAssigned
		vehicle := "v-1"
		req.AssignedVehicle = &vehicle

		created, err := s.CreateRequest(ctx, req)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, model.StatusPending, created.Status)
		assert.Nil(t, created.AssignedVehicle)
		assert.Nil(t, created.EstimatedArrival)
	})

	t.Run("rejects a return leg at or before departure", func(t *testing.T) {
		req := newRequest(departure)
		sameTime := departure
		req.ReturnDateTime = &sameTime

		_, err := s.CreateRequest(ctx, req)
		require.ErrorIs(t, err, ErrInvalidSchedule)

		requests, err := s.ListRequests(ctx)
		require.NoError(t, err)
		for _, r := range requests {
			assert.Nil(t, r.ReturnDateTime)
		}
	})

	t.Run("accepts a valid round trip", func(t *testing.T) {
		req := newRequest(departure)
		ret := departure.Add(3 * time.Hour)
		req.ReturnDateTime = &ret

		created, err := s.CreateRequest(ctx, req)
		require.NoError(t, err)
		assert.True(t, created.RoundTrip())
	})
}

func TestGetRequestCaching(t *testing.T) {
	db, s, _ := newStoreEnv(t)
	ctx := context.Background()

	created, err := s.CreateRequest(ctx, newRequest(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)

	t.Run("unknown id reads as absent", func(t *testing.T) {
		got, err := s.GetRequest(ctx, "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("serves the cached row until invalidated", func(t *testing.T) {
		first, err := s.GetRequest(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, "Ana Sousa", first.PatientName)

		// Mutate behind the store's back; the cached copy must win.
		require.NoError(t, db.Exec(
			"UPDATE transport_requests SET patient_name = ? WHERE id = ?",
			"Maria Pinto", created.ID).Error)

		second, err := s.GetRequest(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana Sousa", second.PatientName)

		s.InvalidateRequest(created.ID)

		third, err := s.GetRequest(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Maria Pinto", third.PatientName)
	})
}

func TestUpdateRequest(t *testing.T) {
	_, s, _ := newStoreEnv(t)
	ctx := context.Background()
	departure := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	created, err := s.CreateRequest(ctx, newRequest(departure))
	require.NoError(t, err)

	t.Run("applies a partial update", func(t *testing.T) {
		updated, err := s.UpdateRequest(ctx, created.ID, map[string]any{
			"observations": "needs oxygen on board",
		})
		require.NoError(t, err)
		assert.Equal(t, "needs oxygen on board", updated.Observations)
		assert.Equal(t, "Ana Sousa", updated.PatientName)
	})

	t.Run("ignores a status key", func(t *testing.T) {
		updated, err := s.UpdateRequest(ctx, created.ID, map[string]any{
			"status":       model.StatusCompleted,
			"observations": "status must not change here",
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, updated.Status)
	})

	t.Run("rolls back a schedule made invalid", func(t *testing.T) {
		before := departure.Add(-time.Hour)
		_, err := s.UpdateRequest(ctx, created.ID, map[string]any{
			"return_date_time": before,
		})
		require.ErrorIs(t, err, ErrInvalidSchedule)

		reloaded, err := s.GetRequest(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, reloaded.ReturnDateTime)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.UpdateRequest(ctx, "no-such-id", map[string]any{"observations": "x"})
		require.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestTransition(t *testing.T) {
	db, s, pub := newStoreEnv(t)
	ctx := context.Background()
	eta := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)

	created, err := s.CreateRequest(ctx, newRequest(time.Now().UTC().Add(time.Hour)))
	require.NoError(t, err)

	t.Run("rejects skipping the assignment step", func(t *testing.T) {
		_, err := s.Transition(ctx, created.ID, model.StatusCompleted, status.ChangeData{})
		require.ErrorIs(t, err, status.ErrInvalidTransition)
		assert.Empty(t, pub.all())
	})

	t.Run("assignment states require vehicle and arrival", func(t *testing.T) {
		_, err := s.Transition(ctx, created.ID, model.StatusAssigned, status.ChangeData{})
		require.ErrorIs(t, err, status.ErrMissingAssignmentData)
	})

	t.Run("publishes after a committed change", func(t *testing.T) {
		updated, err := s.Transition(ctx, created.ID, model.StatusAssigned, status.ChangeData{
			Vehicle:          "v-7",
			EstimatedArrival: &eta,
		})
		require.NoError(t, err)
		require.NotNil(t, updated.AssignedVehicle)
		assert.Equal(t, "v-7", *updated.AssignedVehicle)

		events := pub.all()
		require.Len(t, events, 1)
		assert.Equal(t, model.CategoryRequestStatus, events[0].Category)
		assert.Equal(t, model.StatusPending, events[0].OldStatus)
		assert.Equal(t, model.StatusAssigned, events[0].NewStatus)
	})

	t.Run("terminal status closes active assignments", func(t *testing.T) {
		require.NoError(t, db.Create(&model.Assignment{
			ID:          "as-1",
			RequestID:   created.ID,
			VehicleID:   "v-7",
			AssignedAt:  time.Now().UTC(),
			WindowStart: time.Now().UTC(),
			Status:      model.AssignmentScheduled,
		}).Error)

		updated, err := s.Transition(ctx, created.ID, model.StatusCancelled, status.ChangeData{})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, updated.Status)
		assert.Nil(t, updated.AssignedVehicle)
		assert.Nil(t, updated.EstimatedArrival)

		var closed model.Assignment
		require.NoError(t, db.First(&closed, "id = ?", "as-1").Error)
		assert.Equal(t, model.AssignmentCancelled, closed.Status)
	})

	t.Run("cancelled request can be reopened", func(t *testing.T) {
		updated, err := s.Transition(ctx, created.ID, model.StatusPending, status.ChangeData{})
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, updated.Status)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Transition(ctx, "no-such-id", model.StatusCancelled, status.ChangeData{})
		require.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestAssign(t *testing.T) {
	db, s, pub := newStoreEnv(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	windowEnd := now.Add(2 * time.Hour)

	created, err := s.CreateRequest(ctx, newRequest(now.Add(time.Hour)))
	require.NoError(t, err)

	t.Run("binds vehicle and request atomically", func(t *testing.T) {
		a, err := s.Assign(ctx, created.ID, model.Assignment{
			VehicleID:   "v-3",
			WindowStart: now,
			WindowEnd:   &windowEnd,
			Automatic:   true,
		}, now.Add(20*time.Minute))
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.Equal(t, model.AssignmentScheduled, a.Status)

		reloaded, err := s.GetRequest(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, reloaded.AssignedVehicle)
		assert.Equal(t, "v-3", *reloaded.AssignedVehicle)
		require.NotNil(t, reloaded.EstimatedArrival)

		events := pub.all()
		require.Len(t, events, 1)
		assert.Equal(t, model.StatusAssigned, events[0].NewStatus)
	})

	t.Run("overlapping window is rejected with no state change", func(t *testing.T) {
		other, err := s.CreateRequest(ctx, newRequest(now.Add(90*time.Minute)))
		require.NoError(t, err)

		_, err = s.Assign(ctx, other.ID, model.Assignment{
			VehicleID:   "v-3",
			WindowStart: now.Add(time.Hour),
			WindowEnd:   nil, // unbounded, conservatively overlaps
		}, now.Add(45*time.Minute))
		require.ErrorIs(t, err, ErrWindowConflict)

		reloaded, err := s.GetRequest(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, reloaded.Status)
		assert.Nil(t, reloaded.AssignedVehicle)

		var count int64
		require.NoError(t, db.Model(&model.Assignment{}).
			Where("request_id = ?", other.ID).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("adjacent window on the same vehicle is allowed", func(t *testing.T) {
		other, err := s.CreateRequest(ctx, newRequest(now.Add(3*time.Hour)))
		require.NoError(t, err)

		laterEnd := windowEnd.Add(2 * time.Hour)
		_, err = s.Assign(ctx, other.ID, model.Assignment{
			VehicleID:   "v-3",
			WindowStart: windowEnd,
			WindowEnd:   &laterEnd,
		}, windowEnd.Add(15*time.Minute))
		require.NoError(t, err)
	})

	t.Run("unknown request", func(t *testing.T) {
		_, err := s.Assign(ctx, "no-such-id", model.Assignment{
			VehicleID:   "v-3",
			WindowStart: now.Add(24 * time.Hour),
		}, now.Add(24*time.Hour))
		require.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestActiveAssignments(t *testing.T) {
	db, s, _ := newStoreEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []model.Assignment{
		{ID: "a-1", RequestID: "r-1", VehicleID: "v-1", AssignedAt: now, WindowStart: now, Status: model.AssignmentScheduled},
		{ID: "a-2", RequestID: "r-2", VehicleID: "v-1", AssignedAt: now, WindowStart: now, Status: model.AssignmentInProgress},
		{ID: "a-3", RequestID: "r-3", VehicleID: "v-1", AssignedAt: now, WindowStart: now, Status: model.AssignmentCompleted},
		{ID: "a-4", RequestID: "r-4", VehicleID: "v-2", AssignedAt: now, WindowStart: now, Status: model.AssignmentScheduled},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	active, err := s.ActiveAssignments(ctx, "v-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, a := range active {
		assert.Equal(t, "v-1", a.VehicleID)
		assert.True(t, a.Status.Active())
	}
}
