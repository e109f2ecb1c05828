package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transport-dispatch-backend/internal/model"
)

func TestCanTransition(t *testing.T) {
	all := []model.RequestStatus{
		model.StatusPending, model.StatusAssigned, model.StatusInRoute,
		model.StatusCompleted, model.StatusCancelled,
	}

	allowed := map[model.RequestStatus][]model.RequestStatus{
		model.StatusPending:   {model.StatusAssigned, model.StatusCancelled},
		model.StatusAssigned:  {model.StatusInRoute, model.StatusCancelled},
		model.StatusInRoute:   {model.StatusCompleted, model.StatusCancelled},
		model.StatusCompleted: {},
		model.StatusCancelled: {model.StatusPending},
	}

	for from, targets := range allowed {
		allowedSet := make(map[model.RequestStatus]bool)
		for _, to := range targets {
			allowedSet[to] = true
		}
		for _, to := range all {
			assert.Equal(t, allowedSet[to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func eta(t *testing.T) *time.Time {
	t.Helper()
	v := time.Now().Add(20 * time.Minute)
	return &v
}

func TestApply_CompletedIsTerminal(t *testing.T) {
	req := model.TransportRequest{ID: "r1", Status: model.StatusCompleted}

	for _, target := range []model.RequestStatus{
		model.StatusPending, model.StatusAssigned, model.StatusInRoute, model.StatusCancelled,
	} {
		_, _, err := Apply(req, target, ChangeData{Vehicle: "v1", EstimatedArrival: eta(t)}, time.Now())
		assert.True(t, errors.Is(err, ErrInvalidTransition), "completed -> %s must fail", target)
	}
}

func TestApply_MissingAssignmentData(t *testing.T) {
	req := model.TransportRequest{ID: "r1", Status: model.StatusPending}

	testCases := []struct {
		name string
		data ChangeData
	}{
		{name: "no vehicle", data: ChangeData{EstimatedArrival: eta(t)}},
		{name: "no eta", data: ChangeData{Vehicle: "v1"}},
		{name: "nothing", data: ChangeData{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			updated, event, err := Apply(req, model.StatusAssigned, tc.data, time.Now())
			assert.True(t, errors.Is(err, ErrMissingAssignmentData))
			assert.Nil(t, event)
			assert.Equal(t, model.StatusPending, updated.Status, "request must be unchanged")
		})
	}
}

func TestApply_AssignPopulatesVehicleAndETA(t *testing.T) {
	req := model.TransportRequest{ID: "r1", Status: model.StatusPending}
	arrival := eta(t)

	updated, event, err := Apply(req, model.StatusAssigned, ChangeData{Vehicle: "v1", EstimatedArrival: arrival}, time.Now())
	require.NoError(t, err)

	require.NotNil(t, updated.AssignedVehicle)
	assert.Equal(t, "v1", *updated.AssignedVehicle)
	require.NotNil(t, updated.EstimatedArrival)
	assert.True(t, updated.EstimatedArrival.Equal(*arrival))
	assert.Equal(t, model.StatusAssigned, updated.Status)

	require.NotNil(t, event)
	assert.Equal(t, model.CategoryRequestStatus, event.Category)
	assert.Equal(t, model.PriorityMedium, event.Priority)
	assert.Equal(t, model.StatusPending, event.OldStatus)
	assert.Equal(t, model.StatusAssigned, event.NewStatus)
	assert.NotEmpty(t, event.ID)

	// Input must not have been mutated.
	assert.Nil(t, req.AssignedVehicle)
	assert.Equal(t, model.StatusPending, req.Status)
}

func TestApply_CancellationClearsAssignmentAndIsHighPriority(t *testing.T) {
	vehicle := "v1"
	arrival := eta(t)
	req := model.TransportRequest{
		ID:               "r1",
		Status:           model.StatusAssigned,
		AssignedVehicle:  &vehicle,
		EstimatedArrival: arrival,
	}

	updated, event, err := Apply(req, model.StatusCancelled, ChangeData{}, time.Now())
	require.NoError(t, err)

	assert.Nil(t, updated.AssignedVehicle)
	assert.Nil(t, updated.EstimatedArrival)
	assert.Equal(t, model.StatusCancelled, updated.Status)

	require.NotNil(t, event)
	assert.Equal(t, model.PriorityHigh, event.Priority)
}

func TestApply_ReactivationFromCancelled(t *testing.T) {
	req := model.TransportRequest{ID: "r1", Status: model.StatusCancelled}

	updated, event, err := Apply(req, model.StatusPending, ChangeData{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, updated.Status)
	assert.Nil(t, updated.AssignedVehicle)

	require.NotNil(t, event)
	assert.Equal(t, model.PriorityMedium, event.Priority)
}
