package changefeed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"transport-dispatch-backend/internal/cache"
	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/store"
)

// channelSubscriber feeds canned events into the listener.
type channelSubscriber struct {
	events chan ChangeEvent
}

func (s *channelSubscriber) Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, error) {
	return s.events, nil
}

func newListenerEnv(t *testing.T) (*Listener, store.Store, *channelSubscriber) {
	t.Helper()
	dsn := fmt.Sprintf("file:feed-%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.TransportRequest{}, &model.Assignment{}))

	s := store.New(db, cache.New(time.Minute), nil)
	sub := &channelSubscriber{events: make(chan ChangeEvent, 16)}
	return NewListener(sub, s), s, sub
}

func TestListener_InvalidatesOnChange(t *testing.T) {
	listener, s, sub := newListenerEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := s.CreateRequest(ctx, &model.TransportRequest{
		ID:                 "r1",
		PatientName:        "P",
		OriginAddress:      "A",
		DestinationAddress: "B",
		DateTime:           time.Now().Add(time.Hour),
		TransportMode:      model.ModeWalking,
		ServiceType:        model.ServiceConsultation,
	})
	require.NoError(t, err)

	// Warm the cache, then mutate behind the store's back the way a
	// concurrent writer in another process would.
	_, err = s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.NoError(t, s.DB().Model(&model.TransportRequest{}).
		Where("id = ?", req.ID).Update("patient_name", "Renamed").Error)

	cached, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "P", cached.PatientName, "cache still serves the pre-change view")

	done := make(chan struct{})
	go func() {
		listener.Run(ctx)
		close(done)
	}()

	sub.events <- ChangeEvent{ID: "ev-1", Table: RequestsTable, Kind: "update", RecordID: req.ID, At: time.Now()}

	assert.Eventually(t, func() bool {
		fresh, err := s.GetRequest(ctx, req.ID)
		return err == nil && fresh != nil && fresh.PatientName == "Renamed"
	}, time.Second, 10*time.Millisecond, "change signal must force a re-fetch of authoritative state")

	cancel()
	<-done
}

func TestListener_DeduplicatesByEventID(t *testing.T) {
	listener, s, _ := newListenerEnv(t)

	_, err := s.CreateRequest(context.Background(), &model.TransportRequest{
		ID:                 "r1",
		PatientName:        "P",
		OriginAddress:      "A",
		DestinationAddress: "B",
		DateTime:           time.Now().Add(time.Hour),
		TransportMode:      model.ModeWalking,
		ServiceType:        model.ServiceConsultation,
	})
	require.NoError(t, err)

	event := ChangeEvent{ID: "ev-dup", RecordID: "r1"}
	listener.handle(event)

	// Re-warm the cache, then replay the same event; the duplicate must
	// not invalidate again.
	_, err = s.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	require.NoError(t, s.DB().Model(&model.TransportRequest{}).
		Where("id = ?", "r1").Update("patient_name", "Changed").Error)

	listener.handle(event)

	cached, err := s.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "P", cached.PatientName, "duplicate signal must be ignored")

	// A distinct event ID for the same record does invalidate.
	listener.handle(ChangeEvent{ID: "ev-new", RecordID: "r1"})
	fresh, err := s.GetRequest(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Changed", fresh.PatientName)
}
