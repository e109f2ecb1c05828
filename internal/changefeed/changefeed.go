// Package changefeed wraps the external push-event transport behind a
// narrow subscription interface. Deliveries are treated as at-least-once
// and unordered: the listener deduplicates by event identifier and
// reacts by dropping its cached view so the next read fetches
// authoritative state, never by trusting the payload.
package changefeed

import (
	"context"
	"log"
	"time"

	"transport-dispatch-backend/internal/cache"
	"transport-dispatch-backend/internal/store"
)

// ChangeEvent is one change signal from the push transport.
type ChangeEvent struct {
	ID       string    `json:"id"`
	Table    string    `json:"table"`
	Kind     string    `json:"kind"` // insert | update | delete
	RecordID string    `json:"recordId"`
	At       time.Time `json:"at"`
}

// Subscriber delivers change signals for one table. Implementations own
// reconnection and transport semantics; the core never sees them.
type Subscriber interface {
	Subscribe(ctx context.Context, table string) (<-chan ChangeEvent, error)
}

// RequestsTable is the change-feed table name for transport requests.
const RequestsTable = "transport_requests"

// dedupeTTL bounds how long a seen event ID is remembered. Duplicates
// arriving later than this re-trigger an invalidation, which is
// harmless.
const dedupeTTL = 10 * time.Minute

// Listener consumes request change signals and keeps the store's read
// cache honest.
type Listener struct {
	sub   Subscriber
	store store.Store
	seen  *cache.Cache
}

// NewListener creates a listener over the given subscriber and store.
func NewListener(sub Subscriber, s store.Store) *Listener {
	return &Listener{
		sub:   sub,
		store: s,
		seen:  cache.New(dedupeTTL),
	}
}

// Run subscribes to request changes and processes signals until the
// context is cancelled or the subscription channel closes.
func (l *Listener) Run(ctx context.Context) error {
	events, err := l.sub.Subscribe(ctx, RequestsTable)
	if err != nil {
		return err
	}
	log.Printf("change feed listening on %s", RequestsTable)

	for {
		select {
		case <-ctx.Done():
			log.Println("change feed shutting down")
			return nil
		case event, ok := <-events:
			if !ok {
				log.Println("change feed subscription closed")
				return nil
			}
			l.handle(event)
		}
	}
}

// handle invalidates the cached view for a not-yet-seen signal.
func (l *Listener) handle(event ChangeEvent) {
	if event.ID != "" {
		if _, dup := l.seen.Get(event.ID); dup {
			return
		}
		l.seen.Set(event.ID, struct{}{})
	}

	if event.RecordID == "" {
		return
	}
	l.store.InvalidateRequest(event.RecordID)
}
