// Package notification fans lifecycle events out to interested
// consumers: in-process subscribers registered by the embedding shell,
// and web push subscriptions persisted in the database. Delivery is
// at-most-once per consumer per event, with no retry and no durable
// queue.
package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"transport-dispatch-backend/internal/model"
	"transport-dispatch-backend/internal/parse"
)

// Sender sends a single web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Preferences filters which events a consumer receives. A nil Categories
// map enables every category; a nil QuietHours window disables
// suppression.
type Preferences struct {
	Categories map[model.EventCategory]bool
	QuietHours *parse.Window
}

// Consumer is an in-process notification recipient.
type Consumer interface {
	Notify(event model.Event)
	Preferences() Preferences
}

// Dispatcher fans out events on a worker pool so that a slow or failing
// consumer can never stall the mutation that produced the event.
type Dispatcher struct {
	size    int
	jobs    chan model.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
	now     func() time.Time

	mu        sync.RWMutex
	consumers []Consumer
}

// NewDispatcher creates a dispatcher with the given worker pool size.
func NewDispatcher(size int, db *gorm.DB, webpushOptions *webpush.Options) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		size:    size,
		jobs:    make(chan model.Event, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		go d.worker(ctx, i)
	}
}

// Register adds an in-process consumer.
func (d *Dispatcher) Register(c Consumer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consumers = append(d.consumers, c)
}

// Publish hands the event to the worker pool. It never blocks the
// caller; when the queue is saturated the event is dropped and logged,
// which at-most-once delivery permits.
func (d *Dispatcher) Publish(event model.Event) {
	select {
	case d.jobs <- event:
	default:
		log.Printf("notification queue full, dropping event %s (%s)", event.ID, event.Category)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case event := <-d.jobs:
			d.fanOut(ctx, event)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// deliverable applies the consumer's preference set. Emergency events
// bypass quiet hours unconditionally but still respect the category
// toggle.
func deliverable(prefs Preferences, event model.Event, now time.Time) bool {
	if prefs.Categories != nil && !prefs.Categories[event.Category] {
		return false
	}
	if event.Category == model.CategoryEmergency {
		return true
	}
	if prefs.QuietHours != nil && prefs.QuietHours.Contains(now) {
		return false
	}
	return true
}

func (d *Dispatcher) fanOut(ctx context.Context, event model.Event) {
	now := d.now()

	d.mu.RLock()
	consumers := make([]Consumer, len(d.consumers))
	copy(consumers, d.consumers)
	d.mu.RUnlock()

	for _, c := range consumers {
		if deliverable(c.Preferences(), event, now) {
			c.Notify(event)
		}
	}

	if d.db != nil && d.webpush != nil {
		d.fanOutPush(ctx, event, now)
	}
}

// subscriptionPreferences converts a stored subscription's settings into
// the dispatcher preference form.
func subscriptionPreferences(sub *model.PushSubscription) Preferences {
	prefs := Preferences{
		Categories: map[model.EventCategory]bool{
			model.CategoryRequestStatus:     sub.RequestStatusEnabled,
			model.CategoryVehicleAssignment: sub.VehicleAssignmentEnabled,
			model.CategoryEmergency:         sub.EmergencyEnabled,
			model.CategorySystem:            sub.SystemEnabled,
			model.CategoryChat:              sub.ChatEnabled,
		},
	}
	if sub.QuietHoursEnabled {
		w, err := parse.ParseWindow(sub.QuietStart, sub.QuietEnd)
		if err != nil {
			log.Printf("invalid quiet hours %q-%q for %s, ignoring: %v", sub.QuietStart, sub.QuietEnd, sub.Endpoint, err)
		} else {
			prefs.QuietHours = &w
		}
	}
	return prefs
}

func (d *Dispatcher) fanOutPush(ctx context.Context, event model.Event, now time.Time) {
	var subscriptions []model.PushSubscription
	if err := d.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("error fetching push subscriptions for event %s: %v", event.ID, err)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("error encoding event %s: %v", event.ID, err)
		return
	}

	for i := range subscriptions {
		sub := subscriptions[i]
		if !deliverable(subscriptionPreferences(&sub), event, now) {
			continue
		}
		d.sendPush(ctx, sub, payload)
	}
}

// sendPush delivers one web push notification, deleting the
// subscription when the push service reports it gone.
func (d *Dispatcher) sendPush(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := d.sender.Send(payload, wpSub, d.webpush)
	if err != nil {
		log.Printf("error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", sub.Endpoint)
		if err := d.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
