// Package tracker maintains the in-memory view of vehicle positions and
// operational alerts by polling the external location feed. The core
// never writes vehicle state; each poll replaces the snapshot wholesale.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"transport-dispatch-backend/config"
	"transport-dispatch-backend/internal/model"
)

// Service polls the location feed and serves the latest snapshot.
type Service struct {
	cfg    *config.Config
	client *http.Client

	mu       sync.RWMutex
	vehicles []model.VehicleLocation
	alerts   []model.LocationAlert
}

// NewService creates and initializes a new tracker service.
func NewService(cfg *config.Config) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.Tracker.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.Tracker.HTTPProxy)
		if err != nil {
			log.Printf("Warning: invalid proxy URL %q: %v. Tracker will not use a proxy.", cfg.Tracker.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
	}
}

// Run starts both polling loops until the context is cancelled.
// Vehicle positions and alerts refresh on independent intervals.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Tracker.Enabled {
		log.Println("Tracker is disabled. Not starting.")
		return
	}
	log.Println("Starting tracker service...")

	s.PollVehiclesOnce(ctx)
	s.PollAlertsOnce(ctx)

	vehicleTimer := time.NewTimer(s.cfg.Tracker.VehicleInterval)
	defer vehicleTimer.Stop()
	alertTimer := time.NewTimer(s.cfg.Tracker.AlertInterval)
	defer alertTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker service shutting down.")
			return
		case <-vehicleTimer.C:
			s.PollVehiclesOnce(ctx)
			vehicleTimer.Reset(s.cfg.Tracker.VehicleInterval)
		case <-alertTimer.C:
			s.PollAlertsOnce(ctx)
			alertTimer.Reset(s.cfg.Tracker.AlertInterval)
		}
	}
}

// PollVehiclesOnce refreshes the vehicle snapshot. A failed fetch keeps
// the previous snapshot in place.
func (s *Service) PollVehiclesOnce(ctx context.Context) {
	var resp VehicleFeedResponse
	if err := s.fetch(ctx, s.cfg.Tracker.VehiclesURL, &resp); err != nil {
		log.Printf("Error fetching vehicle locations: %v", err)
		return
	}
	if resp.Code != 0 {
		log.Printf("Location feed returned non-zero application code: %d", resp.Code)
		return
	}

	now := time.Now().UTC()
	items := resp.Data.Items
	for i := range items {
		if items[i].ObservedAt.IsZero() {
			items[i].ObservedAt = now
		}
	}

	s.mu.Lock()
	s.vehicles = items
	s.mu.Unlock()
	log.Printf("Vehicle snapshot refreshed: %d vehicles", len(items))
}

// PollAlertsOnce refreshes the alert snapshot.
func (s *Service) PollAlertsOnce(ctx context.Context) {
	var resp AlertFeedResponse
	if err := s.fetch(ctx, s.cfg.Tracker.AlertsURL, &resp); err != nil {
		log.Printf("Error fetching alerts: %v", err)
		return
	}
	if resp.Code != 0 {
		log.Printf("Alert feed returned non-zero application code: %d", resp.Code)
		return
	}

	s.mu.Lock()
	s.alerts = resp.Data.Items
	s.mu.Unlock()
}

// Vehicles returns a copy of the latest vehicle snapshot.
func (s *Service) Vehicles() []model.VehicleLocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.VehicleLocation, len(s.vehicles))
	copy(out, s.vehicles)
	return out
}

// Alerts returns a copy of the latest alerts, optionally including
// already resolved ones.
func (s *Service) Alerts(includeResolved bool) []model.LocationAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LocationAlert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if !includeResolved && a.Resolved {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ResolveAlert marks an alert resolved at the feed and refreshes the
// local snapshot.
func (s *Service) ResolveAlert(ctx context.Context, id string) error {
	u := fmt.Sprintf("%s/%s/resolve", s.cfg.Tracker.AlertsURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create resolve request: %w", err)
	}
	for key, value := range s.cfg.Tracker.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resolve request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("received non-success status code: %d", resp.StatusCode)
	}

	s.PollAlertsOnce(ctx)
	return nil
}

// fetch performs one GET against the feed and decodes the JSON body.
func (s *Service) fetch(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.cfg.Tracker.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal feed response: %w", err)
	}
	return nil
}
