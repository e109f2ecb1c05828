package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrGeocodeUnavailable reports that a free-text address could not be
// resolved into a coordinate. Callers should fall back to manual
// assignment.
var ErrGeocodeUnavailable = errors.New("geocoding unavailable")

// Geocoder resolves a free-text address into a coordinate. The actual
// resolution is an external collaborator responsibility.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}

// HTTPGeocoder queries a Nominatim-style search endpoint.
type HTTPGeocoder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGeocoder creates a geocoder against the given search endpoint.
func NewHTTPGeocoder(baseURL string, timeout time.Duration) *HTTPGeocoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGeocoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves an address. Any transport or decoding failure, and an
// empty result set, surface as ErrGeocodeUnavailable.
func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Coordinate, error) {
	u := fmt.Sprintf("%s?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: failed to create request: %v", ErrGeocodeUnavailable, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Coordinate{}, fmt.Errorf("%w: received status %d", ErrGeocodeUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %v", ErrGeocodeUnavailable, err)
	}

	var results []geocodeResult
	if err := json.Unmarshal(body, &results); err != nil {
		return Coordinate{}, fmt.Errorf("%w: failed to decode response: %v", ErrGeocodeUnavailable, err)
	}
	if len(results) == 0 {
		return Coordinate{}, fmt.Errorf("%w: no match for %q", ErrGeocodeUnavailable, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: bad latitude %q", ErrGeocodeUnavailable, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: bad longitude %q", ErrGeocodeUnavailable, results[0].Lon)
	}

	return Coordinate{Latitude: lat, Longitude: lon}, nil
}
