// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package catalog is the read-only client for the external route catalog.
// The catalog is not ours: routes arrive with mixed distance units and an
// optional GPX URL, and the upstream can be down during the event. Route
// submissions therefore degrade to a synthesized minimal record instead of
// failing the caller's request.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/cache"
	"github.com/trailmark-dev/trailmark/internal/config"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
)

// ErrUpstreamUnavailable marks a catalog fetch failure. Callers on the
// route-submission path treat it as degradable, not fatal.
var ErrUpstreamUnavailable = errors.New("catalog: upstream unavailable")

// ErrGPXTooLarge rejects a GPX download that exceeds the configured cap.
var ErrGPXTooLarge = errors.New("catalog: gpx file exceeds size limit")

// Route is a catalog route with its distance normalized to kilometers.
type Route struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	DistanceKm  float64 `json:"distance_km"`
	GPXURL      string  `json:"gpx_url,omitempty"`
	Difficulty  string  `json:"difficulty,omitempty"`
	Synthesized bool    `json:"synthesized,omitempty"`
}

// rawRoute is the catalog's wire shape before unit normalization.
type rawRoute struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Distance     float64 `json:"distance"`
	DistanceUnit string  `json:"distanceUnit"`
	GPXURL       string  `json:"gpxUrl"`
	Difficulty   string  `json:"difficulty"`
}

const (
	cacheKeyPrefix = "route:"
	listCacheKey   = "routes:all"
	milesToKm      = 1.60934
)

// Client fetches routes from the catalog with a short TTL cache in front.
type Client struct {
	httpClient *http.Client
	cfg        config.CatalogConfig
	cache      cache.Store
	log        zerolog.Logger
}

// New returns a catalog client. The cache may be shared with other
// consumers; keys are prefixed.
func New(cfg config.CatalogConfig, c cache.Store) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cache:      c,
		log:        logging.WithComponent("catalog"),
	}
}

// GetRoute resolves one route by id. On upstream failure it returns a
// synthesized minimal record (zero distance, Synthesized set) so the
// submission flow can continue; the failure is logged and counted.
func (c *Client) GetRoute(ctx context.Context, id string) (*Route, error) {
	if cached, ok := c.cache.Get(cacheKeyPrefix + id); ok {
		metrics.CacheHits.WithLabelValues("catalog").Inc()
		r := cached.(Route)
		return &r, nil
	}
	metrics.CacheMisses.WithLabelValues("catalog").Inc()

	raw, err := c.fetchRoute(ctx, id)
	if err != nil {
		metrics.CatalogDegraded.Inc()
		c.log.Warn().Err(err).Str("route_id", id).
			Msg("catalog unavailable, synthesizing minimal route")
		return &Route{ID: id, Name: "Route " + id, Synthesized: true}, nil
	}

	route := normalize(raw)
	c.cache.Set(cacheKeyPrefix+id, *route)
	return route, nil
}

// ListRoutes returns every route in the catalog. Unlike GetRoute there is
// nothing sensible to synthesize, so failures propagate.
func (c *Client) ListRoutes(ctx context.Context) ([]Route, error) {
	if cached, ok := c.cache.Get(listCacheKey); ok {
		metrics.CacheHits.WithLabelValues("catalog").Inc()
		return cached.([]Route), nil
	}
	metrics.CacheMisses.WithLabelValues("catalog").Inc()

	started := time.Now()
	var raws []rawRoute
	if err := c.getJSON(ctx, c.cfg.URL+"/routes", &raws); err != nil {
		return nil, err
	}
	metrics.CatalogFetchDuration.Observe(time.Since(started).Seconds())

	routes := make([]Route, 0, len(raws))
	for _, raw := range raws {
		routes = append(routes, *normalize(&raw))
	}
	c.cache.Set(listCacheKey, routes)
	return routes, nil
}

// FetchGPX downloads a route's GPX document, capped at the configured
// byte limit. Only URLs that look like GPX files are accepted.
func (c *Client) FetchGPX(ctx context.Context, gpxURL string) ([]byte, error) {
	if !strings.Contains(strings.ToLower(gpxURL), ".gpx") {
		return nil, fmt.Errorf("catalog: not a gpx url: %s", gpxURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gpxURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	// Read one byte past the cap to distinguish "exactly at limit" from
	// "truncated".
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxGPXBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if int64(len(data)) > c.cfg.MaxGPXBytes {
		return nil, ErrGPXTooLarge
	}
	return data, nil
}

func (c *Client) fetchRoute(ctx context.Context, id string) (*rawRoute, error) {
	started := time.Now()
	var raw rawRoute
	if err := c.getJSON(ctx, c.cfg.URL+"/routes/"+id, &raw); err != nil {
		return nil, err
	}
	metrics.CatalogFetchDuration.Observe(time.Since(started).Seconds())
	return &raw, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

func normalize(raw *rawRoute) *Route {
	return &Route{
		ID:         raw.ID,
		Name:       raw.Name,
		DistanceKm: NormalizeDistanceKm(raw.Distance, raw.DistanceUnit),
		GPXURL:     raw.GPXURL,
		Difficulty: raw.Difficulty,
	}
}

// NormalizeDistanceKm converts a catalog distance to kilometers. Unknown
// units are passed through as kilometers; the catalog has historically
// only ever emitted these four.
func NormalizeDistanceKm(distance float64, unit string) float64 {
	switch strings.ToLower(unit) {
	case "miles":
		return distance * milesToKm
	case "meters", "steps":
		return distance / 1000
	default: // "km" and unlabeled
		return distance
	}
}
