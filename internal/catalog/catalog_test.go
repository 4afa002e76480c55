// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package catalog

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/trailmark-dev/trailmark/internal/cache"
	"github.com/trailmark-dev/trailmark/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := cache.New(time.Minute, 100)
	t.Cleanup(c.Stop)

	return New(config.CatalogConfig{
		URL:         srv.URL,
		Timeout:     5 * time.Second,
		MaxGPXBytes: 1024,
	}, c)
}

func TestNormalizeDistanceKm(t *testing.T) {
	tests := []struct {
		distance float64
		unit     string
		want     float64
	}{
		{5, "km", 5},
		{3.1, "miles", 4.988954},
		{5000, "meters", 5},
		{7000, "steps", 7},
		{5, "Miles", 8.0467},
		{5, "", 5},
		{5, "furlongs", 5},
	}
	for _, tt := range tests {
		got := NormalizeDistanceKm(tt.distance, tt.unit)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("NormalizeDistanceKm(%v, %q) = %v, want %v", tt.distance, tt.unit, got, tt.want)
		}
	}
}

func TestGetRoute(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/routes/r-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"id":"r-1","name":"Strip Loop","distance":3.1,"distanceUnit":"miles","gpxUrl":"https://cdn.example.com/strip.gpx","difficulty":"easy"}`))
	}))

	route, err := c.GetRoute(context.Background(), "r-1")
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if route.Name != "Strip Loop" || route.Difficulty != "easy" {
		t.Errorf("route = %+v", route)
	}
	if math.Abs(route.DistanceKm-3.1*1.60934) > 1e-6 {
		t.Errorf("DistanceKm = %v", route.DistanceKm)
	}
	if route.Synthesized {
		t.Error("healthy fetch marked synthesized")
	}

	// Second hit comes from cache.
	if _, err := c.GetRoute(context.Background(), "r-1"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}
}

func TestGetRouteDegradesOnFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	route, err := c.GetRoute(context.Background(), "r-9")
	if err != nil {
		t.Fatalf("degraded GetRoute returned error: %v", err)
	}
	if !route.Synthesized {
		t.Error("degraded route not marked synthesized")
	}
	if route.ID != "r-9" || route.DistanceKm != 0 {
		t.Errorf("synthesized route = %+v", route)
	}
}

func TestListRoutes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/routes" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"r-1","name":"Strip Loop","distance":5,"distanceUnit":"km"},{"id":"r-2","name":"Steps","distance":7000,"distanceUnit":"steps"}]`))
	}))

	routes, err := c.ListRoutes(context.Background())
	if err != nil {
		t.Fatalf("ListRoutes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("len = %d", len(routes))
	}
	if routes[1].DistanceKm != 7 {
		t.Errorf("steps route DistanceKm = %v, want 7", routes[1].DistanceKm)
	}
}

func TestListRoutesFailurePropagates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := c.ListRoutes(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestFetchGPX(t *testing.T) {
	body := `<gpx><trk><trkseg><trkpt lat="36.1" lon="-115.1"/></trkseg></trk></gpx>`
	c := newTestClient(t, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	data, err := c.FetchGPX(context.Background(), srv.URL+"/route.gpx")
	if err != nil {
		t.Fatalf("FetchGPX: %v", err)
	}
	if string(data) != body {
		t.Errorf("body mismatch")
	}
}

func TestFetchGPXRejectsNonGPXURL(t *testing.T) {
	c := newTestClient(t, nil)
	if _, err := c.FetchGPX(context.Background(), "https://example.com/file.zip"); err == nil {
		t.Error("non-gpx url accepted")
	}
}

func TestFetchGPXSizeCap(t *testing.T) {
	c := newTestClient(t, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	if _, err := c.FetchGPX(context.Background(), srv.URL+"/big.gpx"); !errors.Is(err, ErrGPXTooLarge) {
		t.Errorf("err = %v, want ErrGPXTooLarge", err)
	}
}
