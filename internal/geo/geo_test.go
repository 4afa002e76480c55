// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{
			name: "zero distance",
			lat1: 36.10, lon1: -115.15,
			lat2: 36.10, lon2: -115.15,
			wantKm:    0,
			tolerance: 1e-12,
		},
		{
			name: "vegas strip segment",
			lat1: 36.10, lon1: -115.15,
			lat2: 36.11, lon2: -115.16,
			wantKm:    1.429,
			tolerance: 0.01,
		},
		{
			name: "las vegas to reno",
			lat1: 36.1699, lon1: -115.1398,
			lat2: 39.5296, lon2: -119.8138,
			wantKm:    554.9,
			tolerance: 2.0,
		},
		{
			name: "equator one degree longitude",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 1,
			wantKm:    111.19,
			tolerance: 0.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %v, want %v (±%v)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKmSymmetric(t *testing.T) {
	ab := HaversineKm(36.10, -115.15, 36.12, -115.17)
	ba := HaversineKm(36.12, -115.17, 36.10, -115.15)
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestBoundingBoxContains(t *testing.T) {
	tests := []struct {
		name     string
		box      BoundingBox
		lat, lon float64
		want     bool
	}{
		{"vegas inside nevada", Nevada, 36.1699, -115.1398, true},
		{"reno inside nevada", Nevada, 39.5296, -119.8138, true},
		{"los angeles outside nevada", Nevada, 34.0522, -118.2437, false},
		{"salt lake city outside nevada", Nevada, 40.7608, -111.8910, false},
		{"north edge inclusive", Nevada, 42.0, -117.0, true},
		{"south edge inclusive", Nevada, 35.0, -115.0, true},
		{"east edge inclusive", Nevada, 38.0, -114.0, true},
		{"west edge inclusive", Nevada, 38.0, -120.01, true},
		{"just past east edge", Nevada, 38.0, -113.99, false},
		{"strip inside metro", LasVegasMetro, 36.1147, -115.1728, true},
		{"red rock inside metro", LasVegasMetro, 36.135, -115.427, true},
		{"mesquite outside metro", LasVegasMetro, 36.8055, -114.0672, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Contains(tt.lat, tt.lon); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestContainsPointMatchesContains(t *testing.T) {
	p := Point{Lat: 36.10, Lon: -115.15}
	if Nevada.ContainsPoint(p) != Nevada.Contains(p.Lat, p.Lon) {
		t.Error("ContainsPoint disagrees with Contains")
	}
}
