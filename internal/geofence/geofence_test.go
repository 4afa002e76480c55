// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package geofence

import (
	"testing"

	"github.com/trailmark-dev/trailmark/internal/geo"
)

var (
	inside  = geo.Point{Lat: 36.10, Lon: -115.15}
	outside = geo.Point{Lat: 34.05, Lon: -118.24} // Los Angeles
)

func repeat(p geo.Point, n int) []geo.Point {
	out := make([]geo.Point, n)
	for i := range out {
		out[i] = p
	}
	return out
}

func TestInRegion(t *testing.T) {
	v := NewNevada()

	tests := []struct {
		name   string
		points []geo.Point
		want   bool
	}{
		{"empty sequence", nil, false},
		{"single inside point", []geo.Point{inside}, true},
		{"single outside point", []geo.Point{outside}, false},
		{"all inside", repeat(inside, 20), true},
		{"all outside", repeat(outside, 20), false},
		{
			name:   "drift at start, inside by point ten",
			points: append(repeat(outside, 9), inside),
			want:   true,
		},
		{
			name:   "inside point beyond the first ten is ignored",
			points: append(repeat(outside, 10), inside),
			want:   false,
		},
		{
			name: "example track from the vegas strip",
			points: []geo.Point{
				{Lat: 36.10, Lon: -115.15},
				{Lat: 36.11, Lon: -115.16},
				{Lat: 36.12, Lon: -115.17},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.InRegion(tt.points); got != tt.want {
				t.Errorf("InRegion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartEndInRegion(t *testing.T) {
	v := NewNevada()

	tests := []struct {
		name       string
		start, end *geo.Point
		want       bool
	}{
		{"both nil", nil, nil, false},
		{"start inside", &inside, nil, true},
		{"end inside", nil, &inside, true},
		{"both outside", &outside, &outside, false},
		{"start outside end inside", &outside, &inside, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.StartEndInRegion(tt.start, tt.end); got != tt.want {
				t.Errorf("StartEndInRegion() = %v, want %v", got, tt.want)
			}
		})
	}
}
