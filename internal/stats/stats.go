// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package stats derives distance and time estimates from parsed track
// geometry.
package stats

import (
	"math"

	"github.com/trailmark-dev/trailmark/internal/geo"
	"github.com/trailmark-dev/trailmark/internal/gpx"
)

// Stats is the estimator output.
type Stats struct {
	DistanceKm    float64
	MovingTimeMin int
}

// Estimate sums consecutive haversine segment lengths for distance and
// derives moving time from point timestamps when every point carries one.
//
// Without complete timestamps it falls back to assuming one sample per
// second (pointCount/60 minutes, floored at 1). The fallback is a known
// approximation; callers must not treat it as ground truth.
func Estimate(points []gpx.TrackPoint) Stats {
	var distanceKm float64
	for i := 1; i < len(points); i++ {
		distanceKm += geo.HaversineKm(
			points[i-1].Lat, points[i-1].Lon,
			points[i].Lat, points[i].Lon,
		)
	}

	minutes := 0
	if allTimestamped(points) && len(points) >= 2 {
		elapsed := points[len(points)-1].Time.Sub(*points[0].Time)
		minutes = int(math.Round(elapsed.Minutes()))
	} else {
		minutes = int(math.Round(float64(len(points)) / 60.0))
	}
	if minutes < 1 {
		minutes = 1
	}

	return Stats{DistanceKm: distanceKm, MovingTimeMin: minutes}
}

// EstimatePoints is Estimate for bare coordinates with no timing data.
func EstimatePoints(points []geo.Point) Stats {
	tps := make([]gpx.TrackPoint, len(points))
	for i, p := range points {
		tps[i] = gpx.TrackPoint{Lat: p.Lat, Lon: p.Lon}
	}
	return Estimate(tps)
}

func allTimestamped(points []gpx.TrackPoint) bool {
	if len(points) == 0 {
		return false
	}
	for _, p := range points {
		if p.Time == nil {
			return false
		}
	}
	return true
}
