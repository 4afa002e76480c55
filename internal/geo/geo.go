// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package geo provides the geographic primitives used for activity
// verification: great-circle distance and bounding-box membership.
//
// The haversine implementation is the test oracle for distance-derived
// statistics; it must not be swapped for a faster approximation without
// updating every distance assertion in the tree.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is an axis-aligned lat/lon rectangle. All comparisons are
// inclusive on every edge.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Nevada covers the state of Nevada. Activities must touch this box to be
// eligible for crediting.
var Nevada = BoundingBox{
	North: 42.0,
	South: 35.0,
	East:  -114.0,
	West:  -120.01,
}

// LasVegasMetro covers the Las Vegas metro area including Henderson,
// Summerlin, North Las Vegas, and the surrounding areas people actually
// visit (Red Rock, Lake Mead). Used for partner-sourced activities where
// only start/end coordinates are available.
var LasVegasMetro = BoundingBox{
	North: 36.4,
	South: 35.8,
	East:  -114.7,
	West:  -115.5,
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// ContainsPoint is Contains for a Point value.
func (b BoundingBox) ContainsPoint(p Point) bool {
	return b.Contains(p.Lat, p.Lon)
}

// HaversineKm returns the great-circle distance in kilometers between two
// coordinates using the standard haversine formula.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
