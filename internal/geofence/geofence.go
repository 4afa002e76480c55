// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package geofence decides whether an activity's geometry qualifies it for
// the event region.
package geofence

import "github.com/trailmark-dev/trailmark/internal/geo"

// headPointLimit bounds how many leading points InRegion inspects. Checking
// a prefix instead of one point tolerates GPS drift at trip start; bounding
// it keeps the check O(1) for arbitrarily long tracks.
const headPointLimit = 10

// Validator checks coordinate sequences against a fixed event region.
type Validator struct {
	region geo.BoundingBox
}

// New returns a Validator for the given region.
func New(region geo.BoundingBox) *Validator {
	return &Validator{region: region}
}

// NewNevada returns the production validator for the event region.
func NewNevada() *Validator {
	return New(geo.Nevada)
}

// Region returns the validator's bounding box.
func (v *Validator) Region() geo.BoundingBox {
	return v.region
}

// InRegion reports whether any of the first min(10, len(points)) points
// falls inside the region. An empty sequence is never in region.
func (v *Validator) InRegion(points []geo.Point) bool {
	limit := len(points)
	if limit > headPointLimit {
		limit = headPointLimit
	}
	for _, p := range points[:limit] {
		if v.region.ContainsPoint(p) {
			return true
		}
	}
	return false
}

// StartEndInRegion applies the partner-activity rule: accept if either the
// start or the end coordinate is inside the region. Full-track data is not
// always available for partner-sourced activities, so this is the only
// location evidence we get. Nil endpoints are treated as absent.
func (v *Validator) StartEndInRegion(start, end *geo.Point) bool {
	if start != nil && v.region.ContainsPoint(*start) {
		return true
	}
	if end != nil && v.region.ContainsPoint(*end) {
		return true
	}
	return false
}
