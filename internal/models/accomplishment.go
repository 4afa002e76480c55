// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package models defines the data structures persisted and exchanged by
// Trailmark.
package models

// AccomplishmentType classifies what kind of achievement was credited.
type AccomplishmentType string

const (
	AccomplishmentActivity AccomplishmentType = "activity"
	AccomplishmentSocial   AccomplishmentType = "social"
	AccomplishmentMeshCTF  AccomplishmentType = "meshctf"
)

// ValidAccomplishmentType reports whether t is one of the known types.
func ValidAccomplishmentType(t AccomplishmentType) bool {
	switch t {
	case AccomplishmentActivity, AccomplishmentSocial, AccomplishmentMeshCTF:
		return true
	}
	return false
}

// SourceKind is the discriminant of the metadata union.
type SourceKind string

const (
	SourceActivity SourceKind = "activity"
	SourceFlag     SourceKind = "flag"
	SourceSocial   SourceKind = "social"
)

// Accomplishment is an immutable credited-achievement fact record. It is
// created once by the ledger, updatable only for metadata corrections, and
// deleted explicitly (which reverses the denormalized counters).
type Accomplishment struct {
	ID          string             `json:"accomplishment_id"`
	UserID      string             `json:"user_id"`
	Type        AccomplishmentType `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	CompletedAt int64              `json:"completed_at"` // epoch milliseconds
	Year        int                `json:"year"`
	Metadata    Metadata           `json:"metadata"`
}

// Metadata is a tagged union keyed by Source. Exactly one of the source
// payloads is set; Points is the sole points source for scoring.
type Metadata struct {
	Source   SourceKind          `json:"source"`
	Points   int                 `json:"points"`
	Activity *ActivitySourceData `json:"activity,omitempty"`
	Flag     *FlagSourceData     `json:"flag,omitempty"`
	Social   *SocialSourceData   `json:"social,omitempty"`
}

// ActivitySourceData carries the geodata derived from a manual upload,
// route submission, or Strava activity.
type ActivitySourceData struct {
	ActivityType     string  `json:"activity_type,omitempty"` // run, walk, ruck, bike, roll, swim
	DistanceKm       float64 `json:"distance_km"`
	MovingTimeMin    int     `json:"moving_time_min"`
	Polyline         string  `json:"polyline,omitempty"`
	StravaActivityID int64   `json:"strava_activity_id,omitempty"`
	RouteID          string  `json:"route_id,omitempty"`
	DayKey           string  `json:"day_key,omitempty"`
	ManualAwardTag   string  `json:"manual_award_tag,omitempty"`
}

// FlagSourceData identifies an externally keyed flag capture. QRFlagID is
// the dedup key for this source.
type FlagSourceData struct {
	QRFlagID string `json:"qr_flag_id"`
	Partner  string `json:"partner,omitempty"`
}

// SocialSourceData links a social accomplishment back to its check-in.
type SocialSourceData struct {
	CheckInID string  `json:"checkin_id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}
