// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package models

import "time"

// StravaAccount is the per-user linked-account state. It is owned by the
// sync orchestrator and mutated only through it.
type StravaAccount struct {
	AthleteID    int64  `json:"athlete_id,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // epoch seconds

	// Activities is keyed by the external activity id and is merge-only:
	// re-fetched entries overwrite, nothing is ever removed.
	Activities map[string]StravaActivity `json:"activities,omitempty"`

	// SyncHistory records when syncs ran, pruned to a trailing 30 days.
	SyncHistory []time.Time `json:"sync_history,omitempty"`

	HistoricalSyncCompleted bool `json:"historical_sync_completed"`
}

// TokenExpired reports whether the access token needs a refresh before use.
func (a *StravaAccount) TokenExpired(now time.Time) bool {
	return now.Unix() >= a.ExpiresAt
}

// StravaActivity is the raw partner payload we retain per activity. Field
// names follow the partner API's JSON.
type StravaActivity struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"` // Run, Walk, Ride, ...
	Distance    float64    `json:"distance"`    // meters
	MovingTime  int        `json:"moving_time"` // seconds
	ElapsedTime int        `json:"elapsed_time,omitempty"`
	StartDate   time.Time  `json:"start_date"`
	StartLatLng []float64  `json:"start_latlng,omitempty"`
	EndLatLng   []float64  `json:"end_latlng,omitempty"`
	Map         *StravaMap `json:"map,omitempty"`
}

// StravaMap carries the activity's encoded polyline when the partner
// includes one.
type StravaMap struct {
	ID              string `json:"id,omitempty"`
	SummaryPolyline string `json:"summary_polyline,omitempty"`
}

// StravaTokenResponse is the refresh-grant reply.
type StravaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}
