// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package models

import "time"

// GPSSample is one raw location fix from a client burst. Samples are
// ephemeral for activities; check-ins persist the full array.
type GPSSample struct {
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Accuracy  *float64   `json:"accuracy,omitempty"` // meters, smaller is better
	Altitude  *float64   `json:"altitude,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// CheckIn is a persisted social check-in derived from a sample burst.
// Lat/Lon are the arithmetic mean of the samples, BestAccuracy the
// smallest reported accuracy, DurationSec the span between first and last
// timestamped sample.
type CheckIn struct {
	ID           string      `json:"checkin_id"`
	UserID       string      `json:"user_id"`
	Lat          float64     `json:"lat"`
	Lon          float64     `json:"lon"`
	BestAccuracy float64     `json:"best_accuracy,omitempty"`
	DurationSec  int         `json:"duration_sec,omitempty"`
	Samples      []GPSSample `json:"samples,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
