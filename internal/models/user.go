// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package models

import (
	"strconv"
	"time"
)

// Quota holds a user's usage counters. The semantics differ per field and
// must not be inverted: CheckIns, QRSheet and StravaSync count REMAINING
// uses (decremented toward zero); QRScans and FlagChecks count USED
// operations (incremented from zero).
type Quota struct {
	CheckIns   int `json:"checkIns"`   // remaining
	QRSheet    int `json:"qrSheet"`    // remaining
	StravaSync int `json:"stravaSync"` // remaining, lifetime ceiling
	QRScans    int `json:"qrScans"`    // used
	FlagChecks int `json:"flagChecks"` // used
}

// DefaultQuota is the allotment a fresh user starts with.
func DefaultQuota() Quota {
	return Quota{
		CheckIns:   50,
		QRSheet:    10,
		StravaSync: 16,
	}
}

// User is the per-participant record. Denormalized accomplishment tallies
// live here so score reads never scan the ledger.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Admin       bool   `json:"admin,omitempty"`

	Quota Quota `json:"quota"`

	// ManualUploadCounts is keyed by "{year}_{dayKey}", e.g. "2025_day1".
	ManualUploadCounts map[string]int `json:"manual_upload_counts,omitempty"`

	TotalAccomplishmentType map[AccomplishmentType]int `json:"totalAccomplishmentType,omitempty"`
	TotalAccomplishmentYear map[int]int                `json:"totalAccomplishmentYear,omitempty"`
	TotalPoints             int                        `json:"totalPoints"`

	CheckInCount  int        `json:"checkInCount,omitempty"`
	LastCheckInAt *time.Time `json:"lastCheckInAt,omitempty"`

	Strava *StravaAccount `json:"strava,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnsureMaps allocates the user's lazily created maps so callers can write
// into them without nil checks.
func (u *User) EnsureMaps() {
	if u.ManualUploadCounts == nil {
		u.ManualUploadCounts = make(map[string]int)
	}
	if u.TotalAccomplishmentType == nil {
		u.TotalAccomplishmentType = make(map[AccomplishmentType]int)
	}
	if u.TotalAccomplishmentYear == nil {
		u.TotalAccomplishmentYear = make(map[int]int)
	}
}

// UploadBucketKey builds the manual-upload counter key for a year and
// event day.
func UploadBucketKey(year int, dayKey string) string {
	return strconv.Itoa(year) + "_" + dayKey
}
