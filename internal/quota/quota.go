// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package quota enforces per-user usage ceilings. Fields follow two
// distinct conventions: checkIns, qrSheet and stravaSync count REMAINING
// uses, while qrScans, flagChecks and manual_upload_counts count USED
// operations. The asymmetry is load-bearing; inverting a field silently
// breaks its ceiling.
//
// The store offers no transactions, so every consume re-reads the user
// record immediately before the committing write and rejects if a
// concurrent request exhausted the counter in between. This narrows the
// race window without eliminating it; a store with conditional writes
// would close it completely.
package quota

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/config"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/store"
)

// Resource names used in errors and metrics.
const (
	ResourceCheckIns     = "checkins"
	ResourceQRSheet      = "qr_sheet"
	ResourceStravaSync   = "strava_sync"
	ResourceManualUpload = "manual_upload"
)

// Error reports an exhausted quota, carrying the caller's current usage
// for UI feedback.
type Error struct {
	Resource  string
	Used      int
	Remaining int
	Limit     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d used, %d remaining of %d",
		e.Resource, e.Used, e.Remaining, e.Limit)
}

// Guard enforces the quota rules against the user store.
type Guard struct {
	store *store.Store
	cfg   config.QuotaConfig
	log   zerolog.Logger
}

// New returns a Guard with the given limits.
func New(s *store.Store, cfg config.QuotaConfig) *Guard {
	return &Guard{
		store: s,
		cfg:   cfg,
		log:   logging.WithComponent("quota"),
	}
}

// ConsumeCheckIn spends one check-in from the user's remaining allotment.
func (g *Guard) ConsumeCheckIn(userID string) error {
	return g.consumeRemaining(userID, ResourceCheckIns, g.cfg.CheckIns,
		func(q *models.Quota) *int { return &q.CheckIns })
}

// RefundCheckIn returns one check-in, e.g. after a failed persist.
func (g *Guard) RefundCheckIn(userID string) error {
	return g.refundRemaining(userID, g.cfg.CheckIns,
		func(q *models.Quota) *int { return &q.CheckIns })
}

// ConsumeQRSheet spends one QR-sheet generation.
func (g *Guard) ConsumeQRSheet(userID string) error {
	return g.consumeRemaining(userID, ResourceQRSheet, g.cfg.QRSheet,
		func(q *models.Quota) *int { return &q.QRSheet })
}

// RefundQRSheet returns one QR-sheet generation.
func (g *Guard) RefundQRSheet(userID string) error {
	return g.refundRemaining(userID, g.cfg.QRSheet,
		func(q *models.Quota) *int { return &q.QRSheet })
}

// RecordQRScan increments the used-count scan counter. Scans have no
// ceiling; the counter exists for reporting.
func (g *Guard) RecordQRScan(userID string) error {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	u.Quota.QRScans++
	return g.store.PutUser(u)
}

// RecordFlagCheck increments the used-count flag-check counter.
func (g *Guard) RecordFlagCheck(userID string) error {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	u.Quota.FlagChecks++
	return g.store.PutUser(u)
}

// consumeRemaining implements the remaining-count pattern: check, re-read,
// check again, decrement, write.
func (g *Guard) consumeRemaining(userID, resource string, limit int, field func(*models.Quota) *int) error {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	if *field(&u.Quota) <= 0 {
		return g.reject(resource, limit-*field(&u.Quota), *field(&u.Quota), limit)
	}

	// Re-read before commit: a concurrent request may have spent the
	// last unit since the first read.
	u, err = g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	remaining := field(&u.Quota)
	if *remaining <= 0 {
		return g.reject(resource, limit-*remaining, *remaining, limit)
	}

	*remaining--
	return g.store.PutUser(u)
}

// refundRemaining restores one unit, capped at the configured limit so a
// double refund cannot mint extra quota.
func (g *Guard) refundRemaining(userID string, limit int, field func(*models.Quota) *int) error {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	remaining := field(&u.Quota)
	if *remaining < limit {
		*remaining++
	}
	return g.store.PutUser(u)
}

// ConsumeManualUpload enforces the compound upload ceiling: at most
// MaxUploadsPerDay per (year, dayKey) bucket AND at most MaxUploadsPerYear
// across all of the year's buckets, checked independently.
func (g *Guard) ConsumeManualUpload(userID string, year int, dayKey string) error {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	if err := g.checkUploadCeilings(u, year, dayKey); err != nil {
		return err
	}

	// Re-read before commit.
	u, err = g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	if err := g.checkUploadCeilings(u, year, dayKey); err != nil {
		return err
	}

	u.EnsureMaps()
	u.ManualUploadCounts[models.UploadBucketKey(year, dayKey)]++
	return g.store.PutUser(u)
}

// RefundManualUpload decrements an upload bucket, clamped at zero.
func (g *Guard) RefundManualUpload(userID string, year int, dayKey string) error {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	u.EnsureMaps()
	key := models.UploadBucketKey(year, dayKey)
	if u.ManualUploadCounts[key] > 0 {
		u.ManualUploadCounts[key]--
	}
	return g.store.PutUser(u)
}

func (g *Guard) checkUploadCeilings(u *models.User, year int, dayKey string) error {
	bucket := u.ManualUploadCounts[models.UploadBucketKey(year, dayKey)]
	if bucket >= g.cfg.MaxUploadsPerDay {
		return g.reject(ResourceManualUpload, bucket, 0, g.cfg.MaxUploadsPerDay)
	}
	if total := yearUploadTotal(u, year); total >= g.cfg.MaxUploadsPerYear {
		return g.reject(ResourceManualUpload, total, 0, g.cfg.MaxUploadsPerYear)
	}
	return nil
}

// UploadCounts reports a user's per-bucket upload usage for one year plus
// the aggregate, for the upload-counts endpoint.
func (g *Guard) UploadCounts(userID string, year int) (map[string]int, int, error) {
	u, err := g.store.GetOrCreateUser(userID)
	if err != nil {
		return nil, 0, err
	}
	prefix := models.UploadBucketKey(year, "")
	buckets := make(map[string]int)
	for key, n := range u.ManualUploadCounts {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			buckets[key[len(prefix):]] = n
		}
	}
	return buckets, yearUploadTotal(u, year), nil
}

func yearUploadTotal(u *models.User, year int) int {
	prefix := models.UploadBucketKey(year, "")
	total := 0
	for key, n := range u.ManualUploadCounts {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			total += n
		}
	}
	return total
}

func (g *Guard) reject(resource string, used, remaining, limit int) error {
	metrics.QuotaRejections.WithLabelValues(resource).Inc()
	g.log.Debug().
		Str("resource", resource).
		Int("used", used).
		Int("limit", limit).
		Msg("quota rejection")
	return &Error{Resource: resource, Used: used, Remaining: remaining, Limit: limit}
}

// AuthorizeSync checks whether a sync may start for the given account
// state. The daily bucket counts sync_history entries on now's UTC
// calendar day, capped at SyncsPerDay. The very first sync for a user
// (historical sync not yet completed) bypasses the daily bucket, but the
// lifetime stravaSync allotment always applies.
func (g *Guard) AuthorizeSync(u *models.User, now time.Time) error {
	if u.Quota.StravaSync <= 0 {
		return g.reject(ResourceStravaSync, g.cfg.StravaSync-u.Quota.StravaSync, u.Quota.StravaSync, g.cfg.StravaSync)
	}

	firstTime := u.Strava == nil || !u.Strava.HistoricalSyncCompleted
	if firstTime {
		return nil
	}

	if used := DailySyncCount(u.Strava, now); used >= g.cfg.SyncsPerDay {
		return g.reject(ResourceStravaSync, used, 0, g.cfg.SyncsPerDay)
	}
	return nil
}

// ConsumeSync spends one unit of the lifetime sync allotment with the
// usual re-read double check. The orchestrator calls this after a
// successful fetch, alongside its sync_history append.
func (g *Guard) ConsumeSync(userID string) error {
	return g.consumeRemaining(userID, ResourceStravaSync, g.cfg.StravaSync,
		func(q *models.Quota) *int { return &q.StravaSync })
}

// DailySyncCount counts sync_history entries falling on now's UTC
// calendar day.
func DailySyncCount(a *models.StravaAccount, now time.Time) int {
	if a == nil {
		return 0
	}
	y, m, d := now.UTC().Date()
	count := 0
	for _, ts := range a.SyncHistory {
		ty, tm, td := ts.UTC().Date()
		if ty == y && tm == m && td == d {
			count++
		}
	}
	return count
}
