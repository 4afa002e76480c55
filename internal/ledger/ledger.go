// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package ledger owns the accomplishment lifecycle: creation with
// source-dependent duplicate detection, deletion with counter reversal,
// and the denormalized per-user tallies.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/store"
)

// ErrDuplicate signals an idempotent no-op: the accomplishment was already
// credited. Callers should treat it as success without side effects.
var ErrDuplicate = errors.New("ledger: duplicate accomplishment")

// ErrInvalidType rejects an accomplishment with an unknown type.
var ErrInvalidType = errors.New("ledger: invalid accomplishment type")

// Ledger creates, queries and deletes accomplishments. It is the only
// writer of accomplishment records and of the user's denormalized
// counters.
type Ledger struct {
	store *store.Store
	log   zerolog.Logger
}

// New returns a Ledger backed by the given store.
func New(s *store.Store) *Ledger {
	return &Ledger{
		store: s,
		log:   logging.WithComponent("ledger"),
	}
}

// Create credits one accomplishment. The uniqueness key depends on the
// metadata source: flag captures dedup on qr_flag_id, manually awarded
// activities on their award tag, everything else (including Strava
// activities) on the (type, name, year) triple. A duplicate returns
// ErrDuplicate and leaves counters untouched.
//
// Counter updates are best-effort, not transactional: the store offers
// last-write-wins writes only, so a crash between the accomplishment
// write and the user write can leave tallies behind by one. See the
// clamping in applyCounterDelta for the recovery posture.
func (l *Ledger) Create(a *models.Accomplishment) (*models.Accomplishment, error) {
	if !models.ValidAccomplishmentType(a.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, a.Type)
	}

	existing, err := l.store.ListAccomplishments(a.UserID)
	if err != nil {
		metrics.LedgerWrites.WithLabelValues(string(a.Type), "error").Inc()
		return nil, fmt.Errorf("list accomplishments for %s: %w", a.UserID, err)
	}
	for i := range existing {
		if conflicts(&existing[i], a) {
			metrics.LedgerWrites.WithLabelValues(string(a.Type), "duplicate").Inc()
			return nil, ErrDuplicate
		}
	}

	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	if err := l.store.PutAccomplishment(a); err != nil {
		metrics.LedgerWrites.WithLabelValues(string(a.Type), "error").Inc()
		return nil, fmt.Errorf("put accomplishment: %w", err)
	}

	if err := l.applyCounterDelta(a, +1); err != nil {
		return nil, err
	}

	metrics.LedgerWrites.WithLabelValues(string(a.Type), "created").Inc()
	l.log.Info().
		Str("user", a.UserID).
		Str("accomplishment", a.ID).
		Str("type", string(a.Type)).
		Int("year", a.Year).
		Int("points", a.Metadata.Points).
		Msg("accomplishment credited")

	return a, nil
}

// Delete removes an accomplishment and reverses its counter contribution.
// Deleting a missing record returns store.ErrNotFound.
func (l *Ledger) Delete(userID, accID string) error {
	a, err := l.store.GetAccomplishment(userID, accID)
	if err != nil {
		return err
	}

	if err := l.store.DeleteAccomplishment(userID, accID); err != nil {
		return fmt.Errorf("delete accomplishment: %w", err)
	}

	if err := l.applyCounterDelta(a, -1); err != nil {
		return err
	}

	metrics.LedgerDeletes.Inc()
	l.log.Info().
		Str("user", userID).
		Str("accomplishment", accID).
		Msg("accomplishment deleted")

	return nil
}

// UpdateMetadata replaces the metadata of an existing accomplishment.
// Only metadata corrections are allowed; type, name, year and completion
// time are immutable, and the point value must not change (use Delete and
// Create to re-score).
func (l *Ledger) UpdateMetadata(userID, accID string, md models.Metadata) (*models.Accomplishment, error) {
	a, err := l.store.GetAccomplishment(userID, accID)
	if err != nil {
		return nil, err
	}
	if md.Points != a.Metadata.Points {
		return nil, fmt.Errorf("ledger: metadata update must not change points")
	}
	a.Metadata = md
	if err := l.store.PutAccomplishment(a); err != nil {
		return nil, fmt.Errorf("put accomplishment: %w", err)
	}
	return a, nil
}

// Get loads one accomplishment.
func (l *Ledger) Get(userID, accID string) (*models.Accomplishment, error) {
	return l.store.GetAccomplishment(userID, accID)
}

// ListByUser returns all of a user's accomplishments.
func (l *Ledger) ListByUser(userID string) ([]models.Accomplishment, error) {
	return l.store.ListAccomplishments(userID)
}

// ListByType returns a user's accomplishments of one type.
func (l *Ledger) ListByType(userID string, t models.AccomplishmentType) ([]models.Accomplishment, error) {
	all, err := l.store.ListAccomplishments(userID)
	if err != nil {
		return nil, err
	}
	var out []models.Accomplishment
	for _, a := range all {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListByYear returns a user's accomplishments for one event year.
func (l *Ledger) ListByYear(userID string, year int) ([]models.Accomplishment, error) {
	all, err := l.store.ListAccomplishments(userID)
	if err != nil {
		return nil, err
	}
	var out []models.Accomplishment
	for _, a := range all {
		if a.Year == year {
			out = append(out, a)
		}
	}
	return out, nil
}

// conflicts applies the source-dependent uniqueness rule between an
// existing record and a candidate.
func conflicts(existing, candidate *models.Accomplishment) bool {
	if candidate.Metadata.Source == models.SourceFlag {
		if candidate.Metadata.Flag == nil || existing.Metadata.Flag == nil {
			return false
		}
		return existing.Metadata.Flag.QRFlagID == candidate.Metadata.Flag.QRFlagID
	}

	if act := candidate.Metadata.Activity; act != nil && act.ManualAwardTag != "" {
		return existing.Metadata.Activity != nil &&
			existing.Metadata.Activity.ManualAwardTag == act.ManualAwardTag
	}

	return existing.Type == candidate.Type &&
		existing.Name == candidate.Name &&
		existing.Year == candidate.Year
}

// applyCounterDelta adjusts the user's denormalized tallies by sign
// (+1 create, -1 delete). Decrements clamp at zero so out-of-order
// operations cannot drive a counter negative.
func (l *Ledger) applyCounterDelta(a *models.Accomplishment, sign int) error {
	u, err := l.store.GetOrCreateUser(a.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", a.UserID, err)
	}
	u.EnsureMaps()

	u.TotalAccomplishmentType[a.Type] = clamp(u.TotalAccomplishmentType[a.Type] + sign)
	u.TotalAccomplishmentYear[a.Year] = clamp(u.TotalAccomplishmentYear[a.Year] + sign)
	u.TotalPoints = clamp(u.TotalPoints + sign*a.Metadata.Points)

	if err := l.store.PutUser(u); err != nil {
		return fmt.Errorf("put user %s: %w", a.UserID, err)
	}
	return nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
