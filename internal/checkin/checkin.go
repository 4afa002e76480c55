// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package checkin records social check-ins from GPS sample bursts. A burst
// is reduced to its mean coordinate, best accuracy and duration; the raw
// samples are kept alongside for later auditing.
package checkin

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/quota"
	"github.com/trailmark-dev/trailmark/internal/store"
)

// ErrNoSamples rejects a burst with nothing in it.
var ErrNoSamples = errors.New("checkin: no gps samples provided")

// Service creates and lists check-ins under the check-in quota.
type Service struct {
	store *store.Store
	guard *quota.Guard
	log   zerolog.Logger
	now   func() time.Time
}

// New returns a check-in service.
func New(s *store.Store, g *quota.Guard) *Service {
	return &Service{
		store: s,
		guard: g,
		log:   logging.WithComponent("checkin"),
		now:   time.Now,
	}
}

// Create reduces a sample burst to a check-in record, spends one unit of
// the check-in quota and persists the result. The quota is refunded if the
// record cannot be written.
func (s *Service) Create(userID string, samples []models.GPSSample) (*models.CheckIn, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	if err := s.guard.ConsumeCheckIn(userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ci := &models.CheckIn{
		ID:           uuid.NewString(),
		UserID:       userID,
		Samples:      samples,
		CreatedAt:    now,
		BestAccuracy: bestAccuracy(samples),
		DurationSec:  durationSec(samples),
	}
	ci.Lat, ci.Lon = meanCoordinates(samples)

	if err := s.store.PutCheckIn(ci); err != nil {
		if rerr := s.guard.RefundCheckIn(userID); rerr != nil {
			s.log.Error().Err(rerr).Str("user", userID).Msg("check-in quota refund failed")
		}
		return nil, err
	}

	if err := s.bumpUserCounters(userID, now); err != nil {
		// The check-in itself is persisted; the denormalized tally can lag.
		s.log.Warn().Err(err).Str("user", userID).Msg("check-in counter update failed")
	}

	s.log.Info().
		Str("user", userID).
		Int("samples", len(samples)).
		Float64("lat", ci.Lat).
		Float64("lon", ci.Lon).
		Msg("check-in recorded")
	return ci, nil
}

// List returns a user's check-ins.
func (s *Service) List(userID string) ([]models.CheckIn, error) {
	return s.store.ListCheckIns(userID)
}

// Get returns one check-in.
func (s *Service) Get(userID, checkInID string) (*models.CheckIn, error) {
	return s.store.GetCheckIn(userID, checkInID)
}

// Delete removes a check-in and reverses the denormalized count. The spent
// quota unit is returned.
func (s *Service) Delete(userID, checkInID string) error {
	if _, err := s.store.GetCheckIn(userID, checkInID); err != nil {
		return err
	}
	if err := s.store.DeleteCheckIn(userID, checkInID); err != nil {
		return err
	}

	u, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	if u.CheckInCount > 0 {
		u.CheckInCount--
	}
	if err := s.store.PutUser(u); err != nil {
		return err
	}
	return s.guard.RefundCheckIn(userID)
}

func (s *Service) bumpUserCounters(userID string, now time.Time) error {
	u, err := s.store.GetOrCreateUser(userID)
	if err != nil {
		return err
	}
	u.CheckInCount++
	u.LastCheckInAt = &now
	return s.store.PutUser(u)
}

func meanCoordinates(samples []models.GPSSample) (lat, lon float64) {
	for _, sm := range samples {
		lat += sm.Lat
		lon += sm.Lon
	}
	n := float64(len(samples))
	return lat / n, lon / n
}

// bestAccuracy is the smallest reported accuracy in meters; zero when no
// sample carries one.
func bestAccuracy(samples []models.GPSSample) float64 {
	best := math.Inf(1)
	for _, sm := range samples {
		if sm.Accuracy != nil && *sm.Accuracy < best {
			best = *sm.Accuracy
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

// durationSec is the span between the first and last timestamped sample.
func durationSec(samples []models.GPSSample) int {
	var first, last *time.Time
	for i := range samples {
		ts := samples[i].Timestamp
		if ts == nil {
			continue
		}
		if first == nil {
			first = ts
		}
		last = ts
	}
	if first == nil || last == nil || !last.After(*first) {
		return 0
	}
	return int(last.Sub(*first) / time.Second)
}
