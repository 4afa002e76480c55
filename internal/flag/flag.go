// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package flag credits externally keyed accomplishments: QR flags placed
// around the event and mesh CTF flags. The external flag id is the
// uniqueness key, so a renamed flag still cannot be claimed twice.
package flag

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/event"
	"github.com/trailmark-dev/trailmark/internal/ledger"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/quota"
)

var (
	// ErrMissingFlagID rejects a claim without an external key.
	ErrMissingFlagID = errors.New("flag: flag id is required")

	// ErrBadType rejects a claim with a type flags cannot produce.
	ErrBadType = errors.New("flag: type must be meshctf or social")
)

// Claim is one flag redemption attempt. Points are partner-supplied and
// recorded as-is.
type Claim struct {
	FlagID  string
	Name    string
	Partner string
	Points  int
	Type    models.AccomplishmentType // meshctf (default) or social
	Year    int                       // current event year when zero
}

// Service credits flag claims through the ledger.
type Service struct {
	guard  *quota.Guard
	ledger *ledger.Ledger
	log    zerolog.Logger
	now    func() time.Time
}

// New returns a flag service.
func New(g *quota.Guard, l *ledger.Ledger) *Service {
	return &Service{
		guard:  g,
		ledger: l,
		log:    logging.WithComponent("flag"),
		now:    time.Now,
	}
}

// CreditScan credits a claim arriving through a QR scan and counts the
// scan. Duplicate claims still count as scans; the counter tracks
// attempts, not successes.
func (s *Service) CreditScan(userID string, c *Claim) (*models.Accomplishment, error) {
	if err := s.guard.RecordQRScan(userID); err != nil {
		return nil, err
	}
	return s.credit(userID, c)
}

// CreditCheck credits a claim arriving through a mesh CTF flag check and
// counts the check.
func (s *Service) CreditCheck(userID string, c *Claim) (*models.Accomplishment, error) {
	if err := s.guard.RecordFlagCheck(userID); err != nil {
		return nil, err
	}
	return s.credit(userID, c)
}

func (s *Service) credit(userID string, c *Claim) (*models.Accomplishment, error) {
	if c.FlagID == "" {
		return nil, ErrMissingFlagID
	}

	accType := c.Type
	if accType == "" {
		accType = models.AccomplishmentMeshCTF
	}
	if accType != models.AccomplishmentMeshCTF && accType != models.AccomplishmentSocial {
		return nil, ErrBadType
	}

	year := c.Year
	if year == 0 {
		year = event.CurrentYear()
	}

	name := c.Name
	if name == "" {
		name = "Flag " + c.FlagID
	}

	acc, err := s.ledger.Create(&models.Accomplishment{
		UserID:      userID,
		Type:        accType,
		Name:        name,
		CompletedAt: s.now().UnixMilli(),
		Year:        year,
		Metadata: models.Metadata{
			Source: models.SourceFlag,
			Points: c.Points,
			Flag: &models.FlagSourceData{
				QRFlagID: c.FlagID,
				Partner:  c.Partner,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user", userID).
		Str("flag", c.FlagID).
		Int("points", c.Points).
		Msg("flag credited")
	return acc, nil
}
