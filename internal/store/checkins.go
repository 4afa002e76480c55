// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package store

import (
	"github.com/goccy/go-json"

	"github.com/trailmark-dev/trailmark/internal/models"
)

func checkinKey(userID, id string) string {
	return checkinKeyPrefix + userID + ":" + id
}

// PutCheckIn persists a check-in record.
func (s *Store) PutCheckIn(c *models.CheckIn) error {
	return s.put(checkinKey(c.UserID, c.ID), c)
}

// GetCheckIn loads one check-in.
func (s *Store) GetCheckIn(userID, id string) (*models.CheckIn, error) {
	var c models.CheckIn
	if err := s.get(checkinKey(userID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCheckIn removes a check-in.
func (s *Store) DeleteCheckIn(userID, id string) error {
	return s.delete(checkinKey(userID, id))
}

// ListCheckIns returns all of a user's check-ins in key order.
func (s *Store) ListCheckIns(userID string) ([]models.CheckIn, error) {
	var out []models.CheckIn
	err := s.scanPrefix(checkinKeyPrefix+userID+":", func(val []byte) error {
		var c models.CheckIn
		if err := json.Unmarshal(val, &c); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
