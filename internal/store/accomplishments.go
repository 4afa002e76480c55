// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package store

import (
	"github.com/goccy/go-json"

	"github.com/trailmark-dev/trailmark/internal/models"
)

func accKey(userID, accID string) string {
	return accKeyPrefix + userID + ":" + accID
}

// GetAccomplishment loads one accomplishment.
func (s *Store) GetAccomplishment(userID, accID string) (*models.Accomplishment, error) {
	var a models.Accomplishment
	if err := s.get(accKey(userID, accID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// PutAccomplishment persists an accomplishment, last write wins.
func (s *Store) PutAccomplishment(a *models.Accomplishment) error {
	return s.put(accKey(a.UserID, a.ID), a)
}

// DeleteAccomplishment removes one accomplishment. Missing records are a
// no-op.
func (s *Store) DeleteAccomplishment(userID, accID string) error {
	return s.delete(accKey(userID, accID))
}

// ListAccomplishments returns all of a user's accomplishments in key order.
func (s *Store) ListAccomplishments(userID string) ([]models.Accomplishment, error) {
	var out []models.Accomplishment
	err := s.scanPrefix(accKeyPrefix+userID+":", func(val []byte) error {
		var a models.Accomplishment
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
