// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package store

import (
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/trailmark-dev/trailmark/internal/models"
)

// GetUser loads a user by id.
func (s *Store) GetUser(id string) (*models.User, error) {
	var u models.User
	if err := s.get(userKeyPrefix+id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// PutUser persists a user record, last write wins. UpdatedAt is stamped on
// every write.
func (s *Store) PutUser(u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	return s.put(userKeyPrefix+u.ID, u)
}

// GetOrCreateUser loads a user, creating a fresh record with the default
// quota allotment on first encounter.
func (s *Store) GetOrCreateUser(id string) (*models.User, error) {
	u, err := s.GetUser(id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u = &models.User{
		ID:        id,
		Quota:     models.DefaultQuota(),
		CreatedAt: time.Now().UTC(),
	}
	u.EnsureMaps()
	if err := s.PutUser(u); err != nil {
		return nil, err
	}
	return u, nil
}

// ScanUsers walks every user record. Used by admin reporting.
func (s *Store) ScanUsers(fn func(u *models.User) error) error {
	return s.scanPrefix(userKeyPrefix, func(val []byte) error {
		var u models.User
		if err := json.Unmarshal(val, &u); err != nil {
			return err
		}
		return fn(&u)
	})
}
