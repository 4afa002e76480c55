// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package store

import (
	"errors"
	"testing"

	"github.com/trailmark-dev/trailmark/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestGetOrCreateUser(t *testing.T) {
	s := newTestStore(t)

	u, err := s.GetOrCreateUser("hacker-1")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if u.Quota != models.DefaultQuota() {
		t.Errorf("fresh user quota = %+v, want defaults", u.Quota)
	}
	if u.ManualUploadCounts == nil || u.TotalAccomplishmentYear == nil {
		t.Error("fresh user maps not allocated")
	}

	u.TotalPoints = 7
	if err := s.PutUser(u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	again, err := s.GetOrCreateUser("hacker-1")
	if err != nil {
		t.Fatalf("GetOrCreateUser second call: %v", err)
	}
	if again.TotalPoints != 7 {
		t.Errorf("second GetOrCreateUser lost state: points = %d", again.TotalPoints)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetUser("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(missing) = %v, want ErrNotFound", err)
	}
}

func TestAccomplishmentCRUD(t *testing.T) {
	s := newTestStore(t)

	a := &models.Accomplishment{
		ID:          "acc-1",
		UserID:      "hacker-1",
		Type:        models.AccomplishmentActivity,
		Name:        "Morning run",
		CompletedAt: 1754660000000,
		Year:        2025,
		Metadata:    models.Metadata{Source: models.SourceActivity, Points: 1},
	}
	if err := s.PutAccomplishment(a); err != nil {
		t.Fatalf("PutAccomplishment: %v", err)
	}

	got, err := s.GetAccomplishment("hacker-1", "acc-1")
	if err != nil {
		t.Fatalf("GetAccomplishment: %v", err)
	}
	if got.Name != a.Name || got.Metadata.Points != 1 {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	// Second user's records must not bleed into the first's scan.
	other := *a
	other.UserID = "hacker-2"
	if err := s.PutAccomplishment(&other); err != nil {
		t.Fatalf("PutAccomplishment other user: %v", err)
	}

	list, err := s.ListAccomplishments("hacker-1")
	if err != nil {
		t.Fatalf("ListAccomplishments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListAccomplishments returned %d records, want 1", len(list))
	}

	if err := s.DeleteAccomplishment("hacker-1", "acc-1"); err != nil {
		t.Fatalf("DeleteAccomplishment: %v", err)
	}
	if _, err := s.GetAccomplishment("hacker-1", "acc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete, err = %v, want ErrNotFound", err)
	}

	// Deleting twice is a no-op.
	if err := s.DeleteAccomplishment("hacker-1", "acc-1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestLastWriteWins(t *testing.T) {
	s := newTestStore(t)

	a := &models.Accomplishment{ID: "acc-1", UserID: "u", Name: "first"}
	if err := s.PutAccomplishment(a); err != nil {
		t.Fatal(err)
	}
	a.Name = "second"
	if err := s.PutAccomplishment(a); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAccomplishment("u", "acc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "second" {
		t.Errorf("Name = %q, want last write", got.Name)
	}
}

func TestCheckInRoundTrip(t *testing.T) {
	s := newTestStore(t)

	acc := 4.5
	c := &models.CheckIn{
		ID:           "ci-1",
		UserID:       "hacker-1",
		Lat:          36.10,
		Lon:          -115.15,
		BestAccuracy: 4.5,
		Samples:      []models.GPSSample{{Lat: 36.10, Lon: -115.15, Accuracy: &acc}},
	}
	if err := s.PutCheckIn(c); err != nil {
		t.Fatalf("PutCheckIn: %v", err)
	}

	list, err := s.ListCheckIns("hacker-1")
	if err != nil {
		t.Fatalf("ListCheckIns: %v", err)
	}
	if len(list) != 1 || list[0].Lat != 36.10 {
		t.Errorf("ListCheckIns = %+v", list)
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	u := &models.User{ID: "persisted"}
	if err := s.PutUser(u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.GetUser("persisted"); err != nil {
		t.Errorf("user not persisted across reopen: %v", err)
	}
}
