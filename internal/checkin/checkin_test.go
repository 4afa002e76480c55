// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package checkin

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/trailmark-dev/trailmark/internal/config"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/quota"
	"github.com/trailmark-dev/trailmark/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	g := quota.New(s, config.QuotaConfig{
		CheckIns: 50, QRSheet: 10, StravaSync: 16,
		SyncsPerDay: 4, MaxUploadsPerDay: 2, MaxUploadsPerYear: 8,
	})
	return New(s, g), s
}

func fptr(v float64) *float64 { return &v }

func tptr(t time.Time) *time.Time { return &t }

func TestCreateReducesBurst(t *testing.T) {
	svc, s := newTestService(t)
	base := time.Date(2025, 8, 8, 12, 0, 0, 0, time.UTC)

	samples := []models.GPSSample{
		{Lat: 36.10, Lon: -115.10, Accuracy: fptr(12), Timestamp: tptr(base)},
		{Lat: 36.12, Lon: -115.12, Accuracy: fptr(5), Timestamp: tptr(base.Add(8 * time.Second))},
		{Lat: 36.14, Lon: -115.14, Accuracy: fptr(9), Timestamp: tptr(base.Add(15 * time.Second))},
	}

	ci, err := svc.Create("u1", samples)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ci.ID == "" {
		t.Error("no id assigned")
	}
	if math.Abs(ci.Lat-36.12) > 1e-9 || math.Abs(ci.Lon+115.12) > 1e-9 {
		t.Errorf("mean = (%v, %v)", ci.Lat, ci.Lon)
	}
	if ci.BestAccuracy != 5 {
		t.Errorf("BestAccuracy = %v, want 5", ci.BestAccuracy)
	}
	if ci.DurationSec != 15 {
		t.Errorf("DurationSec = %d, want 15", ci.DurationSec)
	}
	if len(ci.Samples) != 3 {
		t.Errorf("samples not retained: %d", len(ci.Samples))
	}

	u, _ := s.GetUser("u1")
	if u.Quota.CheckIns != 49 {
		t.Errorf("CheckIns = %d, want 49", u.Quota.CheckIns)
	}
	if u.CheckInCount != 1 || u.LastCheckInAt == nil {
		t.Errorf("counters = %d / %v", u.CheckInCount, u.LastCheckInAt)
	}
}

func TestCreateRejectsEmptyBurst(t *testing.T) {
	svc, s := newTestService(t)

	if _, err := svc.Create("u1", nil); !errors.Is(err, ErrNoSamples) {
		t.Errorf("err = %v, want ErrNoSamples", err)
	}

	// No quota spent on rejection.
	if u, err := s.GetUser("u1"); err == nil && u.Quota.CheckIns != 50 {
		t.Errorf("quota spent on rejected burst: %d", u.Quota.CheckIns)
	}
}

func TestCreateQuotaExhausted(t *testing.T) {
	svc, s := newTestService(t)

	u, _ := s.GetOrCreateUser("u1")
	u.Quota.CheckIns = 0
	if err := s.PutUser(u); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create("u1", []models.GPSSample{{Lat: 36.1, Lon: -115.1}})
	var qe *quota.Error
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want quota.Error", err)
	}
}

func TestStatsWithoutOptionalFields(t *testing.T) {
	svc, _ := newTestService(t)

	// No accuracy, no timestamps.
	ci, err := svc.Create("u1", []models.GPSSample{
		{Lat: 36.1, Lon: -115.1},
		{Lat: 36.2, Lon: -115.2},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ci.BestAccuracy != 0 {
		t.Errorf("BestAccuracy = %v, want 0", ci.BestAccuracy)
	}
	if ci.DurationSec != 0 {
		t.Errorf("DurationSec = %d, want 0", ci.DurationSec)
	}
}

func TestDeleteRefundsAndDecrements(t *testing.T) {
	svc, s := newTestService(t)

	ci, err := svc.Create("u1", []models.GPSSample{{Lat: 36.1, Lon: -115.1}})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete("u1", ci.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	u, _ := s.GetUser("u1")
	if u.CheckInCount != 0 {
		t.Errorf("CheckInCount = %d, want 0", u.CheckInCount)
	}
	if u.Quota.CheckIns != 50 {
		t.Errorf("CheckIns = %d after refund, want 50", u.Quota.CheckIns)
	}

	if err := svc.Delete("u1", ci.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)

	for i := 0; i < 3; i++ {
		if _, err := svc.Create("u1", []models.GPSSample{{Lat: 36.1, Lon: -115.1}}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Create("u2", []models.GPSSample{{Lat: 36.1, Lon: -115.1}}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.List("u1")
	if err != nil || len(list) != 3 {
		t.Errorf("List = %d records, err %v", len(list), err)
	}
}
