// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package validation

import (
	"strings"
	"testing"
)

type uploadRequest struct {
	ActivityType string `validate:"required,activitytype"`
	Year         int    `validate:"required,min=2018,max=2100"`
	DayKey       string `validate:"required,daykey"`
	Description  string `validate:"max=100"`
}

func TestValidateStructPasses(t *testing.T) {
	req := uploadRequest{
		ActivityType: "run",
		Year:         2025,
		DayKey:       "day2",
		Description:  "lap around the strip",
	}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestActivityTypeValidator(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"run", true},
		{"walk", true},
		{"ruck", true},
		{"bike", true},
		{"roll", true},
		{"swim", true},
		{"RUN", true},
		{"fly", false},
		{"", false},
	}

	for _, tt := range tests {
		req := uploadRequest{ActivityType: tt.value, Year: 2025, DayKey: "day1"}
		err := ValidateStruct(&req)
		if tt.ok && err != nil {
			t.Errorf("activity type %q rejected: %v", tt.value, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("activity type %q accepted", tt.value)
		}
	}
}

func TestDayKeyValidator(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"day1", true},
		{"day12", true},
		{"day", false},
		{"day123", false},
		{"1", false},
		{"DAY1", false},
	}

	for _, tt := range tests {
		req := uploadRequest{ActivityType: "run", Year: 2025, DayKey: tt.value}
		err := ValidateStruct(&req)
		if tt.ok && err != nil {
			t.Errorf("day key %q rejected: %v", tt.value, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("day key %q accepted", tt.value)
		}
	}
}

func TestToAPIErrorSingleField(t *testing.T) {
	req := uploadRequest{ActivityType: "run", Year: 2025, DayKey: ""}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.Details["field"] != "DayKey" {
		t.Errorf("Details[field] = %v", apiErr.Details["field"])
	}
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	req := uploadRequest{Description: strings.Repeat("x", 150)}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(err.Errors()) < 3 {
		t.Fatalf("expected at least 3 field errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("multi-error response missing fields detail")
	}
}
