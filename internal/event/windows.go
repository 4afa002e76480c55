// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package event resolves timestamps against the fixed table of yearly event
// windows.
//
// Each window spans the days immediately surrounding the Thursday-Sunday
// event, expressed as UTC instants aligned to Pacific midnight (the event
// runs on Pacific time, UTC-7 in August). Windows are inclusive on both
// ends and do not overlap by construction.
package event

import (
	"strings"
	"time"
)

// Window is one year's eligibility span.
type Window struct {
	Year  int
	Start time.Time
	End   time.Time
}

// windows is ordered newest-first, matching how historical sync walks it.
// 2020 was held online; see MatchesVirtualYear.
var windows = []Window{
	{Year: 2025, Start: utc("2025-08-04T07:00:00Z"), End: utc("2025-08-12T06:59:59Z")},
	{Year: 2024, Start: utc("2024-08-05T07:00:00Z"), End: utc("2024-08-13T06:59:59Z")},
	{Year: 2023, Start: utc("2023-08-07T07:00:00Z"), End: utc("2023-08-15T06:59:59Z")},
	{Year: 2022, Start: utc("2022-08-08T07:00:00Z"), End: utc("2022-08-16T06:59:59Z")},
	{Year: 2021, Start: utc("2021-08-02T07:00:00Z"), End: utc("2021-08-10T06:59:59Z")},
	{Year: 2020, Start: utc("2020-08-03T07:00:00Z"), End: utc("2020-08-11T06:59:59Z")},
	{Year: 2019, Start: utc("2019-08-05T07:00:00Z"), End: utc("2019-08-13T06:59:59Z")},
	{Year: 2018, Start: utc("2018-08-06T07:00:00Z"), End: utc("2018-08-14T06:59:59Z")},
}

// VirtualYear is the event year that was held online. Activities from this
// year are matched by name instead of location, because nobody was in
// Nevada and the tracks could legitimately come from anywhere.
const VirtualYear = 2020

// virtualYearPatterns are the case-insensitive substrings accepted for the
// virtual year's name match.
var virtualYearPatterns = []string{"defcon", "dc28"}

// All returns the full window table, newest first.
func All() []Window {
	out := make([]Window, len(windows))
	copy(out, windows)
	return out
}

// CurrentYear is the newest year in the table.
func CurrentYear() int {
	return windows[0].Year
}

// ByYear returns the window for a specific year.
func ByYear(year int) (Window, bool) {
	for _, w := range windows {
		if w.Year == year {
			return w, true
		}
	}
	return Window{}, false
}

// WindowFor locates the window whose inclusive [start, end] span contains t.
func WindowFor(t time.Time) (Window, bool) {
	for _, w := range windows {
		if w.Contains(t) {
			return w, true
		}
	}
	return Window{}, false
}

// YearsInRange returns the windows for years in [from, to] inclusive,
// newest first. It drives historical batch sync.
func YearsInRange(from, to int) []Window {
	var out []Window
	for _, w := range windows {
		if w.Year >= from && w.Year <= to {
			out = append(out, w)
		}
	}
	return out
}

// Contains reports whether t falls inside the window, ends included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// StartUnix and EndUnix expose the window bounds as unix seconds for the
// partner API's before/after parameters.
func (w Window) StartUnix() int64 { return w.Start.Unix() }
func (w Window) EndUnix() int64   { return w.End.Unix() }

// MatchesVirtualYear reports whether an activity name satisfies the
// virtual-year text rule: a case-insensitive event-name substring match.
func MatchesVirtualYear(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range virtualYearPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic("event: bad window constant " + s)
	}
	return t
}
