// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package gpx

import (
	"errors"
	"testing"
)

const trackDoc = `<?xml version="1.0"?>
<gpx version="1.1" creator="test">
  <trk>
    <name>Strip Shuffle</name>
    <trkseg>
      <trkpt lat="36.10" lon="-115.15"><ele>610.2</ele><time>2025-08-08T06:00:00Z</time></trkpt>
      <trkpt lat="36.11" lon="-115.16"><time>2025-08-08T06:10:00Z</time></trkpt>
      <trkpt lat="36.12" lon="-115.17"><time>2025-08-08T06:20:00Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseTrack(t *testing.T) {
	track, err := Parse([]byte(trackDoc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if track.Name != "Strip Shuffle" {
		t.Errorf("Name = %q, want %q", track.Name, "Strip Shuffle")
	}
	if len(track.Points) != 3 {
		t.Fatalf("got %d points, want 3", len(track.Points))
	}
	if track.Points[0].Lat != 36.10 || track.Points[0].Lon != -115.15 {
		t.Errorf("first point = (%v, %v)", track.Points[0].Lat, track.Points[0].Lon)
	}
	if track.Points[0].Ele == nil || *track.Points[0].Ele != 610.2 {
		t.Error("first point elevation not parsed")
	}
	if track.Points[1].Ele != nil {
		t.Error("second point should have no elevation")
	}
	if track.Points[2].Time == nil {
		t.Error("third point timestamp not parsed")
	}
}

func TestParseSecondNameElementKeepsPoints(t *testing.T) {
	doc := `<gpx>
  <trk>
    <name>Morning Walk</name>
    <extensions><name>walk-profile</name></extensions>
    <trkseg>
      <trkpt lat="36.10" lon="-115.15"/>
      <trkpt lat="36.11" lon="-115.16"/>
    </trkseg>
  </trk>
</gpx>`

	track, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if track.Name != "Morning Walk" {
		t.Errorf("Name = %q, want the first name element", track.Name)
	}
	if len(track.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(track.Points))
	}
}

func TestParsePriorityTrackOverRoute(t *testing.T) {
	doc := `<gpx>
  <rte><rtept lat="1.0" lon="2.0"/></rte>
  <trk><trkseg><trkpt lat="36.10" lon="-115.15"/></trkseg></trk>
</gpx>`

	track, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if track.Points[0].Lat != 36.10 {
		t.Errorf("expected track geometry to win over route, got lat %v", track.Points[0].Lat)
	}
}

func TestParseRouteFallback(t *testing.T) {
	doc := `<gpx>
  <rte>
    <name>Downtown Loop</name>
    <rtept lat="36.16" lon="-115.14"><ele>620</ele></rtept>
    <rtept lat="36.17" lon="-115.15"/>
  </rte>
</gpx>`

	track, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if track.Name != "Downtown Loop" {
		t.Errorf("Name = %q", track.Name)
	}
	if len(track.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(track.Points))
	}
	if track.Points[0].Ele == nil || *track.Points[0].Ele != 620 {
		t.Error("route point elevation not parsed")
	}
}

func TestParseWaypointOnlyDocument(t *testing.T) {
	doc := `<gpx>
  <wpt lat="36.10" lon="-115.15"/>
  <wpt lat="36.11" lon="-115.16"/>
  <wpt lat="36.12" lon="-115.17"/>
</gpx>`

	track, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if track.Name != "Waypoint Route" {
		t.Errorf("Name = %q, want synthetic waypoint track name", track.Name)
	}
	if len(track.Points) != 3 {
		t.Fatalf("got %d points, want 3 waypoints in document order", len(track.Points))
	}
	if track.Points[1].Lat != 36.11 {
		t.Error("waypoints out of document order")
	}
}

func TestParseSkipsMalformedPoints(t *testing.T) {
	doc := `<gpx>
  <trk><trkseg>
    <trkpt lat="not-a-number" lon="-115.15"/>
    <trkpt lat="36.11" lon="-115.16"/>
    <trkpt lat="36.12"/>
    <trkpt lat="36.13" lon="-115.18"/>
  </trkseg></trk>
</gpx>`

	track, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(track.Points) != 2 {
		t.Fatalf("got %d points, want 2 (malformed points skipped)", len(track.Points))
	}
	if track.Points[0].Lat != 36.11 || track.Points[1].Lat != 36.13 {
		t.Error("wrong points survived malformed-skip")
	}
}

func TestParseNoUsableGeometry(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty gpx", `<gpx version="1.1"></gpx>`},
		{"track with only bad points", `<gpx><trk><trkseg><trkpt lat="x" lon="y"/></trkseg></trk></gpx>`},
		{"metadata only", `<gpx><metadata><name>nothing here</name></metadata></gpx>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrNoUsableGeometry) {
				t.Errorf("Parse() error = %v, want ErrNoUsableGeometry", err)
			}
		})
	}
}

func TestParseMalformedXML(t *testing.T) {
	_, err := Parse([]byte(`<gpx><trk><trkseg><trkpt lat="36.1" lon="-115.1">`))
	if err == nil || errors.Is(err, ErrNoUsableGeometry) {
		t.Errorf("expected an XML error distinct from ErrNoUsableGeometry, got %v", err)
	}
}
