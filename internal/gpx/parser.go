// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package gpx extracts coordinate sequences from GPX documents.
//
// Extraction runs in priority order: track points (trk/trkpt), then route
// points (rte/rtept), then bare waypoints (wpt). A waypoint-only document
// becomes a single synthetic track connecting the waypoints by straight
// lines in document order.
//
// Parsing is tolerant by contract: a trackpoint with a malformed lat or lon
// attribute is skipped, never fatal. Only a document that yields zero usable
// points fails, and it fails with ErrNoUsableGeometry rather than an XML
// error, so callers can distinguish "not a GPX file" from "a GPX file with
// nothing we can credit".
package gpx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrNoUsableGeometry indicates a document that parsed but contained no
// usable track, route, or waypoint coordinates.
var ErrNoUsableGeometry = errors.New("gpx: no usable geometry")

// TrackPoint is a single parsed coordinate with optional elevation and time.
type TrackPoint struct {
	Lat  float64
	Lon  float64
	Ele  *float64
	Time *time.Time
}

// Track is an ordered point sequence extracted from one document.
type Track struct {
	Name   string
	Points []TrackPoint
}

// Parse extracts the highest-priority non-empty geometry from a GPX
// document. XML-level failures surface as-is; an empty result surfaces as
// ErrNoUsableGeometry.
func Parse(data []byte) (Track, error) {
	doc, err := decode(data)
	if err != nil {
		return Track{}, err
	}

	if len(doc.tracks) > 0 {
		return doc.tracks[0], nil
	}
	if len(doc.routes) > 0 {
		return doc.routes[0], nil
	}
	if len(doc.waypoints) > 0 {
		return Track{Name: "Waypoint Route", Points: doc.waypoints}, nil
	}

	return Track{}, ErrNoUsableGeometry
}

type document struct {
	tracks    []Track
	routes    []Track
	waypoints []TrackPoint
}

// decode walks the token stream rather than unmarshalling a full DOM so a
// single bad point cannot poison its siblings.
func decode(data []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	doc := &document{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "trk":
			track, err := decodeContainer(dec, &start, "trkpt")
			if err != nil {
				return nil, err
			}
			if len(track.Points) > 0 {
				doc.tracks = append(doc.tracks, track)
			}
		case "rte":
			route, err := decodeContainer(dec, &start, "rtept")
			if err != nil {
				return nil, err
			}
			if len(route.Points) > 0 {
				doc.routes = append(doc.routes, route)
			}
		case "wpt":
			if pt, ok := decodePoint(dec, &start); ok {
				doc.waypoints = append(doc.waypoints, pt)
			}
		}
	}
}

// decodeContainer consumes a trk or rte element, collecting its points and
// its first name element.
func decodeContainer(dec *xml.Decoder, start *xml.StartElement, pointTag string) (Track, error) {
	var track Track
	depth := 1

	for depth > 0 {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Track{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case pointTag:
				if pt, ok := decodePoint(dec, &t); ok {
					track.Points = append(track.Points, pt)
				}
			case "name":
				// Consume the element either way so its end tag cannot
				// unbalance the container depth.
				text := elementText(dec)
				if track.Name == "" {
					track.Name = text
				}
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}

	return track, nil
}

// decodePoint reads one trkpt/rtept/wpt element. A missing or malformed
// lat/lon attribute makes the point unusable; the element is still consumed
// so parsing continues with the next sibling.
func decodePoint(dec *xml.Decoder, start *xml.StartElement) (TrackPoint, bool) {
	var pt TrackPoint
	usable := true

	lat, latOK := attrFloat(start, "lat")
	lon, lonOK := attrFloat(start, "lon")
	if !latOK || !lonOK {
		usable = false
	}
	pt.Lat, pt.Lon = lat, lon

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return TrackPoint{}, false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "ele":
				if v, err := strconv.ParseFloat(strings.TrimSpace(elementText(dec)), 64); err == nil {
					pt.Ele = &v
				}
			case "time":
				if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(elementText(dec))); err == nil {
					pt.Time = &ts
				}
			default:
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}

	return pt, usable
}

// elementText returns the character data up to the element's end tag.
func elementText(dec *xml.Decoder) string {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}
	return sb.String()
}

func attrFloat(start *xml.StartElement, name string) (float64, bool) {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			v, err := strconv.ParseFloat(strings.TrimSpace(attr.Value), 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}
