// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package polyline implements the Google encoded polyline format plus the
// raw JSON fallback representation used for manually uploaded tracks.
//
// Two representations circulate in stored accomplishment metadata:
//
//   - the canonical encoded polyline (coordinates scaled by 1e5,
//     delta-encoded, zig-zag signed, emitted as 5-bit ASCII chunks), and
//   - a plain JSON array of [lat, lon] pairs, produced when a long track is
//     decimated to at most 100 points before storage.
//
// Consumers must accept either; DecodeAny tries the JSON form first and
// falls back to the encoded form, matching how stored records are read.
package polyline

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"

	"github.com/trailmark-dev/trailmark/internal/geo"
)

// DefaultMaxPoints is the decimation ceiling applied to manual tracks
// before they are stored in the raw JSON representation.
const DefaultMaxPoints = 100

// ErrInvalidPolyline indicates a truncated or malformed encoded polyline.
var ErrInvalidPolyline = errors.New("polyline: invalid encoding")

// Encode converts a coordinate sequence to the canonical encoded polyline
// string. Coordinates are quantized to 1e-5 degrees.
func Encode(points []geo.Point) string {
	var sb strings.Builder
	prevLat, prevLon := 0, 0

	for _, p := range points {
		lat := quantize(p.Lat)
		lon := quantize(p.Lon)

		encodeSigned(&sb, lat-prevLat)
		encodeSigned(&sb, lon-prevLon)

		prevLat, prevLon = lat, lon
	}

	return sb.String()
}

// Decode converts a canonical encoded polyline string back to coordinates.
// The result is exact up to the 1e-5 quantization applied by Encode.
func Decode(s string) ([]geo.Point, error) {
	var points []geo.Point
	lat, lon := 0, 0

	for i := 0; i < len(s); {
		dLat, n, err := decodeSigned(s[i:])
		if err != nil {
			return nil, err
		}
		i += n

		dLon, n, err := decodeSigned(s[i:])
		if err != nil {
			return nil, err
		}
		i += n

		lat += dLat
		lon += dLon
		points = append(points, geo.Point{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return points, nil
}

// DecodeAny accepts either representation: a JSON array of [lat, lon] pairs
// or a canonical encoded polyline. JSON is tried first because every stored
// raw polyline begins with '[' and no encoded polyline can.
func DecodeAny(s string) ([]geo.Point, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") {
		var pairs [][]float64
		if err := json.Unmarshal([]byte(trimmed), &pairs); err == nil {
			points := make([]geo.Point, 0, len(pairs))
			for _, pair := range pairs {
				if len(pair) < 2 {
					continue
				}
				points = append(points, geo.Point{Lat: pair[0], Lon: pair[1]})
			}
			return points, nil
		}
	}
	return Decode(trimmed)
}

// EncodeRaw produces the JSON-array fallback representation.
func EncodeRaw(points []geo.Point) (string, error) {
	pairs := make([][2]float64, len(points))
	for i, p := range points {
		pairs[i] = [2]float64{p.Lat, p.Lon}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decimate keeps every nth point so that at most maxPoints survive,
// preserving document order. The first point is always kept.
func Decimate(points []geo.Point, maxPoints int) []geo.Point {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	if len(points) <= maxPoints {
		return points
	}

	step := len(points) / maxPoints
	if step < 1 {
		step = 1
	}

	out := make([]geo.Point, 0, maxPoints+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	return out
}

func quantize(v float64) int {
	if v < 0 {
		return int(v*1e5 - 0.5)
	}
	return int(v*1e5 + 0.5)
}

// encodeSigned zig-zags the sign bit into bit 0 and emits the value as
// little-endian 5-bit chunks, each offset by 63, with bit 5 set on every
// chunk except the last.
func encodeSigned(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte(0x20|(u&0x1f)) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}

func decodeSigned(s string) (value, consumed int, err error) {
	result := 0
	shift := uint(0)

	for i := 0; i < len(s); i++ {
		b := int(s[i]) - 63
		if b < 0 {
			return 0, 0, ErrInvalidPolyline
		}
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i + 1, nil
			}
			return result >> 1, i + 1, nil
		}
	}

	return 0, 0, ErrInvalidPolyline
}
