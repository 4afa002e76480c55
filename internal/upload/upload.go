// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package upload implements the manual submission pipeline: a GPX file or
// a catalog route becomes a ledger entry, gated by validation, geofence
// and the compound per-day/per-year upload quota.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/catalog"
	"github.com/trailmark-dev/trailmark/internal/config"
	"github.com/trailmark-dev/trailmark/internal/event"
	"github.com/trailmark-dev/trailmark/internal/geo"
	"github.com/trailmark-dev/trailmark/internal/geofence"
	"github.com/trailmark-dev/trailmark/internal/gpx"
	"github.com/trailmark-dev/trailmark/internal/ledger"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/polyline"
	"github.com/trailmark-dev/trailmark/internal/quota"
	"github.com/trailmark-dev/trailmark/internal/stats"
	"github.com/trailmark-dev/trailmark/internal/validation"
)

var (
	// ErrGeofenceRejected marks a parsed activity lying outside the event
	// region. Distinct from validation failures: the file itself was fine.
	ErrGeofenceRejected = errors.New("upload: activity outside event region")

	// ErrFileTooLarge rejects an oversized GPX upload.
	ErrFileTooLarge = errors.New("upload: file exceeds size limit")

	// ErrBadFileType rejects a non-GPX file.
	ErrBadFileType = errors.New("upload: file must be a gpx document")

	// ErrUnknownYear rejects a submission targeting a year with no event
	// window.
	ErrUnknownYear = errors.New("upload: no event window for year")

	// ErrMissingRoute rejects a route submission without a route id.
	ErrMissingRoute = errors.New("upload: route id is required")
)

// Submission methods.
const (
	MethodGPX   = "gpx"
	MethodRoute = "route"
)

// Request is one manual submission.
type Request struct {
	UserID       string `validate:"required"`
	Method       string `validate:"required,oneof=gpx route"`
	ActivityType string `validate:"required,activitytype"`
	Description  string `validate:"max=100"`
	Year         int    `validate:"required"`
	DayKey       string `validate:"required,daykey"`

	// GPX path.
	FileName string
	FileType string // MIME, empty when the client omitted it
	FileData []byte

	// Route path.
	RouteID string

	// Admin submissions use the larger size cap, award one point, and
	// carry an idempotency tag.
	Admin bool
}

// Result reports a credited submission.
type Result struct {
	Accomplishment *models.Accomplishment `json:"accomplishment"`
	DistanceKm     float64                `json:"distance_km"`
	MovingTimeMin  int                    `json:"moving_time_min"`
	Synthesized    bool                   `json:"synthesized,omitempty"`
}

// Service runs the manual submission pipeline.
type Service struct {
	guard   *quota.Guard
	ledger  *ledger.Ledger
	catalog *catalog.Client
	fence   *geofence.Validator
	cfg     config.UploadConfig
	log     zerolog.Logger
	now     func() time.Time
}

// New wires an upload service.
func New(g *quota.Guard, l *ledger.Ledger, c *catalog.Client, fence *geofence.Validator, cfg config.UploadConfig) *Service {
	return &Service{
		guard:   g,
		ledger:  l,
		catalog: c,
		fence:   fence,
		cfg:     cfg,
		log:     logging.WithComponent("upload"),
		now:     time.Now,
	}
}

// Submit validates, measures and credits one manual submission. The quota
// unit is consumed before the ledger write and refunded if the write does
// not happen.
func (s *Service) Submit(ctx context.Context, req *Request) (*Result, error) {
	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, verr
	}
	if _, ok := event.ByYear(req.Year); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownYear, req.Year)
	}
	if req.Description == "" {
		req.Description = "Manual " + req.ActivityType + " submission"
	}

	var (
		result Result
		track  []geo.Point
		err    error
	)
	switch req.Method {
	case MethodGPX:
		track, result, err = s.processGPX(req)
	case MethodRoute:
		track, result, err = s.processRoute(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if err := s.guard.ConsumeManualUpload(req.UserID, req.Year, req.DayKey); err != nil {
		return nil, err
	}

	acc, err := s.ledger.Create(s.buildAccomplishment(req, &result, track))
	if err != nil {
		if rerr := s.guard.RefundManualUpload(req.UserID, req.Year, req.DayKey); rerr != nil {
			s.log.Error().Err(rerr).Str("user", req.UserID).Msg("upload quota refund failed")
		}
		return nil, err
	}
	result.Accomplishment = acc

	s.log.Info().
		Str("user", req.UserID).
		Str("method", req.Method).
		Str("day", req.DayKey).
		Int("year", req.Year).
		Float64("distance_km", result.DistanceKm).
		Msg("manual submission credited")
	return &result, nil
}

func (s *Service) processGPX(req *Request) ([]geo.Point, Result, error) {
	if err := s.checkFile(req); err != nil {
		return nil, Result{}, err
	}

	track, err := gpx.Parse(req.FileData)
	if err != nil {
		return nil, Result{}, err
	}

	points := make([]geo.Point, len(track.Points))
	for i, p := range track.Points {
		points[i] = geo.Point{Lat: p.Lat, Lon: p.Lon}
	}
	if !s.fence.InRegion(points) {
		metrics.GeofenceRejections.Inc()
		return nil, Result{}, ErrGeofenceRejected
	}

	st := stats.Estimate(track.Points)
	return points, Result{DistanceKm: st.DistanceKm, MovingTimeMin: st.MovingTimeMin}, nil
}

// processRoute resolves the submission against the catalog. Catalog
// failures degrade inside GetRoute; the submission proceeds with the
// synthesized record.
func (s *Service) processRoute(ctx context.Context, req *Request) ([]geo.Point, Result, error) {
	if req.RouteID == "" {
		return nil, Result{}, ErrMissingRoute
	}

	route, err := s.catalog.GetRoute(ctx, req.RouteID)
	if err != nil {
		return nil, Result{}, err
	}

	result := Result{DistanceKm: route.DistanceKm, Synthesized: route.Synthesized}

	// The route's GPX is decoration: a failed download never fails the
	// submission.
	var points []geo.Point
	if route.GPXURL != "" {
		points = s.routeTrack(ctx, route.GPXURL)
	}
	return points, result, nil
}

func (s *Service) routeTrack(ctx context.Context, gpxURL string) []geo.Point {
	data, err := s.catalog.FetchGPX(ctx, gpxURL)
	if err != nil {
		s.log.Warn().Err(err).Str("url", gpxURL).Msg("route gpx fetch failed")
		return nil
	}
	track, err := gpx.Parse(data)
	if err != nil {
		s.log.Warn().Err(err).Str("url", gpxURL).Msg("route gpx parse failed")
		return nil
	}
	points := make([]geo.Point, len(track.Points))
	for i, p := range track.Points {
		points[i] = geo.Point{Lat: p.Lat, Lon: p.Lon}
	}
	return points
}

func (s *Service) checkFile(req *Request) error {
	if len(req.FileData) == 0 {
		return fmt.Errorf("%w: empty file", ErrBadFileType)
	}

	limit := s.cfg.MaxFileBytes
	if req.Admin {
		limit = s.cfg.MaxAdminFileBytes
	}
	if int64(len(req.FileData)) > limit {
		return fmt.Errorf("%w: %d bytes over %d", ErrFileTooLarge, len(req.FileData), limit)
	}

	if !strings.HasSuffix(strings.ToLower(req.FileName), ".gpx") {
		return fmt.Errorf("%w: %s", ErrBadFileType, req.FileName)
	}
	if req.FileType != "" && !acceptableMIME(req.FileType) {
		return fmt.Errorf("%w: mime %s", ErrBadFileType, req.FileType)
	}
	return nil
}

// acceptableMIME tolerates the zoo of types browsers attach to GPX files.
func acceptableMIME(mime string) bool {
	lower := strings.ToLower(mime)
	return strings.Contains(lower, "gpx") ||
		strings.Contains(lower, "xml") ||
		lower == "application/octet-stream"
}

func (s *Service) buildAccomplishment(req *Request, result *Result, track []geo.Point) *models.Accomplishment {
	points := 0
	tag := ""
	if req.Admin {
		// Admin awards carry one point and an idempotency tag so the same
		// award cannot be granted twice.
		points = 1
		tag = strconv.Itoa(req.Year) + "_" + req.DayKey + "_award"
	}

	// Manual tracks are stored in the raw [lat,lon] array form, decimated
	// first; readers accept both representations through DecodeAny.
	encoded := ""
	if len(track) > 0 {
		if raw, err := polyline.EncodeRaw(polyline.Decimate(track, polyline.DefaultMaxPoints)); err == nil {
			encoded = raw
		}
	}

	name := titleCase(req.ActivityType) + `: "` + req.Description + `"`
	description := fmt.Sprintf("%d %s - %s - %.2fkm",
		req.Year, strings.Replace(req.DayKey, "day", "Day ", 1), req.ActivityType, result.DistanceKm)

	return &models.Accomplishment{
		UserID:      req.UserID,
		Type:        models.AccomplishmentActivity,
		Name:        name,
		Description: description,
		CompletedAt: s.now().UnixMilli(),
		Year:        req.Year,
		Metadata: models.Metadata{
			Source: models.SourceActivity,
			Points: points,
			Activity: &models.ActivitySourceData{
				ActivityType:   req.ActivityType,
				DistanceKm:     result.DistanceKm,
				MovingTimeMin:  result.MovingTimeMin,
				Polyline:       encoded,
				RouteID:        req.RouteID,
				DayKey:         req.DayKey,
				ManualAwardTag: tag,
			},
		},
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
