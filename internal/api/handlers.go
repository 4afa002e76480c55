// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/trailmark-dev/trailmark/internal/catalog"
	"github.com/trailmark-dev/trailmark/internal/checkin"
	"github.com/trailmark-dev/trailmark/internal/event"
	"github.com/trailmark-dev/trailmark/internal/flag"
	"github.com/trailmark-dev/trailmark/internal/gpx"
	"github.com/trailmark-dev/trailmark/internal/ledger"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/quota"
	"github.com/trailmark-dev/trailmark/internal/store"
	"github.com/trailmark-dev/trailmark/internal/strava"
	"github.com/trailmark-dev/trailmark/internal/upload"
	"github.com/trailmark-dev/trailmark/internal/validation"
)

// maxMultipartMemory bounds in-memory multipart parsing; files beyond it
// spill to disk before the size checks run.
const maxMultipartMemory = 1 << 20

// Handler carries the wired services behind the HTTP surface.
type Handler struct {
	store    *store.Store
	ledger   *ledger.Ledger
	guard    *quota.Guard
	checkins *checkin.Service
	uploads  *upload.Service
	flags    *flag.Service
	syncer   *strava.Orchestrator
	catalog  *catalog.Client
}

// NewHandler wires a Handler.
func NewHandler(s *store.Store, l *ledger.Ledger, g *quota.Guard, ci *checkin.Service,
	up *upload.Service, fl *flag.Service, sy *strava.Orchestrator, cat *catalog.Client) *Handler {
	return &Handler{
		store:    s,
		ledger:   l,
		guard:    g,
		checkins: ci,
		uploads:  up,
		flags:    fl,
		syncer:   sy,
		catalog:  cat,
	}
}

// userID extracts the authenticated subject. Authentication itself is an
// external collaborator; upstream middleware is expected to have verified
// the identity this header asserts.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) requireUser(rw *ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
		return "", false
	}
	return id, true
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]string{"status": "ok"})
}

// Upload handles POST /api/gpx: a multipart manual submission, either a
// GPX file or a catalog route reference.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "malformed multipart form")
		return
	}

	year, _ := strconv.Atoi(r.FormValue("year"))
	req := &upload.Request{
		UserID:       uid,
		Method:       r.FormValue("uploadMethod"),
		ActivityType: r.FormValue("activityType"),
		Description:  r.FormValue("description"),
		Year:         year,
		DayKey:       r.FormValue("day"),
		RouteID:      r.FormValue("routeId"),
	}

	if u, err := h.store.GetUser(uid); err == nil {
		req.Admin = u.Admin
	}

	if file, header, err := r.FormFile("gpx"); err == nil {
		defer file.Close()
		data, rerr := io.ReadAll(file)
		if rerr != nil {
			rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "unreadable file upload")
			return
		}
		req.FileName = header.Filename
		req.FileType = header.Header.Get("Content-Type")
		req.FileData = data
	}

	result, err := h.uploads.Submit(r.Context(), req)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Created(result)
}

// UploadCounts handles GET /api/gpx/upload-counts?year=.
func (h *Handler) UploadCounts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		year = event.CurrentYear()
	}

	buckets, total, err := h.guard.UploadCounts(uid, year)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{
		"year":    year,
		"buckets": buckets,
		"total":   total,
	})
}

// FetchGPX handles GET /api/gpx/fetch?url=: a bounded proxy for route GPX
// documents, so browser clients avoid cross-origin fetches.
func (h *Handler) FetchGPX(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	url := r.URL.Query().Get("url")
	if url == "" {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "url parameter is required")
		return
	}

	data, err := h.catalog.FetchGPX(r.Context(), url)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("gpx proxy write failed")
	}
}

// Routes handles GET /api/routes.
func (h *Handler) Routes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	routes, err := h.catalog.ListRoutes(r.Context())
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"routes": routes})
}

// StravaSync handles POST /api/strava/sync.
func (h *Handler) StravaSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	result, err := h.syncer.Sync(r.Context(), uid)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Success(result)
}

type checkInRequest struct {
	Samples []models.GPSSample `json:"samples"`
}

// CheckIn handles POST /api/check-in.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	ci, err := h.checkins.Create(uid, req.Samples)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Created(map[string]any{
		"checkin_id":        ci.ID,
		"coordinates":       map[string]float64{"lat": ci.Lat, "lon": ci.Lon},
		"accuracy":          ci.BestAccuracy,
		"samples_collected": len(ci.Samples),
	})
}

// CheckIns handles GET /api/check-ins.
func (h *Handler) CheckIns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	list, err := h.checkins.List(uid)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"checkins": list})
}

// DeleteCheckIn handles DELETE /api/check-ins/{id}.
func (h *Handler) DeleteCheckIn(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	if err := h.checkins.Delete(uid, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.NoContent()
}

type flagRequest struct {
	FlagID  string `json:"flag_id"`
	Name    string `json:"name"`
	Partner string `json:"partner"`
	Points  int    `json:"points"`
	Type    string `json:"type"`
	Year    int    `json:"year"`
	Via     string `json:"via"` // "scan" (default) or "check"
}

// Flag handles POST /api/flags.
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	var req flagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
		return
	}

	claim := &flag.Claim{
		FlagID:  req.FlagID,
		Name:    req.Name,
		Partner: req.Partner,
		Points:  req.Points,
		Type:    models.AccomplishmentType(req.Type),
		Year:    req.Year,
	}

	var (
		acc *models.Accomplishment
		err error
	)
	if req.Via == "check" {
		acc, err = h.flags.CreditCheck(uid, claim)
	} else {
		acc, err = h.flags.CreditScan(uid, claim)
	}
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Created(acc)
}

// Accomplishments handles GET /api/accomplishments with optional type and
// year filters.
func (h *Handler) Accomplishments(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	var (
		accs []models.Accomplishment
		err  error
	)
	q := r.URL.Query()
	switch {
	case q.Get("type") != "":
		accs, err = h.ledger.ListByType(uid, models.AccomplishmentType(q.Get("type")))
	case q.Get("year") != "":
		var year int
		if year, err = strconv.Atoi(q.Get("year")); err != nil {
			rw.Error(http.StatusBadRequest, ErrCodeBadRequest, "year must be an integer")
			return
		}
		accs, err = h.ledger.ListByYear(uid, year)
	default:
		accs, err = h.ledger.ListByUser(uid)
	}
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.Success(map[string]any{"accomplishments": accs})
}

// DeleteAccomplishment handles DELETE /api/accomplishments/{id}.
func (h *Handler) DeleteAccomplishment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	if err := h.ledger.Delete(uid, chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	rw.NoContent()
}

// User handles GET /api/user: the caller's record with quota state.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	uid, ok := h.requireUser(rw, r)
	if !ok {
		return
	}

	u, err := h.store.GetOrCreateUser(uid)
	if err != nil {
		h.writeDomainError(rw, r, err)
		return
	}
	if u.Strava != nil {
		// Tokens never leave the server.
		sanitized := *u.Strava
		sanitized.AccessToken = ""
		sanitized.RefreshToken = ""
		u.Strava = &sanitized
	}
	rw.Success(u)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(rw *ResponseWriter, r *http.Request, err error) {
	var (
		verr *validation.RequestValidationError
		qerr *quota.Error
	)
	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, apiErr.Message, apiErr.Details)
	case errors.As(err, &qerr):
		rw.ErrorWithDetails(http.StatusTooManyRequests, ErrCodeQuotaExceeded, qerr.Error(), map[string]any{
			"resource":  qerr.Resource,
			"used":      qerr.Used,
			"remaining": qerr.Remaining,
			"limit":     qerr.Limit,
		})
	case errors.Is(err, upload.ErrGeofenceRejected):
		rw.Error(http.StatusUnprocessableEntity, ErrCodeGeofenceRejected,
			"activity must be located in the event region")
	case errors.Is(err, ledger.ErrDuplicate):
		rw.Error(http.StatusConflict, ErrCodeConflict, "already credited")
	case errors.Is(err, strava.ErrTokenRefreshFailed):
		rw.Error(http.StatusUnauthorized, ErrCodeTokenRefresh,
			"partner token refresh failed, re-link the account")
	case errors.Is(err, strava.ErrNotLinked):
		rw.Error(http.StatusBadRequest, ErrCodeAccountNotLinked, "no linked partner account")
	case errors.Is(err, strava.ErrRateLimited), errors.Is(err, strava.ErrUpstream),
		errors.Is(err, catalog.ErrUpstreamUnavailable):
		rw.Error(http.StatusBadGateway, ErrCodeUpstreamDegraded, "upstream service unavailable")
	case errors.Is(err, store.ErrNotFound):
		rw.Error(http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, gpx.ErrNoUsableGeometry),
		errors.Is(err, upload.ErrFileTooLarge),
		errors.Is(err, upload.ErrBadFileType),
		errors.Is(err, upload.ErrUnknownYear),
		errors.Is(err, upload.ErrMissingRoute),
		errors.Is(err, catalog.ErrGPXTooLarge),
		errors.Is(err, checkin.ErrNoSamples),
		errors.Is(err, flag.ErrMissingFlagID),
		errors.Is(err, flag.ErrBadType),
		errors.Is(err, ledger.ErrInvalidType):
		rw.Error(http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("unhandled request error")
		rw.Error(http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
