// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package strava

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailmark-dev/trailmark/internal/event"
	"github.com/trailmark-dev/trailmark/internal/geo"
	"github.com/trailmark-dev/trailmark/internal/geofence"
	"github.com/trailmark-dev/trailmark/internal/ledger"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
	"github.com/trailmark-dev/trailmark/internal/models"
	"github.com/trailmark-dev/trailmark/internal/quota"
	"github.com/trailmark-dev/trailmark/internal/store"
)

// ErrNotLinked is returned when a user has no connected account.
var ErrNotLinked = errors.New("strava: account not linked")

// Inter-request delays are deliberate backpressure against the partner's
// rate limits, not performance tuning. Do not remove them.
const (
	defaultInterPageDelay = 100 * time.Millisecond
	defaultInterYearDelay = 200 * time.Millisecond

	// syncHistoryWindow is the trailing span sync_history is pruned to.
	syncHistoryWindow = 30 * 24 * time.Hour

	// stravaActivityPoints is the fixed credit per synced activity.
	stravaActivityPoints = 1
)

// Classification names the sync mode chosen for an invocation.
type Classification string

const (
	ClassFirstTime   Classification = "first-time"
	ClassCurrentYear Classification = "current-year"
	ClassRateLimited Classification = "rate-limited"
)

// Result summarizes one sync invocation.
type Result struct {
	Classification Classification `json:"classification"`
	YearsScanned   []int          `json:"years_scanned"`
	Fetched        int            `json:"fetched"`
	Credited       int            `json:"credited"`
}

// API is the partner-client surface the orchestrator needs; *Client
// satisfies it, tests substitute their own.
type API interface {
	RefreshToken(ctx context.Context, refreshToken string) (*models.StravaTokenResponse, error)
	FetchActivitiesPage(ctx context.Context, accessToken string, before, after int64, page int) ([]models.StravaActivity, error)
	PerPage() int
}

// Orchestrator runs the sync state machine. It is the sole owner of
// StravaAccountState: nothing else mutates the account's activities map,
// sync history, or tokens.
type Orchestrator struct {
	client API
	store  *store.Store
	ledger *ledger.Ledger
	guard  *quota.Guard
	fence  *geofence.Validator
	log    zerolog.Logger

	interPageDelay time.Duration
	interYearDelay time.Duration
	now            func() time.Time
}

// NewOrchestrator wires a sync orchestrator.
func NewOrchestrator(client API, s *store.Store, l *ledger.Ledger, g *quota.Guard, fence *geofence.Validator) *Orchestrator {
	return &Orchestrator{
		client:         client,
		store:          s,
		ledger:         l,
		guard:          g,
		fence:          fence,
		log:            logging.WithComponent("strava"),
		interPageDelay: defaultInterPageDelay,
		interYearDelay: defaultInterYearDelay,
		now:            time.Now,
	}
}

// Sync executes one sync invocation for a user:
// refresh the token if expired, classify, fetch the relevant event-year
// windows, filter by geofence and window (or the virtual year's text
// rule), merge into the activities map, and credit newly seen activities
// through the ledger.
func (o *Orchestrator) Sync(ctx context.Context, userID string) (*Result, error) {
	started := o.now()

	u, err := o.store.GetOrCreateUser(userID)
	if err != nil {
		return nil, err
	}
	if u.Strava == nil || u.Strava.RefreshToken == "" {
		return nil, ErrNotLinked
	}

	if err := o.guard.AuthorizeSync(u, o.now()); err != nil {
		metrics.SyncErrors.WithLabelValues("rate_limited").Inc()
		return &Result{Classification: ClassRateLimited}, err
	}

	// Token refresh is fail-closed: no fetch ever runs on a stale token.
	if u.Strava.TokenExpired(o.now()) {
		token, err := o.client.RefreshToken(ctx, u.Strava.RefreshToken)
		if err != nil {
			return nil, err
		}
		u.Strava.AccessToken = token.AccessToken
		u.Strava.RefreshToken = token.RefreshToken
		u.Strava.ExpiresAt = token.ExpiresAt
		if err := o.store.PutUser(u); err != nil {
			return nil, fmt.Errorf("persist refreshed token: %w", err)
		}
	}

	firstTime := !u.Strava.HistoricalSyncCompleted
	classification := ClassCurrentYear
	windows := o.windowsFor(firstTime)
	if firstTime {
		classification = ClassFirstTime
	}

	result := &Result{Classification: classification}
	fetched := make([]models.StravaActivity, 0, o.client.PerPage())
	for i, w := range windows {
		if i > 0 {
			o.sleep(ctx, o.interYearDelay)
		}
		result.YearsScanned = append(result.YearsScanned, w.Year)

		acts, err := o.fetchWindow(ctx, u.Strava.AccessToken, w)
		if err != nil {
			metrics.RecordSync(o.now().Sub(started), result.Fetched, 0, err)
			return result, err
		}
		result.Fetched += len(acts)
		fetched = append(fetched, filterEligible(o.fence, w, acts)...)
	}

	credited, err := o.merge(userID, fetched, firstTime)
	if err != nil {
		metrics.RecordSync(o.now().Sub(started), result.Fetched, credited, err)
		return result, err
	}
	result.Credited = credited

	if err := o.guard.ConsumeSync(userID); err != nil {
		return result, err
	}

	metrics.RecordSync(o.now().Sub(started), result.Fetched, credited, nil)
	o.log.Info().
		Str("user", userID).
		Str("classification", string(classification)).
		Int("fetched", result.Fetched).
		Int("credited", credited).
		Msg("sync completed")

	return result, nil
}

// windowsFor picks the event windows to scan: every known year for a
// first-time (historical) sync, just the current year otherwise.
func (o *Orchestrator) windowsFor(firstTime bool) []event.Window {
	if firstTime {
		return event.All()
	}
	if w, ok := event.ByYear(event.CurrentYear()); ok {
		return []event.Window{w}
	}
	return nil
}

// fetchWindow paginates one event window, stopping at the first short
// page, with the mandated inter-page delay.
func (o *Orchestrator) fetchWindow(ctx context.Context, accessToken string, w event.Window) ([]models.StravaActivity, error) {
	var out []models.StravaActivity
	for page := 1; ; page++ {
		if page > 1 {
			o.sleep(ctx, o.interPageDelay)
		}
		acts, err := o.client.FetchActivitiesPage(ctx, accessToken, w.EndUnix(), w.StartUnix(), page)
		if err != nil {
			return nil, err
		}
		out = append(out, acts...)
		if len(acts) < o.client.PerPage() {
			return out, nil
		}
	}
}

// filterEligible keeps activities that fall inside the window and whose
// start or end coordinate is inside the region. The virtual year instead
// matches on activity name, regardless of location.
func filterEligible(fence *geofence.Validator, w event.Window, acts []models.StravaActivity) []models.StravaActivity {
	var out []models.StravaActivity
	for _, a := range acts {
		if !w.Contains(a.StartDate) {
			continue
		}
		if w.Year == event.VirtualYear {
			if event.MatchesVirtualYear(a.Name) {
				out = append(out, a)
			}
			continue
		}
		if fence.StartEndInRegion(latLng(a.StartLatLng), latLng(a.EndLatLng)) {
			out = append(out, a)
		} else {
			metrics.GeofenceRejections.Inc()
		}
	}
	return out
}

func latLng(pair []float64) *geo.Point {
	if len(pair) < 2 {
		return nil
	}
	return &geo.Point{Lat: pair[0], Lon: pair[1]}
}

// merge folds fetched activities into the account's activities map
// (overwrite by external id, last fetch wins) against a freshly read
// snapshot, credits newly seen ids through the ledger, records the sync
// in history, and marks the historical sync complete when applicable.
func (o *Orchestrator) merge(userID string, acts []models.StravaActivity, firstTime bool) (int, error) {
	u, err := o.store.GetOrCreateUser(userID)
	if err != nil {
		return 0, err
	}
	if u.Strava == nil {
		return 0, ErrNotLinked
	}
	if u.Strava.Activities == nil {
		u.Strava.Activities = make(map[string]models.StravaActivity, len(acts))
	}

	var newActs []models.StravaActivity
	for _, a := range acts {
		id := strconv.FormatInt(a.ID, 10)
		if _, seen := u.Strava.Activities[id]; !seen {
			newActs = append(newActs, a)
		}
		u.Strava.Activities[id] = a
	}

	now := o.now()
	u.Strava.SyncHistory = pruneHistory(append(u.Strava.SyncHistory, now), now)
	if firstTime {
		u.Strava.HistoricalSyncCompleted = true
	}
	if err := o.store.PutUser(u); err != nil {
		return 0, fmt.Errorf("persist account state: %w", err)
	}

	credited := 0
	for _, a := range newActs {
		if err := o.credit(userID, a); err != nil {
			if errors.Is(err, ledger.ErrDuplicate) {
				continue
			}
			metrics.SyncErrors.WithLabelValues("ledger").Inc()
			return credited, err
		}
		credited++
	}
	return credited, nil
}

func (o *Orchestrator) credit(userID string, a models.StravaActivity) error {
	w, ok := event.WindowFor(a.StartDate)
	if !ok {
		return fmt.Errorf("strava: activity %d outside any event window", a.ID)
	}

	acc := &models.Accomplishment{
		UserID:      userID,
		Type:        models.AccomplishmentActivity,
		Name:        a.Name,
		CompletedAt: a.StartDate.UnixMilli(),
		Year:        w.Year,
		Metadata: models.Metadata{
			Source: models.SourceActivity,
			Points: stravaActivityPoints,
			Activity: &models.ActivitySourceData{
				ActivityType:     a.Type,
				DistanceKm:       a.Distance / 1000,
				MovingTimeMin:    a.MovingTime / 60,
				Polyline:         summaryPolyline(a),
				StravaActivityID: a.ID,
			},
		},
	}

	_, err := o.ledger.Create(acc)
	return err
}

func summaryPolyline(a models.StravaActivity) string {
	if a.Map == nil {
		return ""
	}
	return a.Map.SummaryPolyline
}

func pruneHistory(history []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-syncHistoryWindow)
	out := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			out = append(out, ts)
		}
	}
	return out
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
