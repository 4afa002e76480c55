// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

// Package strava talks to the partner activity API: OAuth token refresh
// and the paginated activities listing. Outbound calls are paced with a
// token-bucket limiter and guarded by a circuit breaker, because the
// partner enforces strict rate limits and a tripped limit affects every
// user of the shared application quota.
package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/trailmark-dev/trailmark/internal/config"
	"github.com/trailmark-dev/trailmark/internal/logging"
	"github.com/trailmark-dev/trailmark/internal/metrics"
	"github.com/trailmark-dev/trailmark/internal/models"
)

var (
	// ErrTokenRefreshFailed aborts a sync entirely. It is user-actionable:
	// the account must be re-linked.
	ErrTokenRefreshFailed = errors.New("strava: token refresh failed")

	// ErrRateLimited marks a partner 429; retry later.
	ErrRateLimited = errors.New("strava: rate limited by partner API")

	// ErrUpstream marks transient partner failures.
	ErrUpstream = errors.New("strava: upstream unavailable")
)

const breakerName = "strava-api"

// Client is the HTTP client for the partner API.
type Client struct {
	httpClient *http.Client
	cfg        config.StravaConfig
	cb         *gobreaker.CircuitBreaker[[]models.StravaActivity]
	limiter    *rate.Limiter
}

// NewClient builds a Client from configuration. The breaker opens after a
// 60% failure rate over at least 10 requests and probes again after two
// minutes, mirroring how sustained partner outages should shed load.
func NewClient(cfg config.StravaConfig) *Client {
	metrics.RecordCircuitBreakerState(breakerName, "closed")

	cb := gobreaker.NewCircuitBreaker[[]models.StravaActivity](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("circuit breaker state transition")
			metrics.RecordCircuitBreakerState(name, stateToString(to))
		},
	})

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cb:         cb,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// RefreshToken exchanges a refresh token for a new token triple. Any
// failure maps to ErrTokenRefreshFailed; callers must not fetch with a
// stale token afterwards.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*models.StravaTokenResponse, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTokenRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("token_refresh").Inc()
		return nil, fmt.Errorf("%w: %v", ErrTokenRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SyncErrors.WithLabelValues("token_refresh").Inc()
		return nil, fmt.Errorf("%w: status %d", ErrTokenRefreshFailed, resp.StatusCode)
	}

	var token models.StravaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		metrics.SyncErrors.WithLabelValues("token_refresh").Inc()
		return nil, fmt.Errorf("%w: decode response: %v", ErrTokenRefreshFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrTokenRefreshFailed)
	}
	return &token, nil
}

// FetchActivitiesPage retrieves one page of the athlete's activities
// inside [after, before] unix seconds.
func (c *Client) FetchActivitiesPage(ctx context.Context, accessToken string, before, after int64, page int) ([]models.StravaActivity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	activities, err := c.cb.Execute(func() ([]models.StravaActivity, error) {
		return c.fetchPage(ctx, accessToken, before, after, page)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return activities, nil
}

func (c *Client) fetchPage(ctx context.Context, accessToken string, before, after int64, page int) ([]models.StravaActivity, error) {
	q := url.Values{
		"before":   {strconv.FormatInt(before, 10)},
		"after":    {strconv.FormatInt(after, 10)},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(c.cfg.PerPage)},
	}
	reqURL := c.cfg.BaseURL + "/athlete/activities?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("fetch").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.SyncErrors.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: status 401", ErrTokenRefreshFailed)
	case resp.StatusCode != http.StatusOK:
		metrics.SyncErrors.WithLabelValues("fetch").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, body)
	}

	var activities []models.StravaActivity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return activities, nil
}

// PerPage exposes the configured page size for the pagination loop.
func (c *Client) PerPage() int {
	return c.cfg.PerPage
}
