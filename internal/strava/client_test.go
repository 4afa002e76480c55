// Trailmark - Activity Verification and Accomplishment Ledger
// Copyright 2026 Trailmark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trailmark-dev/trailmark

package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trailmark-dev/trailmark/internal/config"
)

func testClientConfig(baseURL, tokenURL string) config.StravaConfig {
	return config.StravaConfig{
		ClientID:          "client-1",
		ClientSecret:      "secret-1",
		BaseURL:           baseURL,
		TokenURL:          tokenURL,
		Timeout:           5 * time.Second,
		PerPage:           100,
		RequestsPerSecond: 1000,
	}
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "client-1" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_at":1999999999}`))
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL, srv.URL+"/oauth/token"))
	token, err := c.RefreshToken(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if token.AccessToken != "new-access" || token.RefreshToken != "new-refresh" {
		t.Errorf("token = %+v", token)
	}
	if token.ExpiresAt != 1999999999 {
		t.Errorf("ExpiresAt = %d", token.ExpiresAt)
	}
}

func TestRefreshTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":`))
		}},
		{"empty access token", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"","refresh_token":"r","expires_at":1}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(testClientConfig(srv.URL, srv.URL))
			if _, err := c.RefreshToken(context.Background(), "r"); !errors.Is(err, ErrTokenRefreshFailed) {
				t.Errorf("err = %v, want ErrTokenRefreshFailed", err)
			}
		})
	}
}

func TestFetchActivitiesPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("before") != "2000" || q.Get("after") != "1000" {
			t.Errorf("window = before %s after %s", q.Get("before"), q.Get("after"))
		}
		if q.Get("page") != "3" || q.Get("per_page") != "100" {
			t.Errorf("pagination = page %s per_page %s", q.Get("page"), q.Get("per_page"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":101,"name":"Morning Run","type":"Run","distance":5000.0,"moving_time":1800}]`))
	}))
	defer srv.Close()

	c := NewClient(testClientConfig(srv.URL, srv.URL))
	acts, err := c.FetchActivitiesPage(context.Background(), "tok", 2000, 1000, 3)
	if err != nil {
		t.Fatalf("FetchActivitiesPage: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("len = %d, want 1", len(acts))
	}
	if acts[0].ID != 101 || acts[0].Name != "Morning Run" || acts[0].Distance != 5000 {
		t.Errorf("activity = %+v", acts[0])
	}
}

func TestFetchActivitiesStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, ErrTokenRefreshFailed},
		{"server error", http.StatusBadGateway, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(testClientConfig(srv.URL, srv.URL))
			if _, err := c.FetchActivitiesPage(context.Background(), "tok", 0, 0, 1); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
