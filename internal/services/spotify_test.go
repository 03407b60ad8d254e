package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/spotrcpt/internal/auth"
	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
	tu "github.com/desertthunder/spotrcpt/internal/testing"
)

// fakeCaller decodes canned payloads keyed by endpoint and records requests.
type fakeCaller struct {
	payloads  map[string]string
	err       error
	endpoints []string
}

func (f *fakeCaller) GetJSON(ctx context.Context, endpoint string, v any) error {
	f.endpoints = append(f.endpoints, endpoint)
	if f.err != nil {
		return f.err
	}
	u, _ := url.Parse(endpoint)
	payload, ok := f.payloads[u.Path]
	if !ok {
		return errors.New("unexpected endpoint " + endpoint)
	}
	return json.Unmarshal([]byte(payload), v)
}

const topTracksPayload = `{
	"items": [
		{"id": "t1", "name": "Song One", "duration_ms": 201000, "uri": "spotify:track:t1",
		 "artists": [{"name": "First"}, {"name": "Second"}], "album": {"name": "Album One"}},
		{"id": "t2", "name": "Song Two", "duration_ms": 99000, "artists": [], "album": {"name": ""}}
	],
	"total": 2, "limit": 10, "offset": 0, "next": null
}`

const profilePayload = `{
	"id": "u1", "display_name": "Ada", "email": "ada@example.com", "country": "GB", "product": "premium",
	"images": [{"url": "https://img.test/ada.png", "height": 64, "width": 64}]
}`

func TestSpotifyService(t *testing.T) {
	t.Run("Name", func(t *testing.T) {
		if got := NewSpotifyService(&fakeCaller{}).Name(); got != "Spotify" {
			t.Errorf("expected service name 'Spotify', got %s", got)
		}
	})

	t.Run("Listener", func(t *testing.T) {
		caller := &fakeCaller{payloads: map[string]string{"/me": profilePayload}}

		l, err := NewSpotifyService(caller).Listener(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := models.Listener{
			ID: "u1", DisplayName: "Ada", Email: "ada@example.com", Country: "GB", Product: "premium",
			ImageURL: "https://img.test/ada.png",
		}
		if *l != want {
			t.Errorf("expected %+v, got %+v", want, *l)
		}
	})

	t.Run("TopTracks", func(t *testing.T) {
		caller := &fakeCaller{payloads: map[string]string{"/me/top/tracks": topTracksPayload}}

		tracks, err := NewSpotifyService(caller).TopTracks(context.Background(), models.MediumTerm, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		first := tracks[0]
		if first.Title != "Song One" || first.Artist != "First" || first.Album != "Album One" || first.DurationMS != 201000 {
			t.Errorf("unexpected first track %+v", first)
		}
		if tracks[1].Artist != "Unknown Artist" {
			t.Errorf("expected fallback artist, got %q", tracks[1].Artist)
		}

		u, _ := url.Parse(caller.endpoints[0])
		if u.Query().Get("limit") != "10" || u.Query().Get("time_range") != "medium_term" {
			t.Errorf("unexpected query %s", u.RawQuery)
		}
	})

	t.Run("Invalid Time Range", func(t *testing.T) {
		caller := &fakeCaller{}
		_, err := NewSpotifyService(caller).TopTracks(context.Background(), "forever", 10)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(caller.endpoints) != 0 {
			t.Error("expected no request for an invalid range")
		}
	})

	t.Run("Caller Error Is Wrapped", func(t *testing.T) {
		caller := &fakeCaller{err: shared.ErrNoRefreshToken}
		if _, err := NewSpotifyService(caller).Listener(context.Background()); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 10},
		{0, 10},
		{1, 1},
		{25, 25},
		{50, 50},
		{51, 50},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.in), func(t *testing.T) {
			if got := ClampLimit(tt.in); got != tt.want {
				t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSpotifyServiceThroughManager(t *testing.T) {
	store := auth.NewMemoryStore()
	store.Set(auth.KeyAccessToken, "access")
	store.Set(auth.KeyRefreshToken, "refresh")
	store.Set(auth.KeyTokenExpiration, strconv.FormatInt(time.Now().Add(time.Hour).UnixMilli(), 10))

	transport := tu.NewScriptedTransport(
		tu.Reply{Status: http.StatusOK, Body: profilePayload},
		tu.Reply{Status: http.StatusOK, Body: topTracksPayload},
	)

	cfg := auth.DefaultManagerConfig()
	cfg.ClientID = "client"
	cfg.APIBaseURL = "https://api.test/v1"
	m, err := auth.NewManager(cfg, store, auth.NewRelayExchanger("http://127.0.0.1:0", nil),
		auth.WithHTTPClient(transport.Client()),
		auth.WithLimiter(rate.NewLimiter(rate.Inf, 0)),
	)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	svc := NewSpotifyService(m)
	for range 2 {
		if _, err := svc.Listener(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := svc.TopTracks(context.Background(), models.ShortTerm, 5); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	reqs := transport.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected repeated calls to be served from cache, got %d requests", len(reqs))
	}
	if got := reqs[1].URL.String(); got != "https://api.test/v1/me/top/tracks?limit=5&time_range=short_term" {
		t.Errorf("unexpected URL %s", got)
	}
}
