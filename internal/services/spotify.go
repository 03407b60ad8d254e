// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

const (
	DefaultTopTracksLimit = 10
	MaxTopTracksLimit     = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyTopTracks is the paginated response of /me/top/tracks.
type SpotifyTopTracks struct {
	Items    []SpotifyTrack `json:"items"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
}

// SpotifyService implements [Service] for the Spotify Web API.
type SpotifyService struct {
	caller Caller
}

// NewSpotifyService creates a [SpotifyService] that sends requests through caller.
func NewSpotifyService(caller Caller) *SpotifyService {
	return &SpotifyService{caller: caller}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// UserProfile fetches the current user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.caller.GetJSON(ctx, "/me", &user); err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &user, nil
}

// Listener maps the profile onto [models.Listener].
func (s *SpotifyService) Listener(ctx context.Context) (*models.Listener, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}

	listener := &models.Listener{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
	}
	if len(user.Images) > 0 {
		listener.ImageURL = user.Images[0].URL
	}
	return listener, nil
}

// TopTracksPage fetches one page of the user's top tracks.
func (s *SpotifyService) TopTracksPage(ctx context.Context, tr models.TimeRange, limit int) (*SpotifyTopTracks, error) {
	if !tr.Valid() {
		return nil, fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, tr)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(ClampLimit(limit)))
	params.Set("time_range", string(tr))

	var page SpotifyTopTracks
	if err := s.caller.GetJSON(ctx, "/me/top/tracks?"+params.Encode(), &page); err != nil {
		return nil, fmt.Errorf("failed to get top tracks: %w", err)
	}
	return &page, nil
}

// TopTracks returns the ranked tracks for tr.
func (s *SpotifyService) TopTracks(ctx context.Context, tr models.TimeRange, limit int) ([]models.Track, error) {
	page, err := s.TopTracksPage(ctx, tr, limit)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

// ClampLimit bounds a requested track count to what the endpoint accepts; non-positive values use the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTopTracksLimit
	case limit > MaxTopTracksLimit:
		return MaxTopTracksLimit
	}
	return limit
}

func (t SpotifyTrack) toTrack() models.Track {
	artist := "Unknown Artist"
	if len(t.Artists) > 0 && t.Artists[0].Name != "" {
		artist = t.Artists[0].Name
	}

	return models.Track{
		ID:         t.ID,
		Title:      t.Name,
		Artist:     artist,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		URI:        t.URI,
	}
}

var _ Service = (*SpotifyService)(nil)
