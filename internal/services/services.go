package services

import (
	"context"

	"github.com/desertthunder/spotrcpt/internal/models"
)

// Service is a music provider that can describe the listener and rank their top tracks.
type Service interface {
	// Listener returns the authenticated listener's profile.
	Listener(ctx context.Context) (*models.Listener, error)

	// TopTracks returns up to limit tracks ranked by affinity over the given range.
	TopTracks(ctx context.Context, tr models.TimeRange, limit int) ([]models.Track, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Caller performs authenticated GET requests and decodes the JSON payload into v.
// [auth.Manager] implements it with caching, refresh and retry.
type Caller interface {
	GetJSON(ctx context.Context, endpoint string, v any) error
}
