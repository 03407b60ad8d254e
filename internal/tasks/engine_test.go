package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
	tu "github.com/desertthunder/spotrcpt/internal/testing"
)

type memorySaver struct {
	mu       sync.Mutex
	receipts []*models.Receipt
	err      error
}

func (m *memorySaver) Create(r *models.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r.SetID("saved")
	m.receipts = append(m.receipts, r)
	return nil
}

func newMockService() *tu.MockService {
	return &tu.MockService{
		Owner: models.Listener{ID: "u1", DisplayName: "Ada"},
		Tracks: map[models.TimeRange][]models.Track{
			models.ShortTerm:  tu.MakeTracks("Short", 5),
			models.MediumTerm: tu.MakeTracks("Medium", 3),
			models.LongTerm:   tu.MakeTracks("Long", 12),
		},
	}
}

// failingRanges wraps a mock and fails TopTracks for selected ranges.
type failingRanges struct {
	*tu.MockService
	fail map[models.TimeRange]bool
}

func (f *failingRanges) TopTracks(ctx context.Context, tr models.TimeRange, limit int) ([]models.Track, error) {
	if f.fail[tr] {
		return nil, shared.ErrAPIRequest
	}
	return f.MockService.TopTracks(ctx, tr, limit)
}

func TestReceiptEngineBuild(t *testing.T) {
	t.Run("Builds Ranked Receipt", func(t *testing.T) {
		svc := newMockService()
		engine := NewReceiptEngine(svc, nil, nil)

		receipt, err := engine.Build(context.Background(), models.LongTerm, 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if receipt.Owner.Name() != "Ada" || receipt.TimeRange != models.LongTerm {
			t.Errorf("unexpected receipt header %+v", receipt)
		}
		if len(receipt.Lines) != 10 {
			t.Fatalf("expected 10 lines, got %d", len(receipt.Lines))
		}
		for i, line := range receipt.Lines {
			if line.Position != i+1 {
				t.Errorf("line %d has position %d", i, line.Position)
			}
		}
		if svc.ListenerCalls != 1 || svc.TrackCalls != 1 {
			t.Errorf("expected one call each, got %d %d", svc.ListenerCalls, svc.TrackCalls)
		}
	})

	t.Run("Invalid Range", func(t *testing.T) {
		engine := NewReceiptEngine(newMockService(), nil, nil)
		if _, err := engine.Build(context.Background(), "weekly", 10); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Service Error", func(t *testing.T) {
		svc := newMockService()
		svc.OwnerErr = shared.ErrNoRefreshToken
		engine := NewReceiptEngine(svc, nil, nil)

		if _, err := engine.Build(context.Background(), models.ShortTerm, 10); !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})

	t.Run("Nil Service", func(t *testing.T) {
		engine := NewReceiptEngine(nil, nil, nil)
		if _, err := engine.Build(context.Background(), models.ShortTerm, 10); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Save Without Saver", func(t *testing.T) {
		engine := NewReceiptEngine(newMockService(), nil, nil)
		receipt := models.NewReceipt(models.Listener{ID: "u1"}, models.ShortTerm, nil)
		if err := engine.Save(receipt); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestReceiptEngineBuildAll(t *testing.T) {
	t.Run("All Ranges", func(t *testing.T) {
		svc := newMockService()
		saver := &memorySaver{}
		engine := NewReceiptEngine(svc, saver, nil)
		prog := make(chan ProgressUpdate, 32)

		result, err := engine.BuildAll(context.Background(), prog, BuildAllOpts{Limit: 4, RateLimit: 1000, Save: true})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Successful != 3 || result.Failed != 0 {
			t.Errorf("expected 3 successes, got %d/%d", result.Successful, result.Failed)
		}
		for i, res := range result.Results {
			if res.TimeRange != models.TimeRanges[i] {
				t.Errorf("result %d: expected %s, got %s", i, models.TimeRanges[i], res.TimeRange)
			}
		}
		if n := len(result.Results[2].Receipt.Lines); n != 4 {
			t.Errorf("expected limit to apply, got %d lines", n)
		}
		if svc.ListenerCalls != 1 {
			t.Errorf("expected profile fetched once, got %d", svc.ListenerCalls)
		}
		if len(saver.receipts) != 3 {
			t.Errorf("expected 3 saved receipts, got %d", len(saver.receipts))
		}
		if len(result.Receipts()) != 3 {
			t.Errorf("expected 3 receipts, got %d", len(result.Receipts()))
		}

		close(prog)
		phases := map[Phase]int{}
		for u := range prog {
			phases[u.Phase]++
		}
		if phases[FetchProfile] != 1 || phases[FetchTracks] != 3 || phases[ReceiptDone] != 3 || phases[SaveReceipt] != 3 {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("Duplicate Ranges Build Once", func(t *testing.T) {
		svc := newMockService()
		saver := &memorySaver{}
		engine := NewReceiptEngine(svc, saver, nil)

		ranges := []models.TimeRange{models.LongTerm, models.ShortTerm, models.LongTerm, models.ShortTerm}
		result, err := engine.BuildAll(context.Background(), nil, BuildAllOpts{Ranges: ranges, RateLimit: 1000, Save: true})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(result.Results))
		}
		if result.Results[0].TimeRange != models.LongTerm || result.Results[1].TimeRange != models.ShortTerm {
			t.Errorf("expected long_term then short_term, got %s then %s", result.Results[0].TimeRange, result.Results[1].TimeRange)
		}
		if result.Successful != 2 || result.Failed != 0 {
			t.Errorf("expected 2 successes, got %d/%d", result.Successful, result.Failed)
		}
		if svc.TrackCalls != 2 {
			t.Errorf("expected 2 track fetches, got %d", svc.TrackCalls)
		}
		if len(saver.receipts) != 2 {
			t.Errorf("expected 2 saved receipts, got %d", len(saver.receipts))
		}
	})

	t.Run("Partial Failure", func(t *testing.T) {
		svc := &failingRanges{MockService: newMockService(), fail: map[models.TimeRange]bool{models.MediumTerm: true}}
		engine := NewReceiptEngine(svc, nil, nil)

		result, err := engine.BuildAll(context.Background(), nil, BuildAllOpts{RateLimit: 1000})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Successful != 2 || result.Failed != 1 {
			t.Errorf("expected 2 successes and 1 failure, got %d/%d", result.Successful, result.Failed)
		}
		if !errors.Is(result.Results[1].Error, shared.ErrAPIRequest) {
			t.Errorf("expected medium_term to fail with ErrAPIRequest, got %v", result.Results[1].Error)
		}
	})

	t.Run("Save Failure Is Per Range", func(t *testing.T) {
		engine := NewReceiptEngine(newMockService(), &memorySaver{err: errors.New("disk full")}, nil)

		result, err := engine.BuildAll(context.Background(), nil, BuildAllOpts{
			Ranges: []models.TimeRange{models.ShortTerm}, RateLimit: 1000, Save: true,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Failed != 1 || result.Results[0].Receipt == nil {
			t.Errorf("expected failed save to keep the built receipt, got %+v", result.Results[0])
		}
	})

	t.Run("Profile Failure Aborts", func(t *testing.T) {
		svc := newMockService()
		svc.OwnerErr = shared.ErrAuthenticationExpired
		engine := NewReceiptEngine(svc, nil, nil)

		if _, err := engine.BuildAll(context.Background(), nil, BuildAllOpts{}); !errors.Is(err, shared.ErrAuthenticationExpired) {
			t.Errorf("expected ErrAuthenticationExpired, got %v", err)
		}
		if svc.TrackCalls != 0 {
			t.Errorf("expected no track requests, got %d", svc.TrackCalls)
		}
	})

	t.Run("Save Requires Saver", func(t *testing.T) {
		engine := NewReceiptEngine(newMockService(), nil, nil)
		if _, err := engine.BuildAll(context.Background(), nil, BuildAllOpts{Save: true}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Invalid Range", func(t *testing.T) {
		engine := NewReceiptEngine(newMockService(), nil, nil)
		_, err := engine.BuildAll(context.Background(), nil, BuildAllOpts{Ranges: []models.TimeRange{"bogus"}})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		engine := NewReceiptEngine(newMockService(), nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := engine.BuildAll(ctx, nil, BuildAllOpts{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result.Failed != 3 {
			t.Errorf("expected every range to fail, got %d", result.Failed)
		}
	})
}
