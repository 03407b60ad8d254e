package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
	"github.com/desertthunder/spotrcpt/internal/tasks"
	tu "github.com/desertthunder/spotrcpt/internal/testing"
)

type memorySaver struct {
	saved int
}

func (s *memorySaver) Create(r *models.Receipt) error {
	s.saved++
	r.SetID("r1")
	r.Sequence = s.saved
	return nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(saver tasks.ReceiptSaver) (*Model, *tu.MockService) {
	svc := &tu.MockService{
		Owner:  models.Listener{ID: "u1", DisplayName: "Ada"},
		Tracks: map[models.TimeRange][]models.Track{models.ShortTerm: tu.MakeTracks("Song", 3)},
	}
	return NewModel(context.Background(), tasks.NewReceiptEngine(svc, saver, nil), 10), svc
}

// exec runs cmd and feeds the resulting message back into the model.
func exec(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
}

func TestModel(t *testing.T) {
	t.Run("Picker Lists Every Range", func(t *testing.T) {
		m, _ := newTestModel(nil)
		view := m.View()
		for _, tr := range models.TimeRanges {
			if !strings.Contains(view, tr.Label()) {
				t.Errorf("expected %q in picker, got:\n%s", tr.Label(), view)
			}
		}
	})

	t.Run("Enter Builds Receipt", func(t *testing.T) {
		m, svc := newTestModel(nil)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != LoadingView || m.selected != models.ShortTerm {
			t.Fatalf("expected loading view for short_term, got %v %s", m.view, m.selected)
		}
		if cmd == nil {
			t.Fatal("expected build command")
		}

		exec(t, m, m.buildReceipt(m.selected))
		if m.view != ReceiptView {
			t.Fatalf("expected receipt view, got %v", m.view)
		}
		if m.receipt == nil || len(m.receipt.Lines) != 3 {
			t.Fatalf("expected 3-line receipt, got %+v", m.receipt)
		}
		if svc.TrackCalls != 1 {
			t.Errorf("expected 1 track request, got %d", svc.TrackCalls)
		}
		if view := m.View(); !strings.Contains(view, "SPOTIFY RECEIPT") {
			t.Errorf("expected rendered receipt, got:\n%s", view)
		}
	})

	t.Run("Save Receipt", func(t *testing.T) {
		saver := &memorySaver{}
		m, _ := newTestModel(saver)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		exec(t, m, m.buildReceipt(m.selected))

		_, cmd := m.Update(runes("s"))
		exec(t, m, cmd)
		if saver.saved != 1 {
			t.Fatalf("expected 1 save, got %d", saver.saved)
		}
		if !strings.Contains(m.status, "Saved receipt #1") {
			t.Errorf("unexpected status %q", m.status)
		}

		if _, cmd := m.Update(runes("s")); cmd != nil {
			t.Error("expected no command for an already saved receipt")
		}
		if !strings.Contains(m.status, "already saved") {
			t.Errorf("unexpected status %q", m.status)
		}
	})

	t.Run("Save Without Store", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		exec(t, m, m.buildReceipt(m.selected))

		_, cmd := m.Update(runes("s"))
		exec(t, m, cmd)
		if !strings.Contains(m.status, "Save failed") {
			t.Errorf("expected save failure status, got %q", m.status)
		}
	})

	t.Run("Escape Returns To Picker", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		exec(t, m, m.buildReceipt(m.selected))

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != RangePickerView || m.receipt != nil {
			t.Errorf("expected picker with no receipt, got %v", m.view)
		}
	})

	t.Run("Build Error Shows Hint", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m.Update(receiptBuiltMsg(nil, shared.ErrNoRefreshToken))

		view := m.View()
		if !strings.Contains(view, "Could not print receipt") || !strings.Contains(view, "auth login") {
			t.Errorf("expected error view with login hint, got:\n%s", view)
		}
		if _, cmd := m.Update(runes("s")); cmd != nil {
			t.Error("expected save to be ignored on error")
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m, _ := newTestModel(nil)
		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})

	t.Run("Window Resize", func(t *testing.T) {
		m, _ := newTestModel(nil)
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
		if m.viewport.Width != 80 || m.viewport.Height != 30-chromeHeight {
			t.Errorf("unexpected viewport size %dx%d", m.viewport.Width, m.viewport.Height)
		}
	})
}

func TestHint(t *testing.T) {
	if got := hint(errors.New("boom")); got != "boom" {
		t.Errorf("expected plain message, got %q", got)
	}
	if got := hint(shared.ErrAuthenticationExpired); !strings.Contains(got, "auth login") {
		t.Errorf("expected login hint, got %q", got)
	}
}
