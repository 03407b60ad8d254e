package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotrcpt/internal/formatter"
	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
	"github.com/desertthunder/spotrcpt/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RangePickerView ViewState = iota
	LoadingView
	ReceiptView
)

const (
	defaultWidth  = formatter.ReceiptWidth + 8
	defaultHeight = 24
	chromeHeight  = 4
)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	engine   *tasks.ReceiptEngine
	limit    int
	width    int
	height   int
	ranges   list.Model
	spinner  spinner.Model
	viewport viewport.Model
	selected models.TimeRange
	receipt  *models.Receipt
	status   string
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model that prints receipts of limit tracks through engine.
func NewModel(ctx context.Context, engine *tasks.ReceiptEngine, limit int) *Model {
	ranges := list.New(rangeItems(), list.NewDefaultDelegate(), defaultWidth, defaultHeight-chromeHeight)
	ranges.Title = "Spotify Receipt"
	ranges.SetFilteringEnabled(false)
	ranges.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		view:     RangePickerView,
		engine:   engine,
		limit:    limit,
		width:    defaultWidth,
		height:   defaultHeight,
		ranges:   ranges,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok)),
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init has nothing to fetch until a range is picked.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ranges.SetSize(msg.Width-4, msg.Height-chromeHeight)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - chromeHeight
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case RangePickerView:
			return m.handlePickerKeys(msg)
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ReceiptView:
			return m.handleReceiptKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != LoadingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateChildren(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	res, _ := msg.data.(receiptResult)

	switch msg.kind {
	case MsgReceiptBuilt:
		m.view = ReceiptView
		m.receipt = res.receipt
		m.err = res.err
		m.status = ""
		if res.err == nil {
			m.setReceiptContent()
		}
	case MsgReceiptSaved:
		if res.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Save failed: %v", res.err))
		} else {
			m.status = styles.ok.Render(fmt.Sprintf("✓ Saved receipt #%d", res.receipt.Sequence))
		}
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RangePickerView:
		return m.renderPicker()
	case LoadingView:
		return m.renderLoading()
	case ReceiptView:
		return m.renderReceipt()
	default:
		return ""
	}
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		item, ok := m.ranges.SelectedItem().(rangeItem)
		if !ok {
			return m, nil
		}
		m.selected = item.tr
		m.view = LoadingView
		return m, tea.Batch(m.spinner.Tick, m.buildReceipt(item.tr))
	}

	var cmd tea.Cmd
	m.ranges, cmd = m.ranges.Update(msg)
	return m, cmd
}

func (m *Model) handleReceiptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = RangePickerView
		m.receipt = nil
		m.err = nil
		m.status = ""
		return m, nil
	case key.Matches(msg, m.keys.save):
		if m.receipt == nil || m.err != nil {
			return m, nil
		}
		if m.receipt.ID() != "" {
			m.status = styles.warn.Render("Receipt already saved")
			return m, nil
		}
		m.status = styles.help.Render("Saving...")
		return m, m.saveReceipt(m.receipt)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) updateChildren(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case RangePickerView:
		m.ranges, cmd = m.ranges.Update(msg)
	case ReceiptView:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *Model) buildReceipt(tr models.TimeRange) tea.Cmd {
	return func() tea.Msg {
		receipt, err := m.engine.Build(m.ctx, tr, m.limit)
		return receiptBuiltMsg(receipt, err)
	}
}

func (m *Model) saveReceipt(receipt *models.Receipt) tea.Cmd {
	return func() tea.Msg {
		return receiptSavedMsg(receipt, m.engine.Save(receipt))
	}
}

func (m *Model) setReceiptContent() {
	text, err := formatter.ExportToText(m.receipt)
	if err != nil {
		m.err = err
		return
	}
	m.viewport.SetContent(styles.paper.Render(string(text)))
	m.viewport.GotoTop()
}

func (m *Model) renderPicker() string {
	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.ranges.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderLoading() string {
	title := styles.title.Render(m.selected.Label())
	return fmt.Sprintf("%s\n%s Fetching your top tracks...", title, m.spinner.View())
}

func (m *Model) renderReceipt() string {
	if m.err != nil {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
		return fmt.Sprintf("%s\n%s\n\n%s", styles.err.Render("Could not print receipt"), hint(m.err), helpView)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.save, m.keys.back, m.keys.quit})
	view := m.viewport.View()
	if m.status != "" {
		view += "\n" + m.status
	}
	return view + "\n" + helpView
}

// hint explains errors the user can act on.
func hint(err error) string {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrNoRefreshToken),
		errors.Is(err, shared.ErrAuthenticationExpired),
		errors.Is(err, shared.ErrRefreshFailed):
		return fmt.Sprintf("%v\n%s", err, styles.help.Render("Run `spotrcpt auth login` and try again."))
	}
	return err.Error()
}
