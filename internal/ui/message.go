package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/spotrcpt/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgReceiptBuilt MsgKind = iota
	MsgReceiptSaved
)

type receiptResult struct {
	receipt *models.Receipt
	err     error
}

// receiptBuiltMsg is the constructor for [MsgReceiptBuilt]
func receiptBuiltMsg(receipt *models.Receipt, err error) Msg {
	return Msg{kind: MsgReceiptBuilt, data: receiptResult{receipt, err}}
}

// receiptSavedMsg is the constructor for [MsgReceiptSaved]
func receiptSavedMsg(receipt *models.Receipt, err error) Msg {
	return Msg{kind: MsgReceiptSaved, data: receiptResult{receipt, err}}
}
