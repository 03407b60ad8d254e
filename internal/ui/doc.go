// Package ui implements an interactive terminal receipt viewer using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [RangePickerView] : choose the time range to print
//  2. [LoadingView] : spinner while the profile and top tracks are fetched
//  3. [ReceiptView] : the rendered receipt in a scrollable viewport
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg
// union type. Receipts come from a [tasks.ReceiptEngine], so the calls go through the session manager's cache, retry
// and refresh handling.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, s, esc, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
