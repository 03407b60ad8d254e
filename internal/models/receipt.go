package models

import (
	"fmt"
	"time"
)

// TimeRange is the affinity window the resource server computes top items over.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"  // roughly the last four weeks
	MediumTerm TimeRange = "medium_term" // roughly the last six months
	LongTerm   TimeRange = "long_term"   // several years of history
)

// TimeRanges lists every supported range in display order.
var TimeRanges = []TimeRange{ShortTerm, MediumTerm, LongTerm}

// ParseTimeRange accepts the wire value or a short alias (short, medium, long).
func ParseTimeRange(s string) (TimeRange, error) {
	switch s {
	case "short_term", "short", "4w":
		return ShortTerm, nil
	case "medium_term", "medium", "6m":
		return MediumTerm, nil
	case "long_term", "long", "all":
		return LongTerm, nil
	}
	return "", fmt.Errorf("unknown time range %q (want short_term, medium_term or long_term)", s)
}

// Valid reports whether r is one of the supported ranges.
func (r TimeRange) Valid() bool {
	switch r {
	case ShortTerm, MediumTerm, LongTerm:
		return true
	}
	return false
}

// Label is a human readable name for receipt headers.
func (r TimeRange) Label() string {
	switch r {
	case ShortTerm:
		return "Last 4 Weeks"
	case MediumTerm:
		return "Last 6 Months"
	case LongTerm:
		return "All Time"
	}
	return string(r)
}

// Listener is the profile summary printed at the top of a receipt.
type Listener struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Name falls back from display name to id to a generic label.
func (l Listener) Name() string {
	if l.DisplayName != "" {
		return l.DisplayName
	}
	if l.ID != "" {
		return l.ID
	}
	return "User"
}

// Track represents a music track from the resource server
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms"`
	URI        string `json:"uri,omitempty"`
}

// ReceiptLine is one numbered row of a receipt.
type ReceiptLine struct {
	Position   int    `json:"position"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms"`
}

// Receipt is a generated listening receipt.
type Receipt struct {
	Record
	Owner     Listener      `json:"owner"`
	TimeRange TimeRange     `json:"time_range"`
	Lines     []ReceiptLine `json:"lines"`
}

// NewReceipt builds a receipt for owner from tracks in ranking order.
func NewReceipt(owner Listener, tr TimeRange, tracks []Track) *Receipt {
	now := time.Now()
	lines := make([]ReceiptLine, 0, len(tracks))
	for i, t := range tracks {
		lines = append(lines, ReceiptLine{
			Position:   i + 1,
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			DurationMS: t.DurationMS,
		})
	}

	return &Receipt{
		Record:    Record{Created: now, Updated: now},
		Owner:     owner,
		TimeRange: tr,
		Lines:     lines,
	}
}

// TotalDurationMS sums the duration of every line.
func (r *Receipt) TotalDurationMS() int {
	total := 0
	for _, l := range r.Lines {
		total += l.DurationMS
	}
	return total
}

// Validate checks required fields.
func (r *Receipt) Validate() error {
	if r.Owner.ID == "" && r.Owner.DisplayName == "" {
		return fmt.Errorf("receipt owner is required")
	}
	if !r.TimeRange.Valid() {
		return fmt.Errorf("invalid time range %q", r.TimeRange)
	}
	for i, l := range r.Lines {
		if l.Position != i+1 {
			return fmt.Errorf("line %d has position %d", i+1, l.Position)
		}
	}
	return nil
}

var _ Model = (*Receipt)(nil)
