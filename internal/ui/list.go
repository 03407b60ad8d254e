package ui

import (
	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/spotrcpt/internal/models"
)

var _ list.Item = rangeItem{}

// rangeItem wraps [models.TimeRange] to implement [list.Item].
type rangeItem struct {
	tr models.TimeRange
}

func (i rangeItem) FilterValue() string { return i.tr.Label() }
func (i rangeItem) Title() string       { return i.tr.Label() }
func (i rangeItem) Description() string { return string(i.tr) }

func rangeItems() []list.Item {
	items := make([]list.Item, len(models.TimeRanges))
	for i, tr := range models.TimeRanges {
		items[i] = rangeItem{tr: tr}
	}
	return items
}
