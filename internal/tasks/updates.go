package tasks

import (
	"fmt"

	"github.com/desertthunder/spotrcpt/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	FetchTracks
	SaveReceipt
	ReceiptDone
	ReceiptFailed
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case FetchTracks:
		return "fetch_tracks"
	case SaveReceipt:
		return "save_receipt"
	case ReceiptDone:
		return "receipt_done"
	case ReceiptFailed:
		return "receipt_failed"
	default:
		return ""
	}
}

func fetchingProfileUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchProfile,
		Step:    1,
		Total:   1,
		Message: "Fetching listener profile...",
	}
}

func fetchingTracksUpdate(step, total int, tr models.TimeRange) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching top tracks (%s)...", tr.Label()),
		Data:    tr,
	}
}

func savingReceiptUpdate(step, total int, r *models.Receipt) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveReceipt,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Saving %s receipt...", r.TimeRange.Label()),
		Data:    r,
	}
}

func receiptDoneUpdate(step, total int, r *models.Receipt) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReceiptDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✓ %s: %d tracks", r.TimeRange.Label(), len(r.Lines)),
		Data:    r,
	}
}

func receiptFailedUpdate(step, total int, tr models.TimeRange, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReceiptFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s: %v", tr.Label(), err),
		Data:    err,
	}
}
