package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/services"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

// ReceiptSaver persists receipts. [repositories.ReceiptRepository] implements it.
type ReceiptSaver interface {
	Create(receipt *models.Receipt) error
}

// ReceiptEngine turns a listener's top tracks into receipts.
type ReceiptEngine struct {
	service services.Service
	saver   ReceiptSaver
	logger  *log.Logger
}

// NewReceiptEngine creates an engine. saver may be nil when receipts are never persisted.
func NewReceiptEngine(svc services.Service, saver ReceiptSaver, logger *log.Logger) *ReceiptEngine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ReceiptEngine{service: svc, saver: saver, logger: logger}
}

// sendProgress sends a progress update without blocking.
func (e *ReceiptEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Build fetches the profile and the top tracks for tr concurrently and assembles a receipt.
func (e *ReceiptEngine) Build(ctx context.Context, tr models.TimeRange, limit int) (*models.Receipt, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if !tr.Valid() {
		return nil, fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, tr)
	}

	var (
		owner  *models.Listener
		tracks []models.Track
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l, err := e.service.Listener(gctx)
		owner = l
		return err
	})
	g.Go(func() error {
		t, err := e.service.TopTracks(gctx, tr, limit)
		tracks = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: empty listener profile", shared.ErrAPIRequest)
	}

	receipt := models.NewReceipt(*owner, tr, tracks)
	e.logger.Debug("receipt built", "range", tr, "lines", len(receipt.Lines))
	return receipt, nil
}

// Save persists receipt through the configured saver.
func (e *ReceiptEngine) Save(receipt *models.Receipt) error {
	if e.saver == nil {
		return fmt.Errorf("%w: no receipt store configured", shared.ErrServiceUnavailable)
	}
	if err := e.saver.Create(receipt); err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

// BuildAllOpts configures [ReceiptEngine.BuildAll].
type BuildAllOpts struct {
	Ranges     []models.TimeRange // Ranges to build (default: all)
	Limit      int                // Tracks per receipt
	NumWorkers int                // Concurrent workers (default: 3)
	RateLimit  float64            // Requests per second (default: 5)
	Save       bool               // Persist each receipt through the saver
}

// RangeResult is the outcome for one time range.
type RangeResult struct {
	TimeRange models.TimeRange
	Receipt   *models.Receipt
	Error     error
}

// BuildAllResult summarizes a [ReceiptEngine.BuildAll] run.
type BuildAllResult struct {
	Owner      models.Listener
	Results    []RangeResult // in the order of BuildAllOpts.Ranges
	Successful int
	Failed     int
}

// BuildAll builds a receipt for every requested range with a worker pool.
//
// A profile failure aborts the run; a range failure is recorded in its [RangeResult].
func (e *ReceiptEngine) BuildAll(ctx context.Context, prog chan<- ProgressUpdate, opts BuildAllOpts) (*BuildAllResult, error) {
	if e.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Save && e.saver == nil {
		return nil, fmt.Errorf("%w: no receipt store configured", shared.ErrServiceUnavailable)
	}

	if len(opts.Ranges) == 0 {
		opts.Ranges = models.TimeRanges
	}
	seen := make(map[models.TimeRange]bool, len(opts.Ranges))
	ranges := make([]models.TimeRange, 0, len(opts.Ranges))
	for _, tr := range opts.Ranges {
		if !tr.Valid() {
			return nil, fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, tr)
		}
		if !seen[tr] {
			seen[tr] = true
			ranges = append(ranges, tr)
		}
	}
	// Repeated ranges are built once, in first-seen order.
	opts.Ranges = ranges
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > len(opts.Ranges) {
		opts.NumWorkers = len(opts.Ranges)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	e.sendProgress(prog, fetchingProfileUpdate())
	owner, err := e.service.Listener(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listener: %w", err)
	}

	total := len(opts.Ranges)
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan models.TimeRange, total)
	results := make(chan RangeResult, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.buildWorker(ctx, &wg, limiter, *owner, jobs, results, opts)
	}

	for i, tr := range opts.Ranges {
		e.sendProgress(prog, fetchingTracksUpdate(i+1, total, tr))
		jobs <- tr
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	byRange := make(map[models.TimeRange]RangeResult, total)
	completed := 0
	for res := range results {
		completed++
		byRange[res.TimeRange] = res

		if res.Error != nil {
			e.logger.Warn("receipt failed", "range", res.TimeRange, "error", res.Error)
			e.sendProgress(prog, receiptFailedUpdate(completed, total, res.TimeRange, res.Error))
			continue
		}
		if opts.Save {
			e.sendProgress(prog, savingReceiptUpdate(completed, total, res.Receipt))
		}
		e.sendProgress(prog, receiptDoneUpdate(completed, total, res.Receipt))
	}

	result := &BuildAllResult{Owner: *owner, Results: make([]RangeResult, 0, total)}
	for _, tr := range opts.Ranges {
		res, ok := byRange[tr]
		if !ok {
			res = RangeResult{TimeRange: tr, Error: ctx.Err()}
			if res.Error == nil {
				res.Error = fmt.Errorf("no result for %s", tr)
			}
		}
		if res.Error != nil {
			result.Failed++
		} else {
			result.Successful++
		}
		result.Results = append(result.Results, res)
	}

	return result, ctx.Err()
}

// buildWorker is a worker goroutine that builds receipts for ranges from the jobs channel.
func (e *ReceiptEngine) buildWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	owner models.Listener,
	jobs <-chan models.TimeRange,
	results chan<- RangeResult,
	opts BuildAllOpts,
) {
	defer wg.Done()

	for tr := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- RangeResult{TimeRange: tr, Error: err}
			continue
		}

		tracks, err := e.service.TopTracks(ctx, tr, opts.Limit)
		if err != nil {
			results <- RangeResult{TimeRange: tr, Error: fmt.Errorf("failed to fetch top tracks: %w", err)}
			continue
		}

		receipt := models.NewReceipt(owner, tr, tracks)
		if opts.Save {
			if err := e.Save(receipt); err != nil {
				results <- RangeResult{TimeRange: tr, Receipt: receipt, Error: err}
				continue
			}
		}
		results <- RangeResult{TimeRange: tr, Receipt: receipt}
	}
}

// Receipts returns the successful receipts in range order.
func (r *BuildAllResult) Receipts() []*models.Receipt {
	out := make([]*models.Receipt, 0, r.Successful)
	for _, res := range r.Results {
		if res.Error == nil && res.Receipt != nil {
			out = append(out, res.Receipt)
		}
	}
	return out
}
