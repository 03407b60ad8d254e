package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotrcpt/internal/formatter"
	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/services"
	"github.com/desertthunder/spotrcpt/internal/shared"
	"github.com/desertthunder/spotrcpt/internal/tasks"
)

// ReceiptGenerate prints (and optionally saves) a receipt for one time range.
func (r *Runner) ReceiptGenerate(ctx context.Context, cmd *cli.Command) error {
	tr, err := models.ParseTimeRange(cmd.String("range"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	limit := services.ClampLimit(cmd.Int("limit"))

	if err := r.open(); err != nil {
		return err
	}

	r.logger.Debug("generating receipt", "range", tr, "limit", limit)
	receipt, err := r.engine.Build(ctx, tr, limit)
	if err != nil {
		return withHint(err)
	}

	if cmd.Bool("save") {
		if err := r.engine.Save(receipt); err != nil {
			return err
		}
		r.logger.Info("receipt saved", "id", receipt.ID(), "sequence", receipt.Sequence)
	}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteFile(format, receipt, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Receipt written to %s\n", path)
	}
	return formatter.Write(format, r.output, receipt)
}

// ReceiptAll builds a receipt for every time range concurrently and prints them in range order.
func (r *Runner) ReceiptAll(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if err := r.open(); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()

	result, err := r.engine.BuildAll(ctx, progress, tasks.BuildAllOpts{
		Limit:      services.ClampLimit(cmd.Int("limit")),
		NumWorkers: cmd.Int("workers"),
		Save:       cmd.Bool("save"),
	})
	close(progress)
	wg.Wait()
	if err != nil {
		return withHint(err)
	}

	for i, receipt := range result.Receipts() {
		if i > 0 && format == formatter.Text {
			r.writePlain("\n")
		}
		if err := formatter.Write(format, r.output, receipt); err != nil {
			return err
		}
	}

	for _, res := range result.Results {
		if res.Error != nil {
			r.logger.Warn("receipt failed", "range", res.TimeRange, "error", res.Error)
		}
	}
	if result.Successful == 0 {
		return withHint(fmt.Errorf("%w: no receipts could be built", shared.ErrAPIRequest))
	}
	return nil
}

// ReceiptHistory lists saved receipts newest first.
func (r *Runner) ReceiptHistory(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{"limit": cmd.Int("limit")}
	if s := cmd.String("range"); s != "" {
		tr, err := models.ParseTimeRange(s)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		criteria["time_range"] = tr
	}

	if err := r.openReceipts(); err != nil {
		return err
	}

	receipts, err := r.receipts.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if receipts == nil {
			receipts = []*models.Receipt{}
		}
		return r.writeJSON(receipts, true)
	}

	if len(receipts) == 0 {
		return r.writePlain("No saved receipts. Use 'spotrcpt receipt generate --save'.\n")
	}

	r.writePlain("%-5s %-17s %-14s %-20s %s\n", "#", "DATE", "RANGE", "LISTENER", "TRACKS")
	r.writePlain("%s\n", strings.Repeat("─", 64))
	for _, rc := range receipts {
		r.writePlain("%-5d %-17s %-14s %-20s %d\n",
			rc.Sequence,
			rc.CreatedAt().Local().Format("2006-01-02 15:04"),
			rc.TimeRange.Label(),
			rc.Owner.Name(),
			len(rc.Lines),
		)
	}
	return nil
}

// ReceiptShow prints a saved receipt. The argument is a history number or a receipt id.
func (r *Runner) ReceiptShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	receipt, err := r.findReceipt(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	return formatter.Write(format, r.output, receipt)
}

// ReceiptDelete soft-deletes a saved receipt.
func (r *Runner) ReceiptDelete(ctx context.Context, cmd *cli.Command) error {
	receipt, err := r.findReceipt(cmd.StringArg("id"))
	if err != nil {
		return err
	}
	if err := r.receipts.Delete(receipt.ID()); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted receipt #%d\n", receipt.Sequence)
}

func (r *Runner) findReceipt(ref string) (*models.Receipt, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return nil, fmt.Errorf("%w: receipt number or id", shared.ErrMissingArgument)
	}

	if err := r.openReceipts(); err != nil {
		return nil, err
	}

	if seq, err := strconv.Atoi(ref); err == nil {
		return r.receipts.GetBySequence(seq)
	}
	return r.receipts.Get(ref)
}
