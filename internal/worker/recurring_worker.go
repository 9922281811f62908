package worker

import (
	"context"
	"log/slog"
	"time"

	"budgetplaner/internal/services"
)

// DueProcessor evaluates every owner's recurring definitions.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (services.ProcessResult, error)
}

// RecurringWorker runs the scheduler once at startup and then on every
// tick until its context ends.
type RecurringWorker struct {
	processor DueProcessor
	interval  time.Duration
	now       func() time.Time
}

func NewRecurringWorker(processor DueProcessor, interval time.Duration) *RecurringWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RecurringWorker{processor: processor, interval: interval, now: time.Now}
}

// Run blocks until ctx is cancelled and returns nil then. Failed passes
// are logged and retried on the next tick.
func (w *RecurringWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Running initial recurring evaluation", "interval", w.interval)
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Recurring worker stopped")
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single evaluation pass.
func (w *RecurringWorker) RunOnce(ctx context.Context) services.ProcessResult {
	now := w.now()
	res, err := w.processor.ProcessDue(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "Recurring evaluation failed", "error", err)
		return res
	}

	for _, f := range res.Failed {
		slog.WarnContext(ctx, "Recurring definition failed",
			"definition_id", f.DefinitionID,
			"error", f.Err)
	}
	slog.InfoContext(ctx, "Recurring evaluation complete",
		"checked", res.Checked,
		"created", len(res.Created),
		"failed", len(res.Failed),
		"next_check", now.Add(w.interval).Format("15:04:05"))
	return res
}
