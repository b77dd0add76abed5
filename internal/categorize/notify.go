package categorize

import (
	"context"
	"log/slog"
)

// BatchOutcome describes one finished batch.
type BatchOutcome struct {
	FamilyID string
	// Index is the zero-based batch position.
	Index int
	// Batches is the number of batches in the run.
	Batches int
	// Size is the number of transactions in the batch.
	Size int
	// Modified counts transactions categorized by this batch.
	Modified int
	// Cumulative counts transactions categorized so far in the run.
	Cumulative int
	// Err is set when the batch was skipped.
	Err error
}

// Notifier receives batch outcomes, e.g. to update an import status.
// Its errors are logged and never stop the pipeline.
type Notifier interface {
	BatchCompleted(ctx context.Context, outcome BatchOutcome) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, outcome BatchOutcome) error

// BatchCompleted calls f.
func (f NotifierFunc) BatchCompleted(ctx context.Context, outcome BatchOutcome) error {
	return f(ctx, outcome)
}

// notify is best effort: a failing or panicking notifier is logged and ignored.
func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, outcome BatchOutcome) {
	if p.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("batch notifier panicked", "batch", outcome.Index, "panic", r)
		}
	}()
	if err := p.Notifier.BatchCompleted(ctx, outcome); err != nil {
		logger.Warn("batch notifier failed", "batch", outcome.Index, "error", err)
	}
}
