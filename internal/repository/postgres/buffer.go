package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/zidek-labs/bellrock/internal/model"
)

// BufferedLocationWriter is the opt-in buffered write path for user
// locations (spec §4.4): a background ticker commits pending rows every
// ~5s, and a row-count threshold forces an earlier commit. Direct callers
// of LocationRepo.Add/AddBatch bypass this and commit immediately; this
// type exists for high-frequency client location sync where batching many
// small appends into fewer round trips matters more than immediate
// durability.
type BufferedLocationWriter struct {
	repo      *LocationRepo
	threshold int

	mu      sync.Mutex
	pending []model.UserLocation

	stop chan struct{}
	done chan struct{}
}

// NewBufferedLocationWriter wires a buffered writer around repo, flushing
// every interval or once len(pending) reaches threshold, whichever comes
// first. Call Start to begin the background ticker.
func NewBufferedLocationWriter(repo *LocationRepo, threshold int) *BufferedLocationWriter {
	return &BufferedLocationWriter{
		repo:      repo,
		threshold: threshold,
	}
}

// Enqueue stages loc for the next flush, forcing an immediate flush if the
// pending count has reached the threshold.
func (w *BufferedLocationWriter) Enqueue(ctx context.Context, loc model.UserLocation) error {
	w.mu.Lock()
	w.pending = append(w.pending, loc)
	shouldFlush := len(w.pending) >= w.threshold
	w.mu.Unlock()

	if shouldFlush {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits every currently pending row in one bulk write.
func (w *BufferedLocationWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return w.repo.AddBatch(ctx, batch)
}

// Start launches the background ticker. Stop must be called to release it.
func (w *BufferedLocationWriter) Start(ctx context.Context, interval time.Duration) {
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = w.Flush(ctx)
			case <-w.stop:
				_ = w.Flush(ctx)
				return
			}
		}
	}()
}

// Stop halts the ticker and flushes any remaining pending rows.
func (w *BufferedLocationWriter) Stop() {
	if w.stop == nil {
		return
	}
	close(w.stop)
	<-w.done
}

// Pending reports the current number of staged-but-uncommitted rows, used
// by tests and diagnostics.
func (w *BufferedLocationWriter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
