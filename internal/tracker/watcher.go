package tracker

import (
	"context"
	"time"

	"github.com/courseforge/uploadtracker/internal/logger"
	"github.com/courseforge/uploadtracker/internal/metrics"
	"github.com/courseforge/uploadtracker/internal/platform"
)

// StatusFetcher fetches the live state of one upload
type StatusFetcher interface {
	Status(ctx context.Context, uploadID string) (*platform.UploadStatus, error)
}

// Update is one observation of the watched upload. DisplayProgress is
// the running maximum of reported progress, so it never moves
// backwards within a watch even when the platform reports a lower
// transient value.
type Update struct {
	Job             Job
	DisplayProgress int
}

// Watcher polls upload status on a fixed cadence until the job leaves
// the polling set (approved, rejected, or error).
type Watcher struct {
	fetch    StatusFetcher
	interval time.Duration

	// pollBudget bounds one tick's status call, retries included, so
	// a hung backend surfaces as a swallowed error on the next tick
	// rather than a frozen display.
	pollBudget time.Duration

	log *logger.Logger
}

// NewWatcher creates a watcher polling at the given interval
func NewWatcher(fetch StatusFetcher, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		fetch:      fetch,
		interval:   interval,
		pollBudget: 10 * time.Second,
		log:        logger.Default().WithComponent("watcher"),
	}
}

// Watch is the handle for one polling session. Stop cancels the poll
// goroutine and its timer; a response that arrives afterwards is
// discarded, never applied.
type Watch struct {
	UploadID string

	cancel  context.CancelFunc
	updates chan Update
	done    chan struct{}
}

// Updates streams observations until the watch ends, then closes
func (w *Watch) Updates() <-chan Update {
	return w.updates
}

// Done is closed when the poll goroutine has fully exited
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Stop cancels the watch. Safe to call more than once and after the
// watch has already finished.
func (w *Watch) Stop() {
	w.cancel()
}

// Watch begins polling uploadID. The first poll is issued
// immediately so a resumed session paints current state without
// waiting a full interval.
func (w *Watcher) Watch(ctx context.Context, uploadID string) *Watch {
	ctx, cancel := context.WithCancel(ctx)

	wt := &Watch{
		UploadID: uploadID,
		cancel:   cancel,
		updates:  make(chan Update, 16),
		done:     make(chan struct{}),
	}

	go w.run(ctx, uploadID, wt)

	return wt
}

func (w *Watcher) run(ctx context.Context, uploadID string, wt *Watch) {
	defer close(wt.done)
	defer close(wt.updates)

	// Requests are issued synchronously from this loop, so ticks that
	// elapse while a slow request is in flight coalesce instead of
	// piling up concurrent calls.
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	maxSeen := 0

	if stop := w.poll(ctx, uploadID, wt, &maxSeen); stop {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop := w.poll(ctx, uploadID, wt, &maxSeen); stop {
				return
			}
		}
	}
}

// poll issues one status request and reports whether polling must stop
func (w *Watcher) poll(ctx context.Context, uploadID string, wt *Watch, maxSeen *int) bool {
	reqCtx, cancel := context.WithTimeout(ctx, w.pollBudget)
	st, err := w.fetch.Status(reqCtx, uploadID)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// Transient poll failures are swallowed; the next tick retries
		metrics.Default().IncrCounter("poll_errors_total")
		w.log.Warn(ctx, "status poll failed", map[string]interface{}{
			"upload_id": uploadID,
			"error":     err.Error(),
		})
		return false
	}

	metrics.Default().IncrCounter("polls_total")

	job := jobFromStatus(uploadID, st)
	if job.Progress > *maxSeen {
		*maxSeen = job.Progress
	}
	metrics.Default().SetGauge("display_progress", float64(*maxSeen))

	update := Update{Job: job, DisplayProgress: *maxSeen}
	select {
	case wt.updates <- update:
	case <-ctx.Done():
		return true
	}

	return job.PollingDone()
}
