package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/courseforge/uploadtracker/internal/logger"
	"github.com/courseforge/uploadtracker/internal/metrics"
	"github.com/courseforge/uploadtracker/internal/platform"
)

// HistoryClient is the platform surface the history tracker needs
type HistoryClient interface {
	List(ctx context.Context, limit int) ([]platform.UploadSummary, error)
	Status(ctx context.Context, uploadID string) (*platform.UploadStatus, error)
}

// History maintains the recent-uploads list. Entries still processing
// that are not the focused upload are re-checked on a slower cadence
// than the focused poll; any drift invalidates the whole cached list
// with one re-fetch rather than patching entries in place.
type History struct {
	client    HistoryClient
	limit     int
	interval  time.Duration
	focusedID func() string
	log       *logger.Logger

	mu      sync.RWMutex
	entries []Job

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHistory creates a history tracker. focusedID reports the upload
// currently watched by the primary poller so it is not polled twice.
func NewHistory(client HistoryClient, limit int, interval time.Duration, focusedID func() string) *History {
	if limit <= 0 {
		limit = 20
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if focusedID == nil {
		focusedID = func() string { return "" }
	}
	return &History{
		client:    client,
		limit:     limit,
		interval:  interval,
		focusedID: focusedID,
		log:       logger.Default().WithComponent("history"),
	}
}

// Start begins periodic reconciliation until Stop or context cancel
func (h *History) Start(ctx context.Context) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if h.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	done := make(chan struct{})
	h.done = done

	go h.run(ctx, done)
}

// Stop halts reconciliation and waits for the loop to exit
func (h *History) Stop() {
	h.runMu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *History) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := h.Refresh(ctx); err != nil {
		h.log.Warn(ctx, "initial history fetch failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reconcile(ctx)
		}
	}
}

// Refresh re-fetches the full list. Concurrent refreshes are
// last-write-wins on the cached entries.
func (h *History) Refresh(ctx context.Context) error {
	summaries, err := h.client.List(ctx, h.limit)
	if err != nil {
		return err
	}

	entries := make([]Job, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, jobFromSummary(s))
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()

	metrics.Default().IncrCounter("history_refreshes_total")
	return nil
}

// Snapshot returns a copy of the cached entries
func (h *History) Snapshot() []Job {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Job, len(h.entries))
	copy(out, h.entries)
	return out
}

// reconcile re-checks processing entries and invalidates the list on
// any status or progress drift.
func (h *History) reconcile(ctx context.Context) {
	focused := h.focusedID()

	for _, entry := range h.Snapshot() {
		if entry.Status != platform.StatusProcessing || entry.ID == focused {
			continue
		}

		st, err := h.client.Status(ctx, entry.ID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.log.Debug(ctx, "history status check failed", map[string]interface{}{
				"upload_id": entry.ID,
				"error":     err.Error(),
			})
			continue
		}

		if st.Status != entry.Status || st.Progress != entry.Progress {
			if err := h.Refresh(ctx); err != nil && ctx.Err() == nil {
				h.log.Warn(ctx, "history refresh failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}
	}
}
