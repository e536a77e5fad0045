package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/courseforge/uploadtracker/internal/platform"
)

// scriptedFetcher returns statuses in order; the last one repeats
type scriptedFetcher struct {
	mu       sync.Mutex
	script   []*platform.UploadStatus
	errs     []error // consumed before the script
	calls    int
	position int
}

func (f *scriptedFetcher) Status(ctx context.Context, uploadID string) (*platform.UploadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}

	st := f.script[f.position]
	if f.position < len(f.script)-1 {
		f.position++
	}
	return st, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func processing(progress int) *platform.UploadStatus {
	return &platform.UploadStatus{Status: platform.StatusProcessing, Progress: progress}
}

func collectUpdates(t *testing.T, w *Watch, timeout time.Duration) []Update {
	t.Helper()
	var updates []Update
	deadline := time.After(timeout)
	for {
		select {
		case upd, ok := <-w.Updates():
			if !ok {
				return updates
			}
			updates = append(updates, upd)
		case <-deadline:
			t.Fatalf("watch did not finish within %v (got %d updates)", timeout, len(updates))
		}
	}
}

func TestWatcher_DisplayProgressNeverDecreases(t *testing.T) {
	fetcher := &scriptedFetcher{script: []*platform.UploadStatus{
		processing(10),
		processing(45),
		processing(30), // server regression must not show
		processing(60),
		{Status: platform.StatusApproved, Progress: 100},
	}}

	w := NewWatcher(fetcher, 2*time.Millisecond)
	watch := w.Watch(context.Background(), "abc123")

	updates := collectUpdates(t, watch, 2*time.Second)

	want := []int{10, 45, 45, 60, 100}
	if len(updates) != len(want) {
		t.Fatalf("expected %d updates, got %d", len(want), len(updates))
	}
	for i, upd := range updates {
		if upd.DisplayProgress != want[i] {
			t.Errorf("update %d: display progress %d, want %d", i, upd.DisplayProgress, want[i])
		}
	}
	// The raw regression is still visible on the job itself
	if updates[2].Job.Progress != 30 {
		t.Errorf("raw progress should pass through, got %d", updates[2].Job.Progress)
	}
}

func TestWatcher_StopsPollingOnceApproved(t *testing.T) {
	fetcher := &scriptedFetcher{script: []*platform.UploadStatus{
		processing(50),
		{Status: platform.StatusApproved, Progress: 100, CreatedCourseID: "c1"},
	}}

	w := NewWatcher(fetcher, 2*time.Millisecond)
	watch := w.Watch(context.Background(), "abc123")

	updates := collectUpdates(t, watch, 2*time.Second)
	<-watch.Done()

	calls := fetcher.callCount()
	time.Sleep(20 * time.Millisecond)
	if got := fetcher.callCount(); got != calls {
		t.Errorf("polling continued after approval: %d -> %d calls", calls, got)
	}

	final := updates[len(updates)-1]
	if !final.Job.Succeeded() || final.Job.CreatedCourseID != "c1" {
		t.Errorf("final update should carry the approved job, got %+v", final.Job)
	}
}

func TestWatcher_StopsPollingOnError(t *testing.T) {
	fetcher := &scriptedFetcher{script: []*platform.UploadStatus{
		{Status: platform.StatusError, Progress: 40, Error: "parse failed", CanResume: true, ResumeFromStage: 2},
	}}

	w := NewWatcher(fetcher, 2*time.Millisecond)
	watch := w.Watch(context.Background(), "abc123")

	updates := collectUpdates(t, watch, 2*time.Second)
	<-watch.Done()

	calls := fetcher.callCount()
	time.Sleep(20 * time.Millisecond)
	if got := fetcher.callCount(); got != calls {
		t.Errorf("polling continued after terminal error: %d -> %d calls", calls, got)
	}

	final := updates[len(updates)-1].Job
	if !final.Resumable() || final.ResumeFromStage != 2 {
		t.Errorf("expected resumable failure from stage 2, got %+v", final)
	}
	if final.ErrorMessage != "parse failed" {
		t.Errorf("server error message should surface, got %q", final.ErrorMessage)
	}
}

func TestWatcher_StopHaltsPolling(t *testing.T) {
	fetcher := &scriptedFetcher{script: []*platform.UploadStatus{processing(10)}}

	w := NewWatcher(fetcher, 2*time.Millisecond)
	watch := w.Watch(context.Background(), "abc123")

	// Let a few polls happen, then stop mid-flight
	time.Sleep(20 * time.Millisecond)
	watch.Stop()

	select {
	case <-watch.Done():
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}

	calls := fetcher.callCount()
	time.Sleep(20 * time.Millisecond)
	if got := fetcher.callCount(); got != calls {
		t.Errorf("polling continued after Stop: %d -> %d calls", calls, got)
	}

	// Drain: updates channel must be closed
	for range watch.Updates() {
	}
}

// stallingFetcher hangs its first call until the request context
// expires, then answers normally.
type stallingFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *stallingFetcher) Status(ctx context.Context, uploadID string) (*platform.UploadStatus, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()

	if first {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &platform.UploadStatus{Status: platform.StatusApproved, Progress: 100}, nil
}

func TestWatcher_HungRequestBoundedByPollBudget(t *testing.T) {
	fetcher := &stallingFetcher{}

	w := NewWatcher(fetcher, 2*time.Millisecond)
	w.pollBudget = 5 * time.Millisecond
	watch := w.Watch(context.Background(), "abc123")

	// The hung first request times out within the budget; the next
	// tick succeeds and the watch still reaches approval.
	updates := collectUpdates(t, watch, 2*time.Second)

	if len(updates) == 0 || !updates[len(updates)-1].Job.Succeeded() {
		t.Fatalf("watch should recover from a hung request, got %+v", updates)
	}
}

func TestWatcher_TransientErrorsAreSwallowed(t *testing.T) {
	fetcher := &scriptedFetcher{
		errs: []error{errors.New("connection refused"), errors.New("timeout")},
		script: []*platform.UploadStatus{
			processing(50),
			{Status: platform.StatusApproved, Progress: 100},
		},
	}

	w := NewWatcher(fetcher, 2*time.Millisecond)
	watch := w.Watch(context.Background(), "abc123")

	updates := collectUpdates(t, watch, 2*time.Second)

	// Failed polls produce no updates; polling recovered on its own
	if updates[0].DisplayProgress != 50 {
		t.Errorf("first update should be the first successful poll, got %+v", updates[0])
	}
	if !updates[len(updates)-1].Job.Succeeded() {
		t.Errorf("watch should still reach approval, got %+v", updates[len(updates)-1].Job)
	}
}
