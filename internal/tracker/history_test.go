package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/courseforge/uploadtracker/internal/platform"
)

// fakeHistoryClient scripts list and per-upload status responses
type fakeHistoryClient struct {
	mu       sync.Mutex
	lists    [][]platform.UploadSummary
	listPos  int
	listErr  error
	statuses map[string]*platform.UploadStatus
	checked  []string
}

func (f *fakeHistoryClient) List(ctx context.Context, limit int) ([]platform.UploadSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.lists) == 0 {
		return nil, nil
	}
	out := f.lists[f.listPos]
	if f.listPos < len(f.lists)-1 {
		f.listPos++
	}
	return out, nil
}

func (f *fakeHistoryClient) Status(ctx context.Context, uploadID string) (*platform.UploadStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, uploadID)
	st, ok := f.statuses[uploadID]
	if !ok {
		return nil, errors.New("unknown upload")
	}
	return st, nil
}

func (f *fakeHistoryClient) checkedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.checked))
	copy(out, f.checked)
	return out
}

func summaries(entries ...platform.UploadSummary) []platform.UploadSummary {
	return entries
}

func TestHistory_RefreshReplacesEntries(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(
				platform.UploadSummary{UploadID: "u1", Status: platform.StatusProcessing, Progress: 30},
				platform.UploadSummary{UploadID: "u2", Status: platform.StatusApproved, Progress: 100},
			),
			summaries(
				platform.UploadSummary{UploadID: "u1", Status: platform.StatusApproved, Progress: 100},
			),
		},
	}
	h := NewHistory(client, 20, time.Hour, nil)

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	got := h.Snapshot()
	if len(got) != 2 || got[0].ID != "u1" || got[1].ID != "u2" {
		t.Fatalf("unexpected entries after first refresh: %+v", got)
	}

	// A second refresh replaces the list wholesale
	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	got = h.Snapshot()
	if len(got) != 1 || got[0].ID != "u1" || got[0].Status != platform.StatusApproved {
		t.Errorf("expected replaced single-entry list, got %+v", got)
	}
}

func TestHistory_RefreshErrorKeepsOldEntries(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(platform.UploadSummary{UploadID: "u1", Status: platform.StatusProcessing, Progress: 30}),
		},
	}
	h := NewHistory(client, 20, time.Hour, nil)

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	client.mu.Lock()
	client.listErr = errors.New("connection refused")
	client.mu.Unlock()

	if err := h.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := h.Snapshot(); len(got) != 1 || got[0].ID != "u1" {
		t.Errorf("failed refresh must keep the previous entries, got %+v", got)
	}
}

func TestHistory_ReconcileRefreshesOnDrift(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(
				platform.UploadSummary{UploadID: "u1", Status: platform.StatusProcessing, Progress: 30},
				platform.UploadSummary{UploadID: "u2", Status: platform.StatusProcessing, Progress: 55},
			),
			summaries(
				platform.UploadSummary{UploadID: "u1", Status: platform.StatusApproved, Progress: 100},
				platform.UploadSummary{UploadID: "u2", Status: platform.StatusProcessing, Progress: 55},
			),
		},
		statuses: map[string]*platform.UploadStatus{
			"u1": {Status: platform.StatusApproved, Progress: 100},
			"u2": {Status: platform.StatusProcessing, Progress: 55},
		},
	}
	h := NewHistory(client, 20, time.Hour, nil)

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	h.reconcile(context.Background())

	got := h.Snapshot()
	if len(got) != 2 || got[0].Status != platform.StatusApproved {
		t.Errorf("drift on u1 should re-fetch the whole list, got %+v", got)
	}

	// One drift hit means one status check followed by the list fetch,
	// not a per-entry patch sweep.
	if checked := client.checkedIDs(); len(checked) != 1 || checked[0] != "u1" {
		t.Errorf("expected reconcile to stop after the first drift, checked %v", checked)
	}
}

func TestHistory_ReconcileNoDriftNoRefresh(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(platform.UploadSummary{UploadID: "u1", Status: platform.StatusProcessing, Progress: 30}),
		},
		statuses: map[string]*platform.UploadStatus{
			"u1": {Status: platform.StatusProcessing, Progress: 30},
		},
	}
	h := NewHistory(client, 20, time.Hour, nil)

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	h.reconcile(context.Background())

	if client.listPos != 0 {
		t.Error("unchanged entries must not trigger a refresh")
	}
	if checked := client.checkedIDs(); len(checked) != 1 || checked[0] != "u1" {
		t.Errorf("expected exactly one status check, got %v", checked)
	}
}

func TestHistory_ReconcileSkipsFocusedAndSettled(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(
				platform.UploadSummary{UploadID: "focused1", Status: platform.StatusProcessing, Progress: 10},
				platform.UploadSummary{UploadID: "done1", Status: platform.StatusApproved, Progress: 100},
				platform.UploadSummary{UploadID: "other1", Status: platform.StatusProcessing, Progress: 60},
			),
		},
		statuses: map[string]*platform.UploadStatus{
			"other1": {Status: platform.StatusProcessing, Progress: 60},
		},
	}
	h := NewHistory(client, 20, time.Hour, func() string { return "focused1" })

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	h.reconcile(context.Background())

	// The focused upload already has a faster poller and settled
	// entries cannot drift, so only other1 is re-checked.
	if checked := client.checkedIDs(); len(checked) != 1 || checked[0] != "other1" {
		t.Errorf("expected only other1 to be checked, got %v", checked)
	}
}

func TestHistory_ReconcileToleratesStatusErrors(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(
				platform.UploadSummary{UploadID: "gone1", Status: platform.StatusProcessing, Progress: 20},
				platform.UploadSummary{UploadID: "live1", Status: platform.StatusProcessing, Progress: 40},
			),
		},
		statuses: map[string]*platform.UploadStatus{
			// gone1 missing: its status check errors
			"live1": {Status: platform.StatusProcessing, Progress: 40},
		},
	}
	h := NewHistory(client, 20, time.Hour, nil)

	if err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	h.reconcile(context.Background())

	// The error on gone1 is logged and skipped; live1 still gets checked
	if checked := client.checkedIDs(); len(checked) != 2 {
		t.Errorf("expected both entries checked despite the error, got %v", checked)
	}
}

func TestHistory_StartStop(t *testing.T) {
	client := &fakeHistoryClient{
		lists: [][]platform.UploadSummary{
			summaries(platform.UploadSummary{UploadID: "u1", Status: platform.StatusApproved, Progress: 100}),
		},
	}
	h := NewHistory(client, 20, 2*time.Millisecond, nil)

	h.Start(context.Background())
	h.Start(context.Background()) // second Start is a no-op

	waitFor(t, time.Second, func() bool { return len(h.Snapshot()) == 1 })

	h.Stop()
	h.Stop() // idempotent
}
