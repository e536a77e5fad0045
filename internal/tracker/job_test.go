package tracker

import (
	"testing"

	"github.com/courseforge/uploadtracker/internal/platform"
)

func TestJob_PollingDone(t *testing.T) {
	tests := []struct {
		status    string
		canResume bool
		expected  bool
	}{
		{platform.StatusPending, false, false},
		{platform.StatusProcessing, false, false},
		{platform.StatusReadyForReview, false, false},
		{platform.StatusApproved, false, true},
		{platform.StatusRejected, false, true},
		{platform.StatusError, false, true},
		// A resumable error still leaves the polling set; only an
		// explicit resume re-enters it
		{platform.StatusError, true, true},
	}

	for _, tt := range tests {
		job := Job{Status: tt.status, CanResume: tt.canResume}
		if got := job.PollingDone(); got != tt.expected {
			t.Errorf("PollingDone() for status=%s canResume=%v = %v, want %v",
				tt.status, tt.canResume, got, tt.expected)
		}
	}
}

func TestJob_Terminal(t *testing.T) {
	tests := []struct {
		status    string
		canResume bool
		expected  bool
	}{
		{platform.StatusProcessing, false, false},
		{platform.StatusApproved, false, true},
		{platform.StatusRejected, false, true},
		{platform.StatusError, false, true},
		{platform.StatusError, true, false},
	}

	for _, tt := range tests {
		job := Job{Status: tt.status, CanResume: tt.canResume}
		if got := job.Terminal(); got != tt.expected {
			t.Errorf("Terminal() for status=%s canResume=%v = %v, want %v",
				tt.status, tt.canResume, got, tt.expected)
		}
	}
}

func TestJob_Resumable(t *testing.T) {
	if !(Job{Status: platform.StatusError, CanResume: true}).Resumable() {
		t.Error("error with can_resume should be resumable")
	}
	if (Job{Status: platform.StatusError}).Resumable() {
		t.Error("error without can_resume should not be resumable")
	}
	if (Job{Status: platform.StatusProcessing, CanResume: true}).Resumable() {
		t.Error("processing jobs are not resumable")
	}
}
