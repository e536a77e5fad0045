package tracker

import (
	"time"

	"github.com/courseforge/uploadtracker/internal/platform"
)

// Job is the tracker's view of one upload: the platform's reported
// state plus the result references that appear once it is approved.
type Job struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	CurrentStage    string     `json:"current_stage,omitempty"`
	CurrentItem     string     `json:"current_item,omitempty"`
	ErrorMessage    string     `json:"error,omitempty"`
	CanResume       bool       `json:"can_resume,omitempty"`
	ResumeFromStage int        `json:"resume_from_stage,omitempty"`
	CreatedCourseID string     `json:"created_course_id,omitempty"`
	CreatedQuestID  string     `json:"created_quest_id,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// PollingDone returns true once no further status requests may be
// issued for the job: approved, rejected, or any error. An error that
// can be resumed re-enters polling only through an explicit resume.
func (j Job) PollingDone() bool {
	switch j.Status {
	case platform.StatusApproved, platform.StatusError, platform.StatusRejected:
		return true
	}
	return false
}

// Terminal returns true when the job can never make progress again
func (j Job) Terminal() bool {
	switch j.Status {
	case platform.StatusApproved, platform.StatusRejected:
		return true
	case platform.StatusError:
		return !j.CanResume
	}
	return false
}

// Resumable returns true when the job failed at a recorded checkpoint
func (j Job) Resumable() bool {
	return j.Status == platform.StatusError && j.CanResume
}

// Succeeded returns true when the job produced its course/quest
func (j Job) Succeeded() bool {
	return j.Status == platform.StatusApproved
}

func jobFromStatus(id string, st *platform.UploadStatus) Job {
	return Job{
		ID:              id,
		Status:          st.Status,
		Progress:        st.Progress,
		CurrentStage:    st.CurrentStage,
		CurrentItem:     st.CurrentItem,
		ErrorMessage:    st.Error,
		CanResume:       st.CanResume,
		ResumeFromStage: st.ResumeFromStage,
		CreatedCourseID: st.CreatedCourseID,
		CreatedQuestID:  st.CreatedQuestID,
		CreatedAt:       st.CreatedAt,
		CompletedAt:     st.CompletedAt,
	}
}

func jobFromSummary(s platform.UploadSummary) Job {
	return Job{
		ID:              s.UploadID,
		Status:          s.Status,
		Progress:        s.Progress,
		CurrentStage:    s.CurrentStage,
		ErrorMessage:    s.Error,
		CanResume:       s.CanResume,
		ResumeFromStage: s.ResumeFromStage,
		CreatedCourseID: s.CreatedCourseID,
		CreatedQuestID:  s.CreatedQuestID,
		CreatedAt:       s.CreatedAt,
		CompletedAt:     s.CompletedAt,
	}
}
