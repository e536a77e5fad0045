package platform

import "time"

// Job status values reported by the platform
const (
	StatusPending        = "pending"
	StatusProcessing     = "processing"
	StatusReadyForReview = "ready_for_review"
	StatusApproved       = "approved"
	StatusError          = "error"
	StatusRejected       = "rejected"
)

// SubmitResponse is returned by the upload submission endpoint
type SubmitResponse struct {
	Success  bool   `json:"success"`
	UploadID string `json:"upload_id"`
	Error    string `json:"error,omitempty"`
}

// UploadStatus is the live state of one upload job
type UploadStatus struct {
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	CurrentStage    string     `json:"current_stage,omitempty"`
	CurrentItem     string     `json:"current_item,omitempty"`
	Error           string     `json:"error,omitempty"`
	CanResume       bool       `json:"can_resume,omitempty"`
	ResumeFromStage int        `json:"resume_from_stage,omitempty"`
	CreatedCourseID string     `json:"created_course_id,omitempty"`
	CreatedQuestID  string     `json:"created_quest_id,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// UploadSummary is one row of the upload history listing
type UploadSummary struct {
	UploadID        string     `json:"upload_id"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	CurrentStage    string     `json:"current_stage,omitempty"`
	Error           string     `json:"error,omitempty"`
	CanResume       bool       `json:"can_resume,omitempty"`
	ResumeFromStage int        `json:"resume_from_stage,omitempty"`
	CreatedCourseID string     `json:"created_course_id,omitempty"`
	CreatedQuestID  string     `json:"created_quest_id,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// listResponse wraps the history listing
type listResponse struct {
	Uploads []UploadSummary `json:"uploads"`
}

// ResumeResponse is returned by the resume endpoint
type ResumeResponse struct {
	Success         bool   `json:"success"`
	ResumeFromStage int    `json:"resume_from_stage"`
	Error           string `json:"error,omitempty"`
}

// textSubmitRequest is the JSON body for pasted-text submissions
type textSubmitRequest struct {
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	Objectives string `json:"learning_objectives,omitempty"`
}

// topicSubmitRequest is the JSON body for generation-topic submissions
type topicSubmitRequest struct {
	Kind       string `json:"kind"`
	Topic      string `json:"topic"`
	Objectives string `json:"learning_objectives,omitempty"`
}
