package tracker

import (
	"context"

	"github.com/courseforge/uploadtracker/internal/logger"
)

// NotificationKind classifies user-visible notifications
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyFailure NotificationKind = "failure"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a user-visible message about an upload
type Notification struct {
	Kind            NotificationKind
	UploadID        string
	Message         string
	CreatedCourseID string
	CreatedQuestID  string
	CanResume       bool
	ResumeFromStage int
}

// Notifier delivers notifications to whatever surface hosts the
// tracker (console, desktop, test recorder).
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier is the default sink: notifications become log entries
type LogNotifier struct {
	Log *logger.Logger
}

// Notify implements Notifier
func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	log := l.Log
	if log == nil {
		log = logger.Default().WithComponent("notify")
	}

	fields := map[string]interface{}{
		"upload_id": n.UploadID,
	}
	if n.CreatedCourseID != "" {
		fields["created_course_id"] = n.CreatedCourseID
	}
	if n.CanResume {
		fields["resume_from_stage"] = n.ResumeFromStage
	}

	switch n.Kind {
	case NotifyFailure:
		log.Warn(ctx, n.Message, fields)
	default:
		log.Info(ctx, n.Message, fields)
	}
}
