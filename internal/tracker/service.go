// Package tracker implements the upload tracking state machine: it
// submits curriculum material, polls the focused job until it settles,
// persists the focused id across restarts, reconciles the history
// list, and drives resume/cancel against failed or in-flight jobs.
package tracker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	apperrors "github.com/courseforge/uploadtracker/internal/errors"
	"github.com/courseforge/uploadtracker/internal/logger"
	"github.com/courseforge/uploadtracker/internal/platform"
	"github.com/courseforge/uploadtracker/internal/state"
	"github.com/courseforge/uploadtracker/internal/validate"
)

// Client is the platform API surface the service depends on
type Client interface {
	SubmitFile(ctx context.Context, name string, file io.Reader, objectives string, contentTypes map[string]string) (string, error)
	SubmitText(ctx context.Context, title, text, objectives string) (string, error)
	SubmitTopic(ctx context.Context, topic, objectives string) (string, error)
	Status(ctx context.Context, uploadID string) (*platform.UploadStatus, error)
	List(ctx context.Context, limit int) ([]platform.UploadSummary, error)
	Resume(ctx context.Context, uploadID string) (*platform.ResumeResponse, error)
	Cancel(ctx context.Context, uploadID string) error
}

// Config holds service tuning knobs
type Config struct {
	PollInterval    time.Duration
	HistoryInterval time.Duration
	HistoryLimit    int
}

// Service owns the focused-upload lifecycle
type Service struct {
	client   Client
	store    state.Store
	notifier Notifier
	registry *validate.Registry
	watcher  *Watcher
	history  *History
	log      *logger.Logger

	baseCtx context.Context
	stop    context.CancelFunc

	mu        sync.Mutex
	watch     *Watch
	focusedID string
	lastJob   *Job

	subMu sync.Mutex
	subs  map[chan Update]struct{}
}

// NewService wires the tracker together. A nil notifier logs
// notifications; a nil store disables resume.
func NewService(client Client, store state.Store, notifier Notifier, cfg Config) *Service {
	if store == nil {
		store = state.NoopStore{}
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}

	s := &Service{
		client:   client,
		store:    store,
		notifier: notifier,
		registry: validate.DefaultRegistry(),
		watcher:  NewWatcher(client, cfg.PollInterval),
		log:      logger.Default().WithComponent("tracker"),
		subs:     make(map[chan Update]struct{}),
	}
	s.history = NewHistory(client, cfg.HistoryLimit, cfg.HistoryInterval, s.FocusedID)

	return s
}

// Start begins background work (history reconciliation) and resumes a
// persisted focused upload if one exists. It returns the resumed id,
// or "" when starting idle.
func (s *Service) Start(ctx context.Context) string {
	s.baseCtx, s.stop = context.WithCancel(ctx)
	s.history.Start(s.baseCtx)

	uploadID, err := s.store.LoadActive(ctx)
	if err != nil {
		s.log.Warn(ctx, "could not load persisted upload, starting idle", map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}
	if uploadID == "" {
		return ""
	}

	s.log.Info(ctx, "resuming watch of persisted upload", map[string]interface{}{
		"upload_id": uploadID,
	})
	s.beginTracking(uploadID, false)
	return uploadID
}

// Close stops polling and background loops and releases the store
func (s *Service) Close() error {
	if s.stop != nil {
		s.stop()
	}

	s.mu.Lock()
	watch := s.watch
	s.mu.Unlock()
	if watch != nil {
		watch.Stop()
		<-watch.Done()
	}

	s.history.Stop()
	return s.store.Close()
}

// FocusedID returns the id of the currently watched upload, if any
func (s *Service) FocusedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusedID
}

// LastJob returns the most recent observation of the focused upload
func (s *Service) LastJob() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastJob == nil {
		return Job{}, false
	}
	return *s.lastJob, true
}

// History exposes the history tracker
func (s *Service) History() *History {
	return s.history
}

// Subscribe registers a listener for focused-upload updates. The
// returned cancel func must be called when the listener goes away.
func (s *Service) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		delete(s.subs, ch)
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Service) broadcast(update Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- update:
		default:
			// Slow listeners drop updates rather than stall polling
		}
	}
}

// SubmitFile validates and submits a curriculum file, then starts
// tracking the new upload. Validation failures surface before any
// network call.
func (s *Service) SubmitFile(ctx context.Context, name string, size int64, file io.Reader, objectives string, contentTypes map[string]string) (string, error) {
	sub := validate.FileSubmission{
		Name:         name,
		Size:         size,
		Objectives:   objectives,
		ContentTypes: contentTypes,
	}
	if err := s.registry.Validate(sub); err != nil {
		return "", err
	}

	uploadID, err := s.client.SubmitFile(ctx, name, file, objectives, contentTypes)
	return s.afterSubmit(ctx, uploadID, err)
}

// SubmitText validates and submits pasted text with a title
func (s *Service) SubmitText(ctx context.Context, title, text, objectives string) (string, error) {
	sub := validate.TextSubmission{Title: title, Text: text, Objectives: objectives}
	if err := s.registry.Validate(sub); err != nil {
		return "", err
	}

	uploadID, err := s.client.SubmitText(ctx, title, text, objectives)
	return s.afterSubmit(ctx, uploadID, err)
}

// SubmitTopic validates and submits a generation topic
func (s *Service) SubmitTopic(ctx context.Context, topic, objectives string) (string, error) {
	sub := validate.TopicSubmission{Topic: topic, Objectives: objectives}
	if err := s.registry.Validate(sub); err != nil {
		return "", err
	}

	uploadID, err := s.client.SubmitTopic(ctx, topic, objectives)
	return s.afterSubmit(ctx, uploadID, err)
}

func (s *Service) afterSubmit(ctx context.Context, uploadID string, err error) (string, error) {
	if err != nil {
		// No job started: local state stays untouched, user may retry
		s.notifier.Notify(ctx, Notification{
			Kind:    NotifyFailure,
			Message: userMessage(err, "upload submission failed"),
		})
		return "", err
	}

	s.beginTracking(uploadID, true)
	return uploadID, nil
}

// Resume re-enters processing for an upload that failed at a
// checkpoint. Only valid when the platform reports it resumable.
func (s *Service) Resume(ctx context.Context, uploadID string) error {
	st, err := s.client.Status(ctx, uploadID)
	if err != nil {
		s.notifier.Notify(ctx, Notification{
			Kind:     NotifyFailure,
			UploadID: uploadID,
			Message:  userMessage(err, "could not check upload before resuming"),
		})
		return err
	}
	if !(st.Status == platform.StatusError && st.CanResume) {
		return apperrors.NotResumable(uploadID)
	}

	rr, err := s.client.Resume(ctx, uploadID)
	if err != nil {
		// Resume failed server-side: the job's local state is unchanged
		s.notifier.Notify(ctx, Notification{
			Kind:     NotifyFailure,
			UploadID: uploadID,
			Message:  userMessage(err, "resume request failed"),
		})
		return err
	}

	s.notifier.Notify(ctx, Notification{
		Kind:            NotifyInfo,
		UploadID:        uploadID,
		Message:         fmt.Sprintf("resuming upload from stage %d", rr.ResumeFromStage),
		ResumeFromStage: rr.ResumeFromStage,
	})

	s.beginTracking(uploadID, true)
	return nil
}

// Cancel deletes an upload that is still processing. When the
// cancelled upload is the focused one, polling stops and the persisted
// id is cleared so a later restart does not resurrect it. History is
// refreshed either way.
func (s *Service) Cancel(ctx context.Context, uploadID string) error {
	st, err := s.client.Status(ctx, uploadID)
	if err != nil {
		s.notifier.Notify(ctx, Notification{
			Kind:     NotifyFailure,
			UploadID: uploadID,
			Message:  userMessage(err, "could not check upload before cancelling"),
		})
		return err
	}
	if st.Status != platform.StatusProcessing && st.Status != platform.StatusPending {
		return apperrors.NotCancellable(uploadID)
	}

	if err := s.client.Cancel(ctx, uploadID); err != nil {
		s.notifier.Notify(ctx, Notification{
			Kind:     NotifyFailure,
			UploadID: uploadID,
			Message:  userMessage(err, "cancel request failed"),
		})
		return err
	}

	s.mu.Lock()
	wasFocused := s.focusedID == uploadID
	watch := s.watch
	if wasFocused {
		s.watch = nil
		s.focusedID = ""
		s.lastJob = nil
		s.clearPersisted(ctx)
	}
	s.mu.Unlock()

	if wasFocused && watch != nil {
		watch.Stop()
		<-watch.Done()
	}

	if err := s.history.Refresh(ctx); err != nil {
		s.log.Warn(ctx, "history refresh after cancel failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.notifier.Notify(ctx, Notification{
		Kind:     NotifySuccess,
		UploadID: uploadID,
		Message:  "upload cancelled",
	})
	return nil
}

// Detail is a pure read of one upload's live state, used by the
// history detail view.
func (s *Service) Detail(ctx context.Context, uploadID string) (Job, error) {
	st, err := s.client.Status(ctx, uploadID)
	if err != nil {
		return Job{}, err
	}
	return jobFromStatus(uploadID, st), nil
}

// Reset abandons tracking of the focused upload without touching the
// job server-side: polling stops and the persisted id is cleared.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	watch := s.watch
	s.watch = nil
	s.focusedID = ""
	s.lastJob = nil
	s.clearPersisted(ctx)
	s.mu.Unlock()

	if watch != nil {
		watch.Stop()
		<-watch.Done()
	}
}

// beginTracking makes uploadID the focused upload: persists it,
// replaces any previous watch, and consumes updates until the job
// settles.
func (s *Service) beginTracking(uploadID string, persist bool) {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	previous := s.watch
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
		<-previous.Done()
	}

	watch := s.watcher.Watch(ctx, uploadID)

	s.mu.Lock()
	if persist {
		if err := s.store.SaveActive(ctx, uploadID); err != nil {
			// Resume across restarts is lost but tracking continues
			s.log.Warn(ctx, "could not persist focused upload", map[string]interface{}{
				"upload_id": uploadID,
				"error":     err.Error(),
			})
		}
	}
	s.watch = watch
	s.focusedID = uploadID
	s.lastJob = &Job{ID: uploadID, Status: platform.StatusProcessing}
	s.mu.Unlock()

	go s.consume(watch)
}

func (s *Service) consume(watch *Watch) {
	for update := range watch.Updates() {
		s.mu.Lock()
		if s.watch != watch {
			// A newer watch took over; discard stale updates
			s.mu.Unlock()
			return
		}
		job := update.Job
		s.lastJob = &job
		s.mu.Unlock()

		s.broadcast(update)

		if update.Job.PollingDone() {
			s.settle(update.Job)
		}
	}
}

// settle handles the focused job leaving the polling set
func (s *Service) settle(job Job) {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	// The persisted id mirrors the focused upload, so it changes
	// under the same lock as the focus: a settle racing a newer
	// submission must not erase the newer upload's saved id.
	s.mu.Lock()
	if s.focusedID == job.ID {
		s.focusedID = ""
		s.watch = nil
		s.clearPersisted(ctx)
	}
	s.mu.Unlock()

	switch {
	case job.Succeeded():
		s.notifier.Notify(ctx, Notification{
			Kind:            NotifySuccess,
			UploadID:        job.ID,
			Message:         "upload approved",
			CreatedCourseID: job.CreatedCourseID,
			CreatedQuestID:  job.CreatedQuestID,
		})
	case job.Resumable():
		s.notifier.Notify(ctx, Notification{
			Kind:            NotifyFailure,
			UploadID:        job.ID,
			Message:         failureMessage(job),
			CanResume:       true,
			ResumeFromStage: job.ResumeFromStage,
		})
	default:
		s.notifier.Notify(ctx, Notification{
			Kind:     NotifyFailure,
			UploadID: job.ID,
			Message:  failureMessage(job),
		})
	}

	if err := s.history.Refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn(ctx, "history refresh after completion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Service) clearPersisted(ctx context.Context) {
	if err := s.store.ClearActive(ctx); err != nil {
		s.log.Warn(ctx, "could not clear persisted upload", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func failureMessage(job Job) string {
	if job.Status == platform.StatusRejected {
		return "upload was rejected"
	}
	if job.ErrorMessage != "" {
		return "upload failed: " + job.ErrorMessage
	}
	return "upload failed"
}

// userMessage prefers the server-supplied message, falling back when
// the error carries none.
func userMessage(err error, fallback string) string {
	if appErr, ok := err.(*apperrors.AppError); ok && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
