// Package validate performs client-side checks on upload submissions
// before any network call is made. Violations are user-facing
// validation errors, never network errors.
package validate

import (
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/courseforge/uploadtracker/internal/errors"
)

// MaxFileSize is the upload size ceiling. A file of exactly this many
// bytes is accepted; one byte over is rejected.
const MaxFileSize int64 = 100 << 20 // 100 MiB

// AllowedExtensions lists the curriculum file types the platform accepts
var AllowedExtensions = []string{".imscc", ".zip", ".pdf", ".docx", ".doc"}

// Kind identifies the shape of a submission
type Kind string

const (
	KindFile  Kind = "file"
	KindText  Kind = "text"
	KindTopic Kind = "topic"
)

// Submission is any upload input shape
type Submission interface {
	Kind() Kind
}

// FileSubmission is a curriculum file plus optional archive
// content-type selections
type FileSubmission struct {
	Name         string
	Size         int64
	Objectives   string
	ContentTypes map[string]string
}

func (FileSubmission) Kind() Kind { return KindFile }

// TextSubmission is pasted material with a title
type TextSubmission struct {
	Title      string
	Text       string
	Objectives string
}

func (TextSubmission) Kind() Kind { return KindText }

// TopicSubmission is a free-text generation topic
type TopicSubmission struct {
	Topic      string
	Objectives string
}

func (TopicSubmission) Kind() Kind { return KindTopic }

// Validator checks one submission kind
type Validator interface {
	// Kind returns the submission kind this validator handles
	Kind() Kind

	// Validate returns a user-facing error for invalid input, nil otherwise
	Validate(s Submission) error
}

// Registry manages submission validators
type Registry struct {
	mu         sync.RWMutex
	validators map[Kind]Validator
}

// NewRegistry creates a new validator registry
func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[Kind]Validator),
	}
}

// Register adds a validator to the registry
func (r *Registry) Register(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[v.Kind()] = v
}

// Validate dispatches to the validator for the submission's kind
func (r *Registry) Validate(s Submission) error {
	r.mu.RLock()
	v, ok := r.validators[s.Kind()]
	r.mu.RUnlock()

	if !ok {
		return apperrors.ValidationError("unsupported submission kind: " + string(s.Kind()))
	}
	return v.Validate(s)
}

// DefaultRegistry creates a registry with all built-in validators
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&FileValidator{})
	r.Register(&TextValidator{})
	r.Register(&TopicValidator{})
	return r
}

// FileValidator enforces the extension allow-list and size ceiling
type FileValidator struct{}

func (*FileValidator) Kind() Kind { return KindFile }

func (*FileValidator) Validate(s Submission) error {
	f, ok := s.(FileSubmission)
	if !ok {
		return apperrors.ValidationError("expected a file submission")
	}

	if strings.TrimSpace(f.Name) == "" {
		return apperrors.ValidationError("file name is required")
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	if !allowedExtension(ext) {
		return apperrors.InvalidFileType(ext, AllowedExtensions)
	}

	if f.Size <= 0 {
		return apperrors.ValidationError("file is empty")
	}
	if f.Size > MaxFileSize {
		return apperrors.FileTooLarge(f.Size, MaxFileSize)
	}

	// Archives carry a content-type selection per entry kind
	if isArchive(ext) {
		for entry, contentType := range f.ContentTypes {
			if strings.TrimSpace(contentType) == "" {
				return apperrors.ValidationError("missing content type selection for " + entry)
			}
		}
	}

	return nil
}

// TextValidator requires a title and non-empty pasted text
type TextValidator struct{}

func (*TextValidator) Kind() Kind { return KindText }

func (*TextValidator) Validate(s Submission) error {
	t, ok := s.(TextSubmission)
	if !ok {
		return apperrors.ValidationError("expected a text submission")
	}

	if strings.TrimSpace(t.Title) == "" {
		return apperrors.ValidationError("a title is required for pasted text")
	}
	if strings.TrimSpace(t.Text) == "" {
		return apperrors.ValidationError("pasted text must not be empty")
	}
	return nil
}

// TopicValidator requires a non-empty generation topic
type TopicValidator struct{}

func (*TopicValidator) Kind() Kind { return KindTopic }

func (*TopicValidator) Validate(s Submission) error {
	t, ok := s.(TopicSubmission)
	if !ok {
		return apperrors.ValidationError("expected a topic submission")
	}

	if strings.TrimSpace(t.Topic) == "" {
		return apperrors.ValidationError("a generation topic must not be empty")
	}
	return nil
}

func allowedExtension(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func isArchive(ext string) bool {
	return ext == ".zip" || ext == ".imscc"
}
