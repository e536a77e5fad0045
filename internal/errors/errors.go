package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient   ErrorCategory = "client"
	CategoryServer   ErrorCategory = "server"
	CategoryExternal ErrorCategory = "external"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"

	// Upload specific
	CodeUploadNotFound   = "UPLOAD_NOT_FOUND"
	CodeInvalidFileType  = "INVALID_FILE_TYPE"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeNotResumable     = "NOT_RESUMABLE"
	CodeNotCancellable   = "NOT_CANCELLABLE"
	CodeSubmissionFailed = "SUBMISSION_FAILED"

	// Server errors (5xx)
	CodeInternalError   = "INTERNAL_ERROR"
	CodeStateStoreError = "STATE_STORE_ERROR"

	// External service errors
	CodePlatformError   = "PLATFORM_ERROR"
	CodePlatformTimeout = "PLATFORM_TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

// Client error constructors

func BadRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, CategoryClient, http.StatusBadRequest)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message, CategoryClient, http.StatusBadRequest)
}

func InvalidFileType(ext string, allowed []string) *AppError {
	return New(CodeInvalidFileType,
		fmt.Sprintf("invalid file type %q, allowed types: %v", ext, allowed),
		CategoryClient, http.StatusBadRequest)
}

func FileTooLarge(size, limit int64) *AppError {
	return New(CodeFileTooLarge,
		fmt.Sprintf("file is %d bytes, limit is %d bytes", size, limit),
		CategoryClient, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, CategoryClient, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, CategoryClient, http.StatusForbidden)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), CategoryClient, http.StatusNotFound)
}

func UploadNotFound(uploadID string) *AppError {
	return New(CodeUploadNotFound, fmt.Sprintf("upload %s not found", uploadID), CategoryClient, http.StatusNotFound)
}

func NotResumable(uploadID string) *AppError {
	return New(CodeNotResumable, fmt.Sprintf("upload %s cannot be resumed", uploadID), CategoryClient, http.StatusConflict)
}

func NotCancellable(uploadID string) *AppError {
	return New(CodeNotCancellable, fmt.Sprintf("upload %s is not processing and cannot be cancelled", uploadID), CategoryClient, http.StatusConflict)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, CategoryClient, http.StatusConflict)
}

func RateLimited() *AppError {
	return New(CodeRateLimited, "rate limit exceeded", CategoryClient, http.StatusTooManyRequests)
}

// Server error constructors

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

func StateStoreError(message string) *AppError {
	return New(CodeStateStoreError, message, CategoryServer, http.StatusInternalServerError)
}

// External service error constructors

func SubmissionFailed(message string) *AppError {
	return New(CodeSubmissionFailed, message, CategoryExternal, http.StatusBadGateway)
}

func PlatformError(message string) *AppError {
	return New(CodePlatformError, message, CategoryExternal, http.StatusBadGateway)
}

func PlatformTimeout() *AppError {
	return New(CodePlatformTimeout, "platform request timed out", CategoryExternal, http.StatusGatewayTimeout)
}

// errorBody is the error envelope the platform returns on failures
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FromResponse maps a non-2xx platform response to an AppError. The
// body is consumed; a JSON error envelope contributes its message.
func FromResponse(resp *http.Response) *AppError {
	msg := fmt.Sprintf("platform returned %s", resp.Status)

	if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil && len(body) > 0 {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			if eb.Error != "" {
				msg = eb.Error
			} else if eb.Message != "" {
				msg = eb.Message
			}
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Unauthorized(msg)
	case resp.StatusCode == http.StatusForbidden:
		return Forbidden(msg)
	case resp.StatusCode == http.StatusNotFound:
		return New(CodeUploadNotFound, msg, CategoryClient, http.StatusNotFound)
	case resp.StatusCode == http.StatusConflict:
		return Conflict(msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return New(CodeRateLimited, msg, CategoryExternal, http.StatusTooManyRequests)
	case resp.StatusCode >= 500:
		return New(CodePlatformError, msg, CategoryExternal, resp.StatusCode)
	case resp.StatusCode >= 400:
		return New(CodeInvalidRequest, msg, CategoryClient, resp.StatusCode)
	default:
		return New(CodePlatformError, msg, CategoryExternal, resp.StatusCode)
	}
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	// External service errors are typically retryable
	if appErr.Category == CategoryExternal {
		return appErr.Code != CodeSubmissionFailed
	}

	// Server errors may be retryable (except local state store failures)
	if appErr.Category == CategoryServer {
		return appErr.Code != CodeStateStoreError
	}

	return false
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryClient
}

// IsValidationError returns true if the error is a pre-flight validation error
func IsValidationError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeValidationError, CodeInvalidFileType, CodeFileTooLarge:
		return true
	}
	return false
}

// IsServerError returns true if the error is a server error
func IsServerError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryServer
}

// IsExternalError returns true if the error is an external service error
func IsExternalError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryExternal
}
