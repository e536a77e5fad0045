// Package platform is the HTTP+JSON client for the education
// platform's upload endpoints. It owns only the wire contract;
// polling and state live in the tracker package.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/courseforge/uploadtracker/internal/errors"
	"github.com/courseforge/uploadtracker/internal/logger"
)

const (
	uploadsPath    = "/api/v1/uploads"
	defaultTimeout = 15 * time.Second
)

// Client provides access to the platform upload API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// Submissions stream multipart bodies of up to 100 MiB; the
	// request context governs their deadline instead of a client
	// timeout.
	uploadClient *http.Client
}

// NewClient creates a platform API client. The token may be empty for
// unauthenticated development backends.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := logger.NewTransport(nil)

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		uploadClient: &http.Client{
			Transport: transport,
		},
	}
}

// SubmitFile posts a curriculum file as a multipart body and returns
// the new upload id.
func (c *Client) SubmitFile(ctx context.Context, name string, file io.Reader, objectives string, contentTypes map[string]string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		if objectives != "" {
			if err := mw.WriteField("learning_objectives", objectives); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		if len(contentTypes) > 0 {
			data, err := json.Marshal(contentTypes)
			if err != nil {
				pw.CloseWithError(err)
				return
			}
			if err := mw.WriteField("content_types", string(data)); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadsPath, pr)
	if err != nil {
		return "", apperrors.InternalError("failed to build submit request").WithCause(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	return c.doSubmit(req)
}

// SubmitText posts pasted text with a title and returns the new upload id
func (c *Client) SubmitText(ctx context.Context, title, text, objectives string) (string, error) {
	body := textSubmitRequest{Kind: "text", Title: title, Text: text, Objectives: objectives}
	return c.submitJSON(ctx, body)
}

// SubmitTopic posts a generation topic and returns the new upload id
func (c *Client) SubmitTopic(ctx context.Context, topic, objectives string) (string, error) {
	body := topicSubmitRequest{Kind: "topic", Topic: topic, Objectives: objectives}
	return c.submitJSON(ctx, body)
}

func (c *Client) submitJSON(ctx context.Context, body any) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", apperrors.InternalError("failed to encode submit request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadsPath, bytes.NewReader(data))
	if err != nil {
		return "", apperrors.InternalError("failed to build submit request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	return c.doSubmit(req)
}

func (c *Client) doSubmit(req *http.Request) (string, error) {
	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return "", apperrors.SubmissionFailed("upload submission failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		appErr := apperrors.FromResponse(resp)
		return "", apperrors.SubmissionFailed(appErr.Message).WithCause(appErr)
	}

	var sr SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", apperrors.SubmissionFailed("malformed submission response").WithCause(err)
	}
	if !sr.Success || sr.UploadID == "" {
		msg := sr.Error
		if msg == "" {
			msg = "the platform rejected the submission"
		}
		return "", apperrors.SubmissionFailed(msg)
	}

	return sr.UploadID, nil
}

// Status fetches the live state of an upload. Transient failures are
// retried with a short backoff that stays inside one poll window.
func (c *Client) Status(ctx context.Context, uploadID string) (*UploadStatus, error) {
	return apperrors.RetryWithResult(ctx, apperrors.StatusPollRetryConfig(), func(ctx context.Context) (*UploadStatus, error) {
		var st UploadStatus
		path := fmt.Sprintf("%s/%s/status", uploadsPath, url.PathEscape(uploadID))
		if err := c.getJSON(ctx, path, &st); err != nil {
			return nil, err
		}
		return &st, nil
	})
}

// List fetches the most recent uploads, newest first
func (c *Client) List(ctx context.Context, limit int) ([]UploadSummary, error) {
	return apperrors.RetryWithResult(ctx, apperrors.HistoryRetryConfig(), func(ctx context.Context) ([]UploadSummary, error) {
		var lr listResponse
		path := uploadsPath + "?limit=" + strconv.Itoa(limit)
		if err := c.getJSON(ctx, path, &lr); err != nil {
			return nil, err
		}
		return lr.Uploads, nil
	})
}

// Resume asks the platform to re-enter processing from the upload's
// recorded checkpoint stage.
func (c *Client) Resume(ctx context.Context, uploadID string) (*ResumeResponse, error) {
	path := fmt.Sprintf("%s/%s/resume", uploadsPath, url.PathEscape(uploadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to build resume request").WithCause(err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.PlatformError("resume request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.FromResponse(resp)
	}

	var rr ResumeResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, apperrors.PlatformError("malformed resume response").WithCause(err)
	}
	if !rr.Success {
		msg := rr.Error
		if msg == "" {
			msg = "the platform declined to resume the upload"
		}
		return nil, apperrors.PlatformError(msg)
	}

	return &rr, nil
}

// Cancel deletes an in-flight upload job
func (c *Client) Cancel(ctx context.Context, uploadID string) error {
	path := fmt.Sprintf("%s/%s", uploadsPath, url.PathEscape(uploadID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return apperrors.InternalError("failed to build cancel request").WithCause(err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.PlatformError("cancel request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.FromResponse(resp)
	}

	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperrors.InternalError("failed to build request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.PlatformTimeout().WithCause(err)
		}
		return apperrors.PlatformError("platform request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.FromResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.PlatformError("malformed platform response").WithCause(err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
