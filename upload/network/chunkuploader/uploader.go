package chunkuploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Uploader sends the chunks of a resumable upload session one at a time, with
// a bounded retry loop per chunk.
type Uploader struct {
	config     Config
	httpClient *http.Client
	logger     log.Logger
	stats      *Stats
}

// New creates a new Uploader with the given configuration.
func New(config Config, logger log.Logger) *Uploader {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}

	return &Uploader{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
		stats:      NewStats(),
	}
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (u *Uploader) CloseIdleConnections() {
	u.httpClient.CloseIdleConnections()
}

// UploadChunk sends one chunk to the session URL and interprets the server's
// response. 308 advances the session and asks for the next chunk, 200
// finishes the upload. Any other response is retried with the exact same
// bytes, up to MaxRetryPerChunk retries, then reported as a FatalChunkError.
func (u *Uploader) UploadChunk(ctx context.Context, session *Session, chunk []byte, final bool) (Transition, error) {
	if len(chunk) == 0 {
		return Transition{}, fmt.Errorf("empty chunk")
	}

	session.State = StateUploading

	start := session.BytesConfirmed
	end := start + int64(len(chunk)) - 1
	contentRange := fmt.Sprintf("bytes %d-%d/%d", start, end, session.TotalSize)

	numChunks := session.NumChunks()
	label := fmt.Sprintf("chunk %d/%d", int(start/int64(session.ChunkSize))+1, numChunks)
	if final {
		label = fmt.Sprintf("final %s", label)
	}

	maxAttempts := u.config.MaxRetryPerChunk + 1
	var lastErr *TransientChunkError

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			session.State = StateFailed
			return Transition{}, fmt.Errorf("%s upload cancelled: %w", label, ctx.Err())
		default:
		}

		if attempt > 0 {
			session.RetryCount = attempt
			u.stats.RecordRetry()
			if err := sleepContext(ctx, u.config.RetryWaitTime); err != nil {
				session.State = StateFailed
				return Transition{}, fmt.Errorf("%s upload cancelled: %w", label, err)
			}
		}

		u.logger.Debugf("Uploading %s: %s (attempt %d/%d)", label, contentRange, attempt+1, maxAttempts)

		requestStart := time.Now()
		transition, err := u.putChunk(ctx, session, chunk, contentRange)
		if err == nil {
			took := time.Since(requestStart)
			u.stats.Update(took, int64(len(chunk)))
			session.RetryCount = 0
			if transition.Done {
				session.State = StateDone
			} else {
				session.State = StateStreaming
			}
			u.logger.Debugf("Server accepted %s in %v", label, took.Round(time.Millisecond))
			return transition, nil
		}

		var transient *TransientChunkError
		if !errors.As(err, &transient) {
			session.State = StateFailed
			return Transition{}, err
		}
		lastErr = transient
		u.logger.Warnf("%s attempt %d failed: %v", label, attempt+1, transient)
	}

	session.State = StateFailed
	return Transition{}, &FatalChunkError{
		Status:   lastErr.Status,
		Body:     lastErr.Body,
		Attempts: maxAttempts,
		Err:      lastErr.Err,
	}
}

func (u *Uploader) putChunk(ctx context.Context, session *Session, chunk []byte, contentRange string) (Transition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, session.URL, bytes.NewReader(chunk))
	if err != nil {
		return Transition{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Range", contentRange)
	req.ContentLength = int64(len(chunk))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return Transition{}, fmt.Errorf("chunk upload cancelled: %w", ctx.Err())
		}
		return Transition{}, &TransientChunkError{Err: err}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			u.logger.Printf(err.Error())
		}
	}(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Transition{}, &TransientChunkError{Status: resp.StatusCode, Err: err}
		}
		session.BytesConfirmed += int64(len(chunk))
		return Transition{Done: true, Result: parseResult(body)}, nil
	case http.StatusPermanentRedirect:
		session.BytesConfirmed += int64(len(chunk))
		return Transition{}, nil
	default:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Transition{}, &TransientChunkError{Status: resp.StatusCode, Err: err}
		}
		return Transition{}, &TransientChunkError{Status: resp.StatusCode, Body: string(body)}
	}
}

// parseResult keeps the raw body around and decodes it on top when the server
// responds with a JSON object.
func parseResult(body []byte) *Result {
	result := Result{Raw: string(body)}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err == nil {
		result.Fields = fields
	}

	return &result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
