package chunkuploader

import "fmt"

// TransientChunkError is one failed chunk attempt. The uploader retries these
// with the same bytes until the retry budget is spent.
type TransientChunkError struct {
	// Status is the HTTP status of the failed attempt, or 0 when the attempt
	// produced no response.
	Status int
	// Body is the response body of the failed attempt.
	Body string
	// Err is the transport error for attempts without a response.
	Err error
}

func (e *TransientChunkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunk upload attempt failed: %s", e.Err)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

func (e *TransientChunkError) Unwrap() error {
	return e.Err
}

// FatalChunkError means a chunk was still rejected on the last allowed
// attempt. Status and Body are taken from the final attempt.
type FatalChunkError struct {
	Status   int
	Body     string
	Attempts int
	Err      error
}

func (e *FatalChunkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunk rejected after %d attempts: %s", e.Attempts, e.Err)
	}
	return fmt.Sprintf("chunk rejected after %d attempts: HTTP %d: %s", e.Attempts, e.Status, e.Body)
}

func (e *FatalChunkError) Unwrap() error {
	return e.Err
}
