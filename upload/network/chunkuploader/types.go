// Package chunkuploader implements the chunk-level half of a resumable upload
// session: assembling a byte stream into fixed-size chunks and sending each
// chunk with an explicit byte range until the server signals completion.
package chunkuploader

import (
	"context"
)

// Sender uploads assembled chunks to a session URL.
// Implementations send at most one chunk at a time; byte ranges are strictly
// sequential.
type Sender interface {
	// UploadChunk sends one chunk and interprets the server's response.
	// The final flag marks the last chunk of the content; it only affects
	// logging, completion is always signalled by the server.
	UploadChunk(ctx context.Context, session *Session, chunk []byte, final bool) (Transition, error)
}

// Transition is the server's verdict on an uploaded chunk.
type Transition struct {
	// Done reports that the server accepted the chunk and considers the
	// upload complete. When false the server expects more chunks.
	Done bool
	// Result holds the final server response. Set only when Done.
	Result *Result
}

// Result is the server's response to the final chunk of a completed upload.
type Result struct {
	// Fields is the decoded response body when it is a valid JSON object.
	Fields map[string]interface{}
	// Raw is the verbatim response body text.
	Raw string
}
