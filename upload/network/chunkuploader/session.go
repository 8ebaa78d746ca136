package chunkuploader

// State is the lifecycle state of an upload session.
type State int

const (
	// StateStreaming means the next chunk is being assembled from the source.
	StateStreaming State = iota
	// StateUploading means a chunk is in flight.
	StateUploading
	// StateDone means the server signalled completion.
	StateDone
	// StateFailed means the session ended with an unrecoverable error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateUploading:
		return "uploading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Session tracks the server-acknowledged progress of one resumable upload.
// It is created once the session URL is known and is only mutated by the
// Sender that uploads its chunks.
type Session struct {
	// URL is the session URL returned by the session-open call. Never
	// changes after creation.
	URL string
	// TotalSize is the full size of the content in bytes.
	TotalSize int64
	// ChunkSize is the fixed chunk size used for this session.
	ChunkSize int
	// BytesConfirmed is the number of bytes the server has acknowledged.
	// It never decreases and never exceeds TotalSize.
	BytesConfirmed int64
	// RetryCount is the number of retries spent on the chunk currently in
	// flight. Resets to 0 on every accepted chunk.
	RetryCount int
	// State ...
	State State
}

// NewSession ...
func NewSession(url string, totalSize int64, chunkSize int) *Session {
	return &Session{
		URL:       url,
		TotalSize: totalSize,
		ChunkSize: chunkSize,
		State:     StateStreaming,
	}
}

// NumChunks returns the number of chunks the upload is expected to take.
func (s *Session) NumChunks() int {
	if s.ChunkSize <= 0 {
		return 0
	}
	return int((s.TotalSize + int64(s.ChunkSize) - 1) / int64(s.ChunkSize))
}
