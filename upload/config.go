package upload

import (
	"strings"

	"github.com/bitrise-io/go-resumable/upload/network/chunkuploader"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
)

// UploadInput is the information that comes from the steps that call this shared implementation
type UploadInput struct {
	// StepId identifies the exact step. Used for logging events.
	StepId  string
	Verbose bool
	// FilePath is a local file to upload. Exactly one of FilePath and URL
	// must be set. The path may use the file:// scheme and may be a glob
	// pattern matching exactly one file.
	FilePath string
	// URL is remote content to upload. Exactly one of FilePath and URL must
	// be set.
	URL string
	// SpoolToDisk downloads URL content to a temporary file before the
	// session is opened instead of streaming it. Ignored for file sources.
	SpoolToDisk bool
	// SessionEndpoint is the URL that accepts the session-open request.
	SessionEndpoint string
	// TotalSize is the size of the content in bytes. Required, the server
	// commits to it when the session is opened.
	TotalSize int64
	// AccessToken is attached to the session-open request when provided.
	AccessToken stepconf.Secret
	// Metadata is sent as the JSON body of the session-open request.
	Metadata map[string]interface{}
	// ChunkSize is the upload chunk size in bytes. If not provided (0), the
	// default value (16 MiB) will be used. Should be a multiple of 262144 bytes.
	ChunkSize int
}

type uploadConfig struct {
	FilePath        string
	URL             string
	SpoolToDisk     bool
	SessionEndpoint string
	TotalSize       int64
	AccessToken     stepconf.Secret
	Metadata        map[string]interface{}
	ChunkSize       int
}

func (u *uploader) createConfig(input UploadInput) (uploadConfig, error) {
	if strings.TrimSpace(input.SessionEndpoint) == "" {
		return uploadConfig{}, ConfigError{Reason: "session endpoint should not be empty"}
	}
	if input.TotalSize <= 0 {
		return uploadConfig{}, ConfigError{Reason: "total size should be greater than 0"}
	}
	if input.FilePath != "" && input.URL != "" {
		return uploadConfig{}, ConfigError{Reason: "both a file path and a URL are set, provide exactly one source"}
	}
	if input.FilePath == "" && input.URL == "" {
		return uploadConfig{}, ConfigError{Reason: "no source is set, provide a file path or a URL"}
	}

	chunkSize := input.ChunkSize
	if chunkSize == 0 {
		chunkSize = chunkuploader.DefaultChunkSizeBytes
	}
	if chunkSize < 0 {
		return uploadConfig{}, ConfigError{Reason: "chunk size should be greater than 0"}
	}
	if chunkSize%chunkuploader.ChunkSizeGranularityBytes != 0 {
		u.logger.Warnf("Chunk size %d is not a multiple of %d bytes, some upload servers reject such ranges", chunkSize, chunkuploader.ChunkSizeGranularityBytes)
	}

	if input.SpoolToDisk && input.FilePath != "" {
		u.logger.Warnf("Spooling only applies to URL sources, ignoring it")
	}

	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	return uploadConfig{
		FilePath:        input.FilePath,
		URL:             input.URL,
		SpoolToDisk:     input.SpoolToDisk,
		SessionEndpoint: input.SessionEndpoint,
		TotalSize:       input.TotalSize,
		AccessToken:     input.AccessToken,
		Metadata:        metadata,
		ChunkSize:       chunkSize,
	}, nil
}

// ConfigError means the upload inputs are missing or contradictory. It is
// raised before any network or disk access happens.
type ConfigError struct {
	Reason string
}

func (e ConfigError) Error() string {
	return e.Reason
}
