package chunkuploader

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

const (
	// DefaultChunkSizeBytes is the chunk size used when the caller does not set one.
	DefaultChunkSizeBytes = 16 * 1024 * 1024

	// ChunkSizeGranularityBytes is the granularity chunk sizes should be a
	// multiple of. Upload servers commonly reject ranges that don't align to
	// 256 KiB.
	ChunkSizeGranularityBytes = 256 * 1024
)

// Config holds configuration for the chunk uploader.
type Config struct {
	// MaxRetryPerChunk is the maximum number of retry attempts per chunk.
	// A failing chunk is sent MaxRetryPerChunk+1 times in total.
	// Default: 3
	MaxRetryPerChunk int

	// RetryWaitTime is the wait between attempts for the same chunk.
	// Default: 1 second
	RetryWaitTime time.Duration

	// HTTPClient is the HTTP client to use for uploads.
	// If nil, a default optimized client will be created.
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetryPerChunk: 3,
		RetryWaitTime:    time.Second,
		HTTPClient:       nil, // Will be created by Uploader
	}
}

// DefaultHTTPClient creates an HTTP client optimized for chunk uploads.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout - individual chunk timeouts are handled via context
		Timeout: 0,
		// 308 is the protocol's resume signal, never follow it as a redirect
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: gzhttp.Transport(&http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		}),
	}
}

// OptimalChunkSizeBytes calculates a chunk size suited to the total upload size.
func OptimalChunkSizeBytes(totalSize int64) int {
	return int(optimalChunkSizeBytes(uint64(totalSize), 8*1024*1024, 100*1024*1024))
}

func optimalChunkSizeBytes(totalSize, min, max uint64) uint64 {
	cs := totalSize / 16

	if cs < min {
		cs = min
	}

	if max > 0 && cs > max {
		cs = max
	}

	// Align up so byte ranges stay multiples of the server granularity
	if rem := cs % ChunkSizeGranularityBytes; rem != 0 {
		cs += ChunkSizeGranularityBytes - rem
	}

	return cs
}
