package chunkuploader

import (
	"sync"
	"time"
)

// Stats tracks upload performance metrics for reporting.
type Stats struct {
	sum            time.Duration
	finishedChunks int64
	bytesAccepted  int64
	retries        int64
	mu             sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records an accepted chunk upload.
func (s *Stats) Update(d time.Duration, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.finishedChunks++
	s.bytesAccepted += size
}

// RecordRetry counts one failed attempt that is going to be retried.
func (s *Stats) RecordRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
}

// Average returns the average upload duration for accepted chunks.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedChunks == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedChunks)
}

// FinishedCount returns the number of accepted chunk uploads.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedChunks
}

// BytesAccepted returns the number of bytes the server has accepted.
func (s *Stats) BytesAccepted() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesAccepted
}

// RetryCount returns the number of retried attempts across all chunks.
func (s *Stats) RetryCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// TotalDuration returns the sum of all upload durations.
func (s *Stats) TotalDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sum
}
