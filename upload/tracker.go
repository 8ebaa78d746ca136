package upload

import (
	"time"

	"github.com/bitrise-io/go-resumable/upload/network/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

type stepTracker struct {
	tracker analytics.Tracker
	logger  log.Logger
}

func newStepTracker(stepId string, envRepo env.Repository, logger log.Logger) stepTracker {
	p := analytics.Properties{
		"step_id":     stepId,
		"build_slug":  envRepo.Get("BITRISE_BUILD_SLUG"),
		"app_slug":    envRepo.Get("BITRISE_APP_SLUG"),
		"workflow":    envRepo.Get("BITRISE_TRIGGERED_WORKFLOW_ID"),
		"is_pr_build": envRepo.Get("IS_PR") == "true",
	}
	return stepTracker{
		tracker: analytics.NewDefaultTracker(logger, envRepo, p),
		logger:  logger,
	}
}

func (t *stepTracker) logSessionOpened(negotiationTime time.Duration) {
	properties := analytics.Properties{
		"negotiation_time_s": negotiationTime.Truncate(time.Second).Seconds(),
	}
	t.tracker.Enqueue("step_upload_session_opened", properties)
}

func (t *stepTracker) logUploadCompleted(uploadTime time.Duration, session *chunkuploader.Session, stats *chunkuploader.Stats) {
	properties := analytics.Properties{
		"upload_time_s":     uploadTime.Truncate(time.Second).Seconds(),
		"upload_size_bytes": session.BytesConfirmed,
		"chunk_count":       session.NumChunks(),
	}
	if stats != nil {
		properties["retry_count"] = stats.RetryCount()
	}
	t.tracker.Enqueue("step_upload_completed", properties)
}

func (t *stepTracker) logUploadFailed(phase string) {
	properties := analytics.Properties{
		"phase": phase,
	}
	t.tracker.Enqueue("step_upload_failed", properties)
}

func (t *stepTracker) wait() {
	t.tracker.Wait()
}
