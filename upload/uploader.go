// Package upload drives a resumable, chunked upload from a byte source to a
// session-based upload endpoint: it opens the session, streams the source
// through the chunk assembler, and sends one chunk at a time until the server
// signals completion.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bitrise-io/go-resumable/upload/network"
	"github.com/bitrise-io/go-resumable/upload/network/chunkuploader"
	"github.com/bitrise-io/go-resumable/upload/source"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/filedownloader"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"
)

// Uploader ...
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*chunkuploader.Result, error)
}

type uploader struct {
	envRepo      env.Repository
	logger       log.Logger
	fileManager  fileutil.FileManager
	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier
	opener       network.SessionOpener
	sender       chunkuploader.Sender
	stats        *chunkuploader.Stats
}

// NewUploader creates a new uploader instance. `opener` and `sender` can be nil, unless you want to provide custom implementations.
func NewUploader(
	envRepo env.Repository,
	logger log.Logger,
	fileManager fileutil.FileManager,
	pathProvider pathutil.PathProvider,
	pathModifier pathutil.PathModifier,
	opener network.SessionOpener,
	sender chunkuploader.Sender,
) *uploader {
	var openerImpl network.SessionOpener = opener
	if opener == nil {
		openerImpl = network.DefaultSessionOpener{}
	}

	var stats *chunkuploader.Stats
	var senderImpl chunkuploader.Sender = sender
	if sender == nil {
		chunkUploader := chunkuploader.New(chunkuploader.DefaultConfig(), logger)
		senderImpl = chunkUploader
		stats = chunkUploader.Stats()
	}

	return &uploader{
		envRepo:      envRepo,
		logger:       logger,
		fileManager:  fileManager,
		pathProvider: pathProvider,
		pathModifier: pathModifier,
		opener:       openerImpl,
		sender:       senderImpl,
		stats:        stats,
	}
}

// Upload ...
func (u *uploader) Upload(ctx context.Context, input UploadInput) (*chunkuploader.Result, error) {
	u.logger.EnableDebugLog(input.Verbose)
	u.logger.TDebugf("Upload start")
	defer func() {
		u.logger.TDebugf("Upload done")
	}()

	config, err := u.createConfig(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inputs: %w", err)
	}
	u.logger.TDebugf("Config created")

	tracker := newStepTracker(input.StepId, u.envRepo, u.logger)
	defer tracker.wait()
	u.logger.TDebugf("Tracker created")

	src := u.createSource(config)

	u.logger.Println()
	u.logger.Infof("Opening upload session...")
	negotiationStartTime := time.Now()
	sessionURL, err := u.opener.OpenSession(ctx, network.SessionParams{
		Endpoint:    config.SessionEndpoint,
		Metadata:    config.Metadata,
		AccessToken: config.AccessToken,
	}, u.logger)
	if err != nil {
		tracker.logUploadFailed("negotiation")
		return nil, fmt.Errorf("failed to open upload session: %w", err)
	}
	negotiationTime := time.Since(negotiationStartTime)
	tracker.logSessionOpened(negotiationTime)
	u.logger.Donef("Session opened in %s", negotiationTime.Round(time.Millisecond))
	u.logger.Debugf("Session URL: %s", sessionURL)
	u.logger.TDebugf("Session opened")

	session := chunkuploader.NewSession(sessionURL, config.TotalSize, config.ChunkSize)
	u.logger.Println()
	u.logger.Infof("Uploading %s in %d chunks...",
		units.HumanSizeWithPrecision(float64(session.TotalSize), 3),
		session.NumChunks())

	uploadStartTime := time.Now()
	result, err := u.uploadChunks(ctx, session, src)
	if err != nil {
		tracker.logUploadFailed("upload")
		return nil, err
	}
	uploadTime := time.Since(uploadStartTime)
	tracker.logUploadCompleted(uploadTime, session, u.stats)
	u.logger.Donef("Uploaded %s in %s",
		units.HumanSizeWithPrecision(float64(session.BytesConfirmed), 3),
		uploadTime.Round(time.Second))
	u.logger.TDebugf("Upload finished")

	return result, nil
}

func (u *uploader) createSource(config uploadConfig) source.Source {
	if config.FilePath != "" {
		fileSource := source.NewFileSource(config.FilePath, u.fileManager, u.pathModifier)
		if size, err := fileSource.Size(); err == nil && size != config.TotalSize {
			u.logger.Warnf("File is %d bytes but the session declares %d bytes, the server will reject the mismatch", size, config.TotalSize)
		}
		return fileSource
	}

	if config.SpoolToDisk {
		return source.NewSpooledURLSource(config.URL, http.DefaultClient, u.fileManager, u.pathProvider, u.logger)
	}

	return source.NewURLSource(config.URL, filedownloader.NewDownloader(u.logger))
}

// uploadChunks runs the sequential chunk pipeline: pull the next chunk from
// the assembler, send it, repeat until the server reports completion. The
// source is only read between chunk uploads, never while one is in flight.
func (u *uploader) uploadChunks(ctx context.Context, session *chunkuploader.Session, src source.Source) (*chunkuploader.Result, error) {
	stream, err := src.Open(ctx)
	if err != nil {
		return nil, SourceError{Err: fmt.Errorf("failed to open source: %w", err)}
	}
	defer func(stream io.ReadCloser) {
		if err := stream.Close(); err != nil {
			u.logger.Printf(err.Error())
		}
	}(stream)

	assembler := chunkuploader.NewAssembler(stream, session.ChunkSize)

	for {
		chunk, err := assembler.Next()
		if errors.Is(err, io.EOF) {
			// The final chunk got a 308 instead of a 200: the server expects
			// bytes the source doesn't hold.
			session.State = chunkuploader.StateFailed
			return nil, SourceError{Err: fmt.Errorf("source ended after %d bytes, the server expects %d bytes in total", session.BytesConfirmed, session.TotalSize)}
		}
		if err != nil {
			session.State = chunkuploader.StateFailed
			return nil, SourceError{Err: fmt.Errorf("failed to read source: %w", err)}
		}

		rangeEnd := session.BytesConfirmed + int64(len(chunk))
		if rangeEnd > session.TotalSize {
			session.State = chunkuploader.StateFailed
			return nil, SourceError{Err: fmt.Errorf("source holds more than the declared %d bytes", session.TotalSize)}
		}

		transition, err := u.sender.UploadChunk(ctx, session, chunk, rangeEnd == session.TotalSize)
		if err != nil {
			return nil, fmt.Errorf("chunk upload failed: %w", err)
		}
		if transition.Done {
			return transition.Result, nil
		}
	}
}

// SourceError means the byte source failed or its content is inconsistent
// with the declared total size. Source reads are never retried, the pipeline
// stops at the first one.
type SourceError struct {
	Err error
}

func (e SourceError) Error() string {
	return e.Err.Error()
}

func (e SourceError) Unwrap() error {
	return e.Err
}
