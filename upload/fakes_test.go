package upload

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-resumable/upload/network"
	"github.com/bitrise-io/go-resumable/upload/network/chunkuploader"
	"github.com/bitrise-io/go-utils/v2/log"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	value, ok := repo.envVars[key]
	if ok {
		return value
	} else {
		return ""
	}
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

type fakeSessionOpener struct {
	sessionURL string
	err        error
	calls      int
	gotParams  network.SessionParams
}

func (o *fakeSessionOpener) OpenSession(ctx context.Context, params network.SessionParams, logger log.Logger) (string, error) {
	o.calls++
	o.gotParams = params
	if o.err != nil {
		return "", o.err
	}
	return o.sessionURL, nil
}

// fakeSender acknowledges every chunk and reports completion once the
// session's declared total is reached, unless neverDone keeps it asking for
// more.
type fakeSender struct {
	chunks    [][]byte
	finals    []bool
	err       error
	result    *chunkuploader.Result
	neverDone bool
}

func (s *fakeSender) UploadChunk(ctx context.Context, session *chunkuploader.Session, chunk []byte, final bool) (chunkuploader.Transition, error) {
	if s.err != nil {
		session.State = chunkuploader.StateFailed
		return chunkuploader.Transition{}, s.err
	}

	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	s.finals = append(s.finals, final)

	session.BytesConfirmed += int64(len(chunk))
	if !s.neverDone && session.BytesConfirmed == session.TotalSize {
		session.State = chunkuploader.StateDone
		return chunkuploader.Transition{Done: true, Result: s.result}, nil
	}
	session.State = chunkuploader.StateStreaming
	return chunkuploader.Transition{}, nil
}
