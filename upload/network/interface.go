package network

import (
	"context"

	"github.com/bitrise-io/go-utils/v2/log"
)

// SessionOpener ...
type SessionOpener interface {
	OpenSession(context.Context, SessionParams, log.Logger) (string, error)
}

// DefaultSessionOpener ...
type DefaultSessionOpener struct{}

// OpenSession ...
func (o DefaultSessionOpener) OpenSession(ctx context.Context, params SessionParams, logger log.Logger) (string, error) {
	return OpenSession(ctx, params, logger)
}
