package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// SessionParams ...
type SessionParams struct {
	// Endpoint is the URL that accepts the session-open request.
	Endpoint string
	// Metadata is sent as the JSON body of the request. Nil is sent as an
	// empty object.
	Metadata map[string]interface{}
	// AccessToken is attached as a bearer credential when not empty.
	AccessToken stepconf.Secret
}

// SessionError is a non-2xx response to the session-open request.
type SessionError struct {
	Status int
	Body   string
}

func (e SessionError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// OpenSession negotiates a new upload session and returns the session URL
// chunks should be sent to. The session-open request is sent exactly once:
// a failure here aborts the upload before any source bytes are read.
func OpenSession(ctx context.Context, params SessionParams, logger log.Logger) (string, error) {
	if params.Endpoint == "" {
		return "", fmt.Errorf("session endpoint is empty")
	}

	retryableHTTPClient := retryhttp.NewClient(logger)
	retryableHTTPClient.CheckRetry = createNoRetryFunction(logger)
	client := newSessionClient(retryableHTTPClient, params.AccessToken, logger)

	logger.Debugf("Open upload session")
	return client.openSession(ctx, params.Endpoint, params.Metadata)
}

func createNoRetryFunction(logger log.Logger) func(context.Context, *http.Response, error) (bool, error) {
	return func(ctx context.Context, resp *http.Response, requestErr error) (bool, error) {
		if resp != nil {
			logger.Debugf("CheckRetry: session-open is one-shot, not retrying status %d", resp.StatusCode)
		}
		return false, requestErr
	}
}

type sessionClient struct {
	httpClient  *retryablehttp.Client
	accessToken stepconf.Secret
	logger      log.Logger
}

func newSessionClient(client *retryablehttp.Client, accessToken stepconf.Secret, logger log.Logger) sessionClient {
	return sessionClient{
		httpClient:  client,
		accessToken: accessToken,
		logger:      logger,
	}
}

func (c sessionClient) openSession(ctx context.Context, endpoint string, metadata map[string]interface{}) (string, error) {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", string(c.accessToken)))
	}
	req.Header.Set("Content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", unwrapError(resp)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("session response (HTTP %d) has no Location header", resp.StatusCode)
	}

	return sessionURL, nil
}

func unwrapError(resp *http.Response) error {
	errorResp, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return SessionError{Status: resp.StatusCode, Body: string(errorResp)}
}
