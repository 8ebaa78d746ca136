// Package source provides the byte sources a resumable upload can stream
// from: a local file or a remote URL. Each source produces an ordered, finite
// byte stream that is read exactly once.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/filedownloader"
	"github.com/bitrise-io/go-utils/v2/fileutil"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/melbahja/got"
)

const (
	fileScheme = "file://"

	numSpoolRetries = 2
	spoolRetryWait  = 5 * time.Second
)

// Source produces the bytes to upload.
type Source interface {
	// Open returns a reader for the full content. The stream is not
	// restartable. The caller owns closing it.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sizer is implemented by sources that know their content size up front.
type Sizer interface {
	Size() (int64, error)
}

// FileSource reads the content from local storage. The path may use the
// file:// scheme and may be a glob pattern, in which case it must match
// exactly one file.
type FileSource struct {
	path         string
	fileManager  fileutil.FileManager
	pathModifier pathutil.PathModifier
}

// NewFileSource ...
func NewFileSource(path string, fileManager fileutil.FileManager, pathModifier pathutil.PathModifier) FileSource {
	return FileSource{
		path:         path,
		fileManager:  fileManager,
		pathModifier: pathModifier,
	}
}

// Open ...
func (s FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	path, err := s.resolvePath()
	if err != nil {
		return nil, err
	}

	return s.fileManager.Open(path)
}

// Size returns the size of the resolved file.
func (s FileSource) Size() (int64, error) {
	path, err := s.resolvePath()
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (s FileSource) resolvePath() (string, error) {
	pth := strings.TrimPrefix(s.path, fileScheme)

	if !strings.Contains(pth, "*") {
		return s.pathModifier.AbsPath(pth)
	}

	base, pattern := doublestar.SplitPattern(pth)
	absBase, err := s.pathModifier.AbsPath(base) // resolves ~/ and expands any envs
	if err != nil {
		return "", err
	}
	matches, err := doublestar.Glob(os.DirFS(absBase), pattern, doublestar.WithNoFollow())
	if err != nil {
		return "", fmt.Errorf("error in path pattern '%s': %w", s.path, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no match for path pattern: %s", s.path)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("path pattern %s matches %d files, the upload needs exactly one", s.path, len(matches))
	}

	return filepath.Join(absBase, matches[0]), nil
}

// URLSource streams the content of a remote URL as it arrives.
type URLSource struct {
	url        string
	downloader filedownloader.Downloader
}

// NewURLSource ...
func NewURLSource(url string, downloader filedownloader.Downloader) URLSource {
	return URLSource{
		url:        url,
		downloader: downloader,
	}
}

// Open issues the GET request and hands over the response body stream.
func (s URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.downloader.Get(ctx, s.url)
}

// SpooledURLSource downloads the remote content to a temporary file before
// the upload starts, then streams it from disk. Slower to start than
// URLSource, but the download can be retried as a whole while source reads
// during the upload never are.
type SpooledURLSource struct {
	url          string
	httpClient   *http.Client
	fileManager  fileutil.FileManager
	pathProvider pathutil.PathProvider
	logger       log.Logger
}

// NewSpooledURLSource ...
func NewSpooledURLSource(url string, httpClient *http.Client, fileManager fileutil.FileManager, pathProvider pathutil.PathProvider, logger log.Logger) SpooledURLSource {
	return SpooledURLSource{
		url:          url,
		httpClient:   httpClient,
		fileManager:  fileManager,
		pathProvider: pathProvider,
		logger:       logger,
	}
}

// Open ...
func (s SpooledURLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	tmpDir, err := s.pathProvider.CreateTempDir("upload-spool")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	localPath := filepath.Join(tmpDir, "source")

	err = retry.Times(numSpoolRetries).Wait(spoolRetryWait).Try(func(attempt uint) error {
		if attempt > 0 {
			s.logger.Warnf("Retrying spool download (attempt %d)", attempt+1)
		}
		return s.downloadFile(ctx, localPath, s.url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", s.url, err)
	}

	return s.fileManager.Open(localPath)
}

func (s SpooledURLSource) downloadFile(ctx context.Context, dest string, url string) error {
	downloader := got.New()
	downloader.Client = s.httpClient

	return downloader.Do(got.NewDownload(ctx, url, dest))
}
