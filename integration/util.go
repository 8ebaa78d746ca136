//go:build integration
// +build integration

package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/bitrise-io/go-utils/v2/log"
)

var logger = log.NewLogger()

func checksumOf(bytes []byte) string {
	hash := sha256.New()
	hash.Write(bytes)
	return hex.EncodeToString(hash.Sum(nil))
}

// resumableServer is an in-process implementation of the session upload
// protocol: POST opens a session and returns its URL in the Location header,
// PUTs against the session URL append sequential byte ranges, answered with
// 308 until the declared total is reached and a final 200 with a JSON body.
type resumableServer struct {
	server *httptest.Server

	mu        sync.Mutex
	content   []byte
	confirmed int64
	totalSize int64
	authToken string

	// failEveryNth makes every nth PUT fail with a 500 to exercise the
	// client's retry loop. 0 disables failures.
	failEveryNth int
	putCount     int
}

func newResumableServer(totalSize int64, authToken string, failEveryNth int) *resumableServer {
	rs := &resumableServer{
		totalSize:    totalSize,
		authToken:    authToken,
		failEveryNth: failEveryNth,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/session", rs.handleSessionOpen)
	mux.HandleFunc("/upload", rs.handleChunk)
	rs.server = httptest.NewServer(mux)
	return rs
}

func (rs *resumableServer) sessionEndpoint() string {
	return rs.server.URL + "/session"
}

func (rs *resumableServer) close() {
	rs.server.Close()
}

func (rs *resumableServer) receivedContent() []byte {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]byte(nil), rs.content...)
}

func (rs *resumableServer) handleSessionOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if rs.authToken != "" && r.Header.Get("Authorization") != "Bearer "+rs.authToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid credentials"}`))
		return
	}
	w.Header().Set("Location", rs.server.URL+"/upload")
	w.WriteHeader(http.StatusOK)
}

func (rs *resumableServer) handleChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.putCount++
	if rs.failEveryNth > 0 && rs.putCount%rs.failEveryNth == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("injected failure"))
		return
	}

	start, end, total, err := parseContentRange(r.Header.Get("Content-Range"))
	if err != nil || start != rs.confirmed || total != rs.totalSize || end-start+1 != int64(len(body)) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"error": "bad range %q at offset %d"}`, r.Header.Get("Content-Range"), rs.confirmed)))
		return
	}

	rs.content = append(rs.content, body...)
	rs.confirmed += int64(len(body))

	if rs.confirmed == rs.totalSize {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"id": "upload-1", "size": %d, "checksum": "%s"}`, rs.confirmed, checksumOf(rs.content))))
		return
	}
	w.WriteHeader(http.StatusPermanentRedirect)
}

func parseContentRange(header string) (start, end, total int64, err error) {
	var rangePart string
	if !strings.HasPrefix(header, "bytes ") {
		return 0, 0, 0, fmt.Errorf("unexpected Content-Range format: %q", header)
	}
	rangePart = strings.TrimPrefix(header, "bytes ")

	slash := strings.Split(rangePart, "/")
	if len(slash) != 2 {
		return 0, 0, 0, fmt.Errorf("unexpected Content-Range format: %q", header)
	}
	dash := strings.Split(slash[0], "-")
	if len(dash) != 2 {
		return 0, 0, 0, fmt.Errorf("unexpected Content-Range format: %q", header)
	}

	if start, err = strconv.ParseInt(dash[0], 10, 64); err != nil {
		return 0, 0, 0, err
	}
	if end, err = strconv.ParseInt(dash[1], 10, 64); err != nil {
		return 0, 0, 0, err
	}
	if total, err = strconv.ParseInt(slash[1], 10, 64); err != nil {
		return 0, 0, 0, err
	}
	return start, end, total, nil
}

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
	var values []string
	for _, v := range repo.envVars {
		values = append(values, v)
	}
	return values
}
