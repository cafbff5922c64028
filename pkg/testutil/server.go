package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// RequestRecord captures one request the artifact server saw.
type RequestRecord struct {
	Method string
	Path   string
	Range  string
}

// ArtifactServer serves byte blobs over HTTP with optional range support,
// fault injection and full request accounting, so engine tests can assert
// exactly which bytes were asked for.
type ArtifactServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	etags    map[string]string
	requests []RequestRecord

	// DisableRanges makes the server ignore Range headers and omit
	// Accept-Ranges, forcing whole-file fallback.
	DisableRanges bool

	// FailFirst maps a path to a number of requests answered with 500
	// before the server starts succeeding.
	FailFirst map[string]int

	// CorruptFirst maps a path to a number of GETs whose body has its
	// first byte flipped, producing a checksum mismatch.
	CorruptFirst map[string]int

	// ChunkDelay throttles body writes to 1KiB chunks with this delay in
	// between, giving cancellation tests a window to interrupt.
	ChunkDelay time.Duration
}

// NewArtifactServer starts a server over the given path->content map. It is
// shut down automatically when the test ends.
func NewArtifactServer(t *testing.T, files map[string][]byte) *ArtifactServer {
	t.Helper()
	s := &ArtifactServer{
		files:        make(map[string][]byte),
		etags:        make(map[string]string),
		FailFirst:    make(map[string]int),
		CorruptFirst: make(map[string]int),
	}
	for path, content := range files {
		s.Set(path, content)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Server.Close)
	return s
}

// Set installs or replaces a blob.
func (s *ArtifactServer) Set(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	s.etags[path] = fmt.Sprintf("%q", SHA1(content))
}

// Requests returns a copy of every request seen so far.
func (s *ArtifactServer) Requests() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestRecord, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns the number of requests for one path, any method.
func (s *ArtifactServer) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// TotalRequests returns the number of requests seen across all paths.
func (s *ArtifactServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// PathURL returns the absolute URL for a served path.
func (s *ArtifactServer) PathURL(path string) string {
	return s.Server.URL + path
}

func (s *ArtifactServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RequestRecord{
		Method: r.Method,
		Path:   r.URL.Path,
		Range:  r.Header.Get("Range"),
	})
	content, ok := s.files[r.URL.Path]
	etag := s.etags[r.URL.Path]
	failures := s.FailFirst[r.URL.Path]
	if failures > 0 {
		s.FailFirst[r.URL.Path] = failures - 1
	}
	corrupt := s.CorruptFirst[r.URL.Path]
	if corrupt > 0 && r.Method == http.MethodGet {
		s.CorruptFirst[r.URL.Path] = corrupt - 1
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if failures > 0 {
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	if corrupt > 0 && len(content) > 0 {
		flipped := make([]byte, len(content))
		copy(flipped, content)
		flipped[0] ^= 0xff
		content = flipped
	}

	w.Header().Set("ETag", etag)
	if !s.DisableRanges {
		w.Header().Set("Accept-Ranges", "bytes")
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" && !s.DisableRanges {
		start, end, ok := parseRange(rangeHeader, int64(len(content)))
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(content)))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(content)))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		s.writeBody(w, content[start:end+1])
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	s.writeBody(w, content)
}

func (s *ArtifactServer) writeBody(w http.ResponseWriter, content []byte) {
	if s.ChunkDelay <= 0 {
		_, _ = w.Write(content)
		return
	}
	flusher, _ := w.(http.Flusher)
	for len(content) > 0 {
		n := 1024
		if n > len(content) {
			n = len(content)
		}
		if _, err := w.Write(content[:n]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		content = content[n:]
		time.Sleep(s.ChunkDelay)
	}
}

// parseRange handles the single-range "bytes=a-b" and open-ended "bytes=a-"
// forms the engine emits.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start >= size {
		return 0, 0, false
	}
	if parts[1] == "" {
		return start, size - 1, true
	}
	end, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}
