// Package faultserver is a test HTTP server that serves one synthetic
// resource and synthesizes network failures on demand: premature
// connection closes, 5xx bursts, fixed error statuses, mid-fetch entity
// tag flips, and corrupted checksum advertisements. It backs both the
// engine tests and the stress tool's embedded target.
package faultserver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ChecksumHeader must match what the client adapter parses
const ChecksumHeader = "X-Checksum-Sha256"

// Script describes the failures to synthesize, in the order requests
// arrive.
type Script struct {
	// Size is the resource length in bytes
	Size int64

	// Seed makes the content deterministic and repeatable
	Seed int64

	// TruncateAt lists absolute byte positions; request k is cut by
	// closing the connection once the response body reaches
	// TruncateAt[k]. Requests beyond the list run to completion.
	TruncateAt []int64

	// TruncateEvery, when positive, cuts every request after serving at
	// most this many body bytes (until the resource is exhausted).
	// Ignored when TruncateAt applies to the request.
	TruncateEvery int64

	// FailFirst answers the first N requests with 503
	FailFirst int

	// FailEvery, when positive, answers every Nth request (after the
	// FailFirst burst) with 503
	FailEvery int

	// Status forces a fixed status for all requests when non-zero
	Status int

	// FlipETagAfter, when positive, serves a different entity tag from
	// request N on (0-based), simulating the resource changing mid-fetch
	FlipETagAfter int

	// CorruptChecksum advertises a checksum that does not match the
	// streamed content
	CorruptChecksum bool
}

// Server serves the scripted resource on any path
type Server struct {
	script  Script
	content []byte
	etag    string
	altETag string
	sum     string
	logger  *zap.Logger

	mu       sync.Mutex
	requests int
}

// New creates a fault server for the given script
func New(script Script, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	content := make([]byte, script.Size)
	rng := rand.New(rand.NewSource(script.Seed))
	rng.Read(content)

	digest := sha256.Sum256(content)
	sum := hex.EncodeToString(digest[:])
	if script.CorruptChecksum {
		sum = strings.Repeat("0", 64)
	}

	return &Server{
		script:  script,
		content: content,
		etag:    fmt.Sprintf(`"res-%d-%d"`, script.Seed, script.Size),
		altETag: fmt.Sprintf(`"res-%d-%d-v2"`, script.Seed, script.Size),
		sum:     sum,
		logger:  logger,
	}
}

// Content returns the full synthetic resource, for byte-for-byte
// verification by callers.
func (s *Server) Content() []byte {
	return s.content
}

// Checksum returns the hex SHA-256 of the real content
func (s *Server) Checksum() string {
	digest := sha256.Sum256(s.content)
	return hex.EncodeToString(digest[:])
}

// Requests returns the number of requests received so far
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	seq := s.requests
	s.requests++
	s.mu.Unlock()

	if s.script.Status != 0 {
		http.Error(w, http.StatusText(s.script.Status), s.script.Status)
		return
	}
	if seq < s.script.FailFirst {
		http.Error(w, "synthetic failure", http.StatusServiceUnavailable)
		return
	}
	if s.script.FailEvery > 0 {
		if k := seq - s.script.FailFirst; k > 0 && k%s.script.FailEvery == 0 {
			http.Error(w, "synthetic failure", http.StatusServiceUnavailable)
			return
		}
	}

	offset := parseRangeStart(r.Header.Get("Range"))
	if offset < 0 || offset > int64(len(s.content)) {
		http.Error(w, "invalid range", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	etag := s.etag
	if s.script.FlipETagAfter > 0 && seq >= s.script.FlipETagAfter {
		etag = s.altETag
	}

	remaining := int64(len(s.content)) - offset
	cut := s.cutPoint(seq, offset)

	h := w.Header()
	h.Set("ETag", etag)
	h.Set(ChecksumHeader, s.sum)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(remaining, 10))
	if offset > 0 {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d",
			offset, int64(len(s.content))-1, len(s.content)))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	end := int64(len(s.content))
	truncated := cut >= 0 && cut < end
	if truncated {
		end = cut
	}
	if end > offset {
		w.Write(s.content[offset:end])
	}
	if truncated {
		// Flush so the bytes before the cut actually reach the peer;
		// the panic below discards anything still buffered.
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		s.logger.Debug("truncating response",
			zap.Int("request", seq),
			zap.Int64("offset", offset),
			zap.Int64("cut", end))
		// Kill the connection without writing the declared remainder.
		panic(http.ErrAbortHandler)
	}
}

// cutPoint returns the absolute byte position at which request seq is
// cut, or -1 for no truncation.
func (s *Server) cutPoint(seq int, offset int64) int64 {
	if seq < len(s.script.TruncateAt) {
		return s.script.TruncateAt[seq]
	}
	if s.script.TruncateEvery > 0 && offset+s.script.TruncateEvery < int64(len(s.content)) {
		return offset + s.script.TruncateEvery
	}
	return -1
}

// parseRangeStart extracts N from "bytes=N-". Returns 0 for no header,
// -1 for anything unsupported.
func parseRangeStart(value string) int64 {
	if value == "" {
		return 0
	}
	if !strings.HasPrefix(value, "bytes=") || !strings.HasSuffix(value, "-") {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(value, "bytes="), "-"), 10, 64)
	if err != nil {
		return -1
	}
	return n
}
