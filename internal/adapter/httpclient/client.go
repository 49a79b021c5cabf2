package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/resumefetch/internal/port"
)

// ChecksumHeader is the response header carrying the hex SHA-256 of the
// full resource content.
const ChecksumHeader = "X-Checksum-Sha256"

// Config contains optional client configuration
type Config struct {
	BufferSizeMB          int           // Read/Write buffer size in MB (default: 1)
	ResponseHeaderTimeout time.Duration // default: 30s
	UserAgent             string
}

// Client implements port.Client over net/http. It owns all transport
// concerns; retry and resumption decisions stay in the fetch engine.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Ensure Client implements port.Client
var _ port.Client = (*Client)(nil)

// New creates a new HTTP fetch client
func New(cfg *Config) *Client {
	bufferSize := 1024 * 1024
	headerTimeout := 30 * time.Second
	userAgent := "resumefetch/1.0"
	if cfg != nil {
		if cfg.BufferSizeMB > 0 {
			bufferSize = cfg.BufferSizeMB * 1024 * 1024
		}
		if cfg.ResponseHeaderTimeout > 0 {
			headerTimeout = cfg.ResponseHeaderTimeout
		}
		if cfg.UserAgent != "" {
			userAgent = cfg.UserAgent
		}
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		WriteBufferSize: bufferSize,
		ReadBufferSize:  bufferSize,

		ForceAttemptHTTP2: true,

		// Binary payloads: compression only burns CPU
		DisableCompression: true,

		// Time to first header, not total transfer time
		ResponseHeaderTimeout: headerTimeout,
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		userAgent:  userAgent,
	}
}

// Fetch implements port.Client. The Range header is omitted at offset
// zero; some servers only emit integrity headers on full requests.
func (c *Client) Fetch(ctx context.Context, path string, offset int64) (*port.ResponseInfo, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	info := &port.ResponseInfo{
		StatusCode: resp.StatusCode,
		Length:     totalLength(resp),
		ETag:       resp.Header.Get("ETag"),
		Checksum:   strings.ToLower(resp.Header.Get(ChecksumHeader)),
	}
	return info, resp.Body, nil
}

// totalLength extracts the full resource length from a response: the
// Content-Range total for partial responses, Content-Length otherwise.
// Returns -1 when the server declared nothing usable.
func totalLength(resp *http.Response) int64 {
	if resp.StatusCode == http.StatusPartialContent {
		// Content-Range: bytes <start>-<end>/<total>
		cr := resp.Header.Get("Content-Range")
		idx := strings.LastIndex(cr, "/")
		if idx < 0 {
			return -1
		}
		total := strings.TrimSpace(cr[idx+1:])
		if total == "*" {
			return -1
		}
		n, err := strconv.ParseInt(total, 10, 64)
		if err != nil {
			return -1
		}
		return n
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	return -1
}
