package port

import (
	"context"
	"io"
)

// ResponseInfo carries the status and integrity metadata of one response.
type ResponseInfo struct {
	// StatusCode is the HTTP status of the response
	StatusCode int

	// Length is the declared content length of the full resource in
	// bytes, -1 if not declared. For range responses this is the total
	// resource length, not the length of the returned range.
	Length int64

	// ETag is the entity tag of the resource, empty if not supplied
	ETag string

	// Checksum is the declared SHA-256 of the full content as lowercase
	// hex, empty if not supplied
	Checksum string
}

// Client issues HTTP requests for the fetch engine. Implementations own
// all transport concerns (connection pooling, TLS, header serialization);
// the engine only decides when to issue a request and at which offset.
type Client interface {
	// Fetch issues a single GET for path. When offset is zero the
	// request carries no Range header (some servers only emit integrity
	// headers on full requests); otherwise it requests bytes from
	// offset to the end of the resource.
	//
	// The returned body is a pull stream: Read blocks until bytes are
	// available, returns io.EOF at end of response, and honors ctx
	// cancellation. The caller must close it.
	Fetch(ctx context.Context, path string, offset int64) (*ResponseInfo, io.ReadCloser, error)
}
