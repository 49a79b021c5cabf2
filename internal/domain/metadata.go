package domain

// ResourceMetadata holds the integrity metadata captured from the first
// successful response of a fetch session. Once captured it is immutable:
// a later response whose entity tag differs means the underlying resource
// changed mid-fetch and the session must fail.
type ResourceMetadata struct {
	// Length is the declared content length in bytes, -1 if the server
	// did not declare one.
	Length int64

	// ETag is the entity tag identifying this version of the resource
	ETag string

	// Checksum is the declared SHA-256 of the full content as lowercase
	// hex, empty if the server did not supply one
	Checksum string
}

// LengthKnown returns true if the server declared a content length
func (m *ResourceMetadata) LengthKnown() bool {
	return m.Length >= 0
}

// Matches returns true if the other response's entity tag identifies the
// same resource version. An empty tag on either side is accepted; some
// servers only emit validators on full (non-range) responses.
func (m *ResourceMetadata) Matches(etag string) bool {
	if m.ETag == "" || etag == "" {
		return true
	}
	return m.ETag == etag
}
