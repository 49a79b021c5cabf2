package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// integrityTracker accumulates a rolling SHA-256 and byte count over all
// bytes delivered downstream. Chunks are fed exactly once, in delivery
// order; retries only ever re-request byte ranges that were never
// delivered, so the hash state is never rewound.
type integrityTracker struct {
	h         hash.Hash
	bytes     int64
	finalized bool
	digest    string
}

func newIntegrityTracker() *integrityTracker {
	return &integrityTracker{h: sha256.New()}
}

// Update feeds one delivered chunk into the hash state
func (t *integrityTracker) Update(p []byte) {
	t.h.Write(p)
	t.bytes += int64(len(p))
}

// Bytes returns the total number of bytes delivered so far
func (t *integrityTracker) Bytes() int64 {
	return t.bytes
}

// Finalize produces the hex digest of all delivered bytes. The first
// call seals the tracker; later calls return the same digest.
func (t *integrityTracker) Finalize() string {
	if !t.finalized {
		t.digest = hex.EncodeToString(t.h.Sum(nil))
		t.finalized = true
	}
	return t.digest
}
