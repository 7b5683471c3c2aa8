// Package id provides unique ID generation utilities.
//
// Two strategies are supported:
//   - UUID v4 for record identities (entities, relationships)
//   - ULID for request/trace ids (time-ordered, lexicographically sortable)
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUUID generates a new UUID v4 string.
func NewUUID() string {
	return uuid.NewString()
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID generates a new ULID string. Generation is monotonic within a
// process so ids produced in the same millisecond still sort correctly.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewRequestID generates an id for tagging one inbound request.
func NewRequestID() string {
	return NewULID()
}
