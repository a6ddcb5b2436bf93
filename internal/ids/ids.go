// Package ids generates the identifiers used across the service: UUIDs for
// persisted entities (users, vehicles, role assignments) and ULIDs where
// lexicographic ordering matters (request ids).
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a UUIDv4 string for entity primary keys.
func New() string {
	return uuid.NewString()
}

// NewRequestID returns a lexicographically sortable identifier for request
// correlation.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
