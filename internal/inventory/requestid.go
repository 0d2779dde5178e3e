package inventory

import (
	"github.com/google/uuid"
)

// RequestIDGenerator produces correlation ids for log lines of one request.
// Implemented by UUIDv7Generator (production) and testutil.FixedRequestIDs
// (tests).
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
