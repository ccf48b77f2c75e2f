package archive

import (
	"strings"

	"github.com/google/uuid"
)

const (
	keyPrefix = "pi:run:"

	// IndexKey is the sorted set of archived run IDs scored by archive time.
	IndexKey = "pi:runs"
)

// Key returns the Redis key of a run document.
//
// Example:
//
//	pi:run:5f0c6a8e-3c1e-4a53-9d55-1b7f8d7a0c11
func Key(runID uuid.UUID) string {
	return keyPrefix + runID.String()
}

// ParseKey extracts the run ID from a key produced by Key.
func ParseKey(key string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
