// Package uuid provides UUID functionality with a focus on UUIDv7
// (time-ordered UUIDs). It wraps github.com/google/uuid and sets version 7
// as the default so identifiers sort by creation time.
package uuid

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// UUID represents a UUID, aliased from github.com/google/uuid.UUID
type UUID = uuid.UUID

// New returns a new random UUIDv7. Panics if UUID generation fails.
func New() UUID {
	uuidv7, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return uuidv7
}

// NewRandom returns a new random UUIDv7 and any error encountered during generation.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// Parse parses a UUID string into a UUID value. Returns an error if the string is not a valid UUID.
func Parse(s string) (UUID, error) {
	return uuid.Parse(s)
}

// MustParse parses a UUID string and panics if the string is not a valid UUID.
func MustParse(s string) UUID {
	return uuid.MustParse(s)
}

// GetTimestampFromUUID extracts the timestamp from a UUIDv7 and returns it as
// a time.Time. The timestamp occupies the top 48 bits of the UUID.
func GetTimestampFromUUID(u UUID) time.Time {
	tsMillis := binary.BigEndian.Uint64(u[0:8]) >> 16
	if tsMillis > uint64(1<<63-1) {
		return time.UnixMilli(1<<63 - 1)
	}
	return time.UnixMilli(int64(tsMillis))
}

// Nil is the zero UUID value.
var Nil = uuid.Nil
