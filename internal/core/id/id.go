// Package id provides identifiers for platform entities and messages.
//
// Entities use snowflake ids (int64, node-scoped, time-ordered). Messages and outbox
// records use UUIDv7.
package id

import (
	"github.com/google/uuid"
)

// ID identifies envelopes and outbox records.
type ID = uuid.UUID

// New returns a UUIDv7, so ids sort by creation time. V4 is used only if
// the v7 generator fails to read randomness.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse accepts any RFC 4122 textual form.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsNil reports whether v is the zero UUID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
