// Package domain provides the core value types shared across the session
// runtime: identifiers, timestamps, and the structured error envelope.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionID identifies one session, and one agent, for the lifetime of the
// process. It is either derived deterministically from a workspace path
// (see internal/registry) or supplied directly by a caller.
type SessionID string

// String implements fmt.Stringer.
func (id SessionID) String() string { return string(id) }

// IsZero reports whether the id is unset.
func (id SessionID) IsZero() bool { return id == "" }

// CorrelationID threads a caller-initiated workflow across commands,
// signals, and audit events.
type CorrelationID string

// NewCorrelationID generates a random correlation id.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

// Token is an opaque unguessable value, used for lock tokens and render
// job ids.
type Token string

// NewToken generates a cryptographically random opaque token.
func NewToken() Token {
	return Token(uuid.NewString())
}

// Timestamp wraps time.Time with UTC normalization, matching the rest of the
// domain's timestamp fields.
type Timestamp struct {
	time.Time
}

// Now returns the current UTC timestamp.
func Now() Timestamp { return Timestamp{time.Now().UTC()} }

// ZeroTime returns the zero-value timestamp.
func ZeroTime() Timestamp { return Timestamp{} }

// TimestampFrom wraps an existing time.Time, normalizing to UTC.
func TimestampFrom(t time.Time) Timestamp { return Timestamp{t.UTC()} }

// IsZero reports whether the timestamp was never set.
func (t Timestamp) IsZero() bool { return t.Time.IsZero() }
