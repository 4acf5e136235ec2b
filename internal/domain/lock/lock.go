// Package lock implements the per-session lock state machine of spec
// §4.6's transition table. Grounded on the claim/lease machinery in
// pkg/orchestration/orchestrator.go, generalized from "one lease per
// tool call" to "one owner lock per session" with a monotonic revision
// that survives forced takeovers.
package lock

import (
	"github.com/docflow/docflow/internal/domain"
)

// State is whether a session is currently locked.
type State string

const (
	Unlocked State = "unlocked"
	Locked   State = "locked"
)

// Info is the current lock state for one session.
type Info struct {
	State    State
	Owner    string
	Token    domain.Token
	Revision uint64
}

// NewUnlocked returns the initial, unlocked Info.
func NewUnlocked() Info {
	return Info{State: Unlocked}
}

// conflictError builds the {code: conflict} error the table requires,
// carrying whatever detail fields the transition specifies.
func conflictError(details map[string]any) error {
	e := domain.NewError(domain.ErrConflict, "lock conflict")
	for k, v := range details {
		e = e.WithDetail(k, v)
	}
	return e
}

// Acquire attempts to take or renew the lock for owner. If the session
// is already locked by the same owner, expectedToken must match the
// current token (rotating it on success); if locked by a different
// owner, it always fails with conflict.
func Acquire(cur Info, owner string, expectedToken *domain.Token) (Info, error) {
	if cur.State == Unlocked {
		return Info{State: Locked, Owner: owner, Token: domain.NewToken(), Revision: cur.Revision + 1}, nil
	}
	if cur.Owner != owner {
		return cur, conflictError(map[string]any{"owner": cur.Owner, "requested_owner": owner})
	}
	if expectedToken == nil || *expectedToken != cur.Token {
		return cur, conflictError(map[string]any{"expected_token": cur.Token})
	}
	return Info{State: Locked, Owner: owner, Token: domain.NewToken(), Revision: cur.Revision + 1}, nil
}

// Validate reports whether token is the current lock holder's token.
func Validate(cur Info, token domain.Token) error {
	if cur.State != Locked || cur.Token != token {
		return conflictError(map[string]any{"reason": "stale_token"})
	}
	return nil
}

// Release unlocks the session if token matches the current holder.
func Release(cur Info, token domain.Token) (Info, error) {
	if cur.State != Locked || cur.Token != token {
		return cur, conflictError(map[string]any{"reason": "stale_token"})
	}
	return Info{State: Unlocked, Revision: cur.Revision}, nil
}

// ForceTakeover unconditionally reassigns the lock to owner, rotating
// the token and bumping the revision, regardless of current holder.
// The caller is responsible for authorizing this action and for noting
// the previous owner in the emitted signal (spec: "emit lock_state with
// previous_owner=o").
func ForceTakeover(cur Info, owner, reason string) (next Info, previousOwner string) {
	prev := cur.Owner
	next = Info{State: Locked, Owner: owner, Token: domain.NewToken(), Revision: cur.Revision + 1}
	return next, prev
}
