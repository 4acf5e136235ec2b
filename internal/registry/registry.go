// Package registry implements session lifecycle management: deterministic
// id-for-path derivation, lazy session start, the bidirectional path
// index, and idle reclaim, per spec §4.6. Grounded on the capability/
// claim bookkeeping in pkg/orchestration/orchestrator.go — generalized
// from "claim a task with a lease" to "lazily start and track a session",
// and RunLeaseWatcher's periodic-ticker shape is reused directly for
// reclaim_idle's "also run on a configurable interval".
package registry

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sync"
	"time"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/session"
)

// idKey is the keyed-hash key used by SessionIDForPath. It need not be
// secret — the requirement is determinism across restarts for the same
// canonical path, not unguessability.
var idKey = []byte("docflow-session-id-v1")

// SessionIDForPath derives a deterministic session id for a workspace
// path: the same canonicalization of the same path always yields the
// same id across restarts (spec §4.6).
func SessionIDForPath(path string) domain.SessionID {
	canonical := filepath.Clean(path)
	mac := hmac.New(sha256.New, idKey)
	mac.Write([]byte(canonical))
	return domain.SessionID(hex.EncodeToString(mac.Sum(nil)))
}

// entry pairs a session's state with its bookkeeping for reclaim.
type entry struct {
	state *session.State
	path  string
}

// Registry tracks every live session, keyed by id, with a bidirectional
// id<->path index.
type Registry struct {
	mu           sync.Mutex
	sessions     map[domain.SessionID]*entry
	pathToID     map[string]domain.SessionID
	historyDepth int
}

// New returns an empty Registry. historyDepth configures new sessions'
// undo/redo ring depth (0 uses session.DefaultHistoryDepth).
func New(historyDepth int) *Registry {
	return &Registry{
		sessions:     make(map[domain.SessionID]*entry),
		pathToID:     make(map[string]domain.SessionID),
		historyDepth: historyDepth,
	}
}

// EnsureSession returns the existing session.State for id, or starts a
// new one. A second call with the same id returns the same handle
// (spec §4.6).
func (r *Registry) EnsureSession(id domain.SessionID) *session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok {
		return e.state
	}
	st := session.New(id, r.historyDepth)
	r.sessions[id] = &entry{state: st}
	return st
}

// EnsureSessionByPath derives the deterministic id for path and ensures
// a session exists for it, recording the path index.
func (r *Registry) EnsureSessionByPath(path string) (domain.SessionID, *session.State) {
	id := SessionIDForPath(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		e = &entry{state: session.New(id, r.historyDepth), path: path}
		r.sessions[id] = e
	}
	if e.path == "" {
		e.path = path
	}
	r.pathToID[path] = id
	return id, e.state
}

// Lookup returns the session for id, if live.
func (r *Registry) Lookup(id domain.SessionID) (*session.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.state, true
}

// PathFor returns the path a session was loaded from, if known.
func (r *Registry) PathFor(id domain.SessionID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.path == "" {
		return "", false
	}
	return e.path, true
}

// IDForPath returns the session id already indexed for path, if any.
func (r *Registry) IDForPath(path string) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.pathToID[path]
	return id, ok
}

// ReclaimIdle removes sessions whose last activity is older than
// maxIdle, returning the removed ids (spec §4.6).
func (r *Registry) ReclaimIdle(maxIdle time.Duration) []domain.SessionID {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []domain.SessionID
	for id, e := range r.sessions {
		if e.state.LastActivity.Time.Before(cutoff) {
			removed = append(removed, id)
			delete(r.sessions, id)
			if e.path != "" {
				delete(r.pathToID, e.path)
			}
		}
	}
	return removed
}

// RunIdleReclaimer starts a background goroutine that calls ReclaimIdle
// on a fixed interval until ctx is canceled, mirroring the teacher's
// RunLeaseWatcher ticker loop. onReclaim, if non-nil, is invoked with
// each batch of reclaimed ids (for signaling/audit hookup).
func (r *Registry) RunIdleReclaimer(ctx context.Context, interval, maxIdle time.Duration, onReclaim func([]domain.SessionID)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.ReclaimIdle(maxIdle)
			if len(removed) > 0 && onReclaim != nil {
				onReclaim(removed)
			}
		}
	}
}

// Count returns the number of live sessions, for observability.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
