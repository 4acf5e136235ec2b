package session

import (
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/domain/lock"
)

// CircuitState is whether a session's render circuit breaker is open.
type CircuitState string

const (
	CircuitClosed CircuitState = "closed"
	CircuitOpen   CircuitState = "open"
)

// RenderCircuit tracks consecutive render failures for the circuit
// breaker of spec §4.7.
type RenderCircuit struct {
	State               CircuitState
	ConsecutiveFailures int
	OpenedAt            domain.Timestamp
}

// DefaultAuditWindowDepth bounds the in-memory recent-audit slice kept
// on the session for fast introspection (the durable record lives in
// internal/audit; this is a cache, not the source of truth).
const DefaultAuditWindowDepth = 20

// State is the owned, single-writer session aggregate of spec §3.
// Exactly one agent mutates a given State at a time (spec §5).
type State struct {
	SessionID         domain.SessionID
	Document          *document.Document
	Baseline          *domain.Baseline
	History           *History
	RevisionLog       []uint64
	PendingCheckpoint *domain.Checkpoint
	Lock              lock.Info
	RenderCircuit     RenderCircuit
	LastRenderedBody  string
	AuditWindow       []domain.AuditEvent
	LastActivity      domain.Timestamp

	auditWindowDepth int
}

// New returns a fresh, unloaded State for sessionID.
func New(sessionID domain.SessionID, historyDepth int) *State {
	return &State{
		SessionID:        sessionID,
		History:          NewHistory(historyDepth),
		Lock:             lock.NewUnlocked(),
		RenderCircuit:    RenderCircuit{State: CircuitClosed},
		LastActivity:     domain.Now(),
		auditWindowDepth: DefaultAuditWindowDepth,
	}
}

// IsLoaded reports whether a document has been loaded into the session.
func (s *State) IsLoaded() bool { return s.Document != nil }

// Touch updates LastActivity to now, for idle-reclaim accounting.
func (s *State) Touch() { s.LastActivity = domain.Now() }

// NextRevision returns the next monotonic revision number for this
// session. Revision is monotonic over the command history, not over
// document content (spec §4.4): undo/redo consume numbers too.
func (s *State) NextRevision() uint64 {
	if len(s.RevisionLog) == 0 {
		return 1
	}
	return s.RevisionLog[len(s.RevisionLog)-1] + 1
}

// RecordRevision appends revision to the log.
func (s *State) RecordRevision(revision uint64) {
	s.RevisionLog = append(s.RevisionLog, revision)
}

// RecordAudit appends an event to the bounded in-memory audit window.
func (s *State) RecordAudit(evt domain.AuditEvent) {
	depth := s.auditWindowDepth
	if depth <= 0 {
		depth = DefaultAuditWindowDepth
	}
	s.AuditWindow = append(s.AuditWindow, evt)
	if len(s.AuditWindow) > depth {
		s.AuditWindow = s.AuditWindow[len(s.AuditWindow)-depth:]
	}
}

// RecordFailure increments the circuit breaker's consecutive-failure
// count, opening the circuit once threshold is reached (spec §4.7).
func (s *State) RecordFailure(threshold int) (openedNow bool) {
	s.RenderCircuit.ConsecutiveFailures++
	if s.RenderCircuit.State == CircuitClosed && s.RenderCircuit.ConsecutiveFailures >= threshold {
		s.RenderCircuit.State = CircuitOpen
		s.RenderCircuit.OpenedAt = domain.Now()
		return true
	}
	return false
}

// RecordSuccess resets the circuit breaker's failure count and reports
// whether the circuit was open before this call (i.e. recovery just
// happened and degraded_mode_recovered should be emitted).
func (s *State) RecordSuccess() (recovered bool) {
	wasOpen := s.RenderCircuit.State == CircuitOpen
	s.RenderCircuit = RenderCircuit{State: CircuitClosed}
	return wasOpen
}
