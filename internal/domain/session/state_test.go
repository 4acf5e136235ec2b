package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/session"
)

func TestNextRevisionIsMonotonic(t *testing.T) {
	st := session.New(domain.SessionID("s1"), 10)

	require.Equal(t, uint64(1), st.NextRevision())
	st.RecordRevision(1)
	require.Equal(t, uint64(2), st.NextRevision())
	st.RecordRevision(2)
	require.Equal(t, uint64(3), st.NextRevision())
}

func TestRecordAuditBoundsWindow(t *testing.T) {
	st := session.New(domain.SessionID("s1"), 10)
	for i := 0; i < session.DefaultAuditWindowDepth+5; i++ {
		st.RecordAudit(domain.AuditEvent{})
	}
	require.Len(t, st.AuditWindow, session.DefaultAuditWindowDepth)
}

func TestRenderCircuitOpensAtThreshold(t *testing.T) {
	st := session.New(domain.SessionID("s1"), 10)

	require.False(t, st.RecordFailure(3))
	require.False(t, st.RecordFailure(3))
	require.True(t, st.RecordFailure(3))
	require.Equal(t, session.CircuitOpen, st.RenderCircuit.State)
}

func TestRecordSuccessReportsRecovery(t *testing.T) {
	st := session.New(domain.SessionID("s1"), 10)
	st.RecordFailure(1)
	require.Equal(t, session.CircuitOpen, st.RenderCircuit.State)

	recovered := st.RecordSuccess()
	require.True(t, recovered)
	require.Equal(t, session.CircuitClosed, st.RenderCircuit.State)

	recoveredAgain := st.RecordSuccess()
	require.False(t, recoveredAgain)
}
