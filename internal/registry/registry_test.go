package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/registry"
)

func TestSessionIDForPathIsDeterministic(t *testing.T) {
	id1 := registry.SessionIDForPath("/workspace/doc.md")
	id2 := registry.SessionIDForPath("/workspace/doc.md")
	require.Equal(t, id1, id2)

	id3 := registry.SessionIDForPath("/workspace/other.md")
	require.NotEqual(t, id1, id3)
}

func TestEnsureSessionByPathReturnsSameHandle(t *testing.T) {
	reg := registry.New(0)
	id1, st1 := reg.EnsureSessionByPath("/workspace/doc.md")
	id2, st2 := reg.EnsureSessionByPath("/workspace/doc.md")

	require.Equal(t, id1, id2)
	require.Same(t, st1, st2)

	indexedID, ok := reg.IDForPath("/workspace/doc.md")
	require.True(t, ok)
	require.Equal(t, id1, indexedID)
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	reg := registry.New(0)
	id := domain.SessionID("fixed-id")
	st1 := reg.EnsureSession(id)
	st2 := reg.EnsureSession(id)
	require.Same(t, st1, st2)
}

func TestReclaimIdleRemovesStaleSessions(t *testing.T) {
	reg := registry.New(0)
	_, st := reg.EnsureSessionByPath("/workspace/doc.md")
	st.LastActivity = domain.TimestampFrom(time.Now().Add(-time.Hour))

	require.Equal(t, 1, reg.Count())
	removed := reg.ReclaimIdle(time.Minute)
	require.Len(t, removed, 1)
	require.Equal(t, 0, reg.Count())

	_, ok := reg.IDForPath("/workspace/doc.md")
	require.False(t, ok)
}

func TestReclaimIdleKeepsFreshSessions(t *testing.T) {
	reg := registry.New(0)
	reg.EnsureSessionByPath("/workspace/doc.md")

	removed := reg.ReclaimIdle(time.Hour)
	require.Empty(t, removed)
	require.Equal(t, 1, reg.Count())
}
