package audit_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/audit"
	"github.com/docflow/docflow/internal/domain"
)

func TestRecordAndFindBySession(t *testing.T) {
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	evt := domain.NewAuditEvent("command", "update_body", domain.AuditOK, domain.SessionID("s1"), "corr-1").
		WithMetadata("revision", 2)
	require.NoError(t, store.Record(context.Background(), evt))

	other := domain.NewAuditEvent("command", "load", domain.AuditOK, domain.SessionID("s2"), "corr-2")
	require.NoError(t, store.Record(context.Background(), other))

	found, err := store.Find(context.Background(), audit.Query{SessionID: domain.SessionID("s1")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "update_body", found[0].Action)
	require.Equal(t, domain.AuditOK, found[0].Status)
}

func TestFindByCorrelationID(t *testing.T) {
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	evt := domain.NewAuditEvent("command", "render", domain.AuditError, domain.SessionID("s1"), "corr-xyz")
	require.NoError(t, store.Record(context.Background(), evt))

	found, err := store.Find(context.Background(), audit.Query{CorrelationID: domain.CorrelationID("corr-xyz")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, domain.AuditError, found[0].Status)
}

func TestFindRespectsLimit(t *testing.T) {
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		evt := domain.NewAuditEvent("command", "save", domain.AuditOK, domain.SessionID("s1"), "")
		require.NoError(t, store.Record(context.Background(), evt))
	}

	found, err := store.Find(context.Background(), audit.Query{SessionID: domain.SessionID("s1"), Limit: 2})
	require.NoError(t, err)
	require.Len(t, found, 2)
}
