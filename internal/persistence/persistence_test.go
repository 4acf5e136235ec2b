package persistence_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/persistence"
)

func TestSnapshotAbsentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.md")
	b, err := persistence.Snapshot(path)
	require.NoError(t, err)
	require.True(t, persistence.IsAbsent(b))
	require.Equal(t, path, b.Path)
}

func TestSnapshotExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	b, err := persistence.Snapshot(path)
	require.NoError(t, err)
	require.False(t, persistence.IsAbsent(b))
	require.NotEmpty(t, b.ContentHash)
	require.EqualValues(t, len("hello"), b.Size)
}

func TestAtomicWriteThenReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.md")
	require.NoError(t, persistence.AtomicWrite(path, []byte("content"), persistence.WriteOpts{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "content", string(data))
}

func TestAtomicWriteInjectedFailureLeavesOriginalIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	err := persistence.AtomicWrite(path, []byte("new"), persistence.WriteOpts{
		InjectFailure: func() error { return os.ErrClosed },
	})
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}

func TestDetectDivergenceUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	baseline, err := persistence.Snapshot(path)
	require.NoError(t, err)

	status, err := persistence.DetectDivergence(baseline)
	require.NoError(t, err)
	require.Equal(t, domain.DivergenceUnchanged, status)
}

func TestDetectDivergenceDiverged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	baseline, err := persistence.Snapshot(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("changed externally"), 0o644))

	status, err := persistence.DetectDivergence(baseline)
	require.NoError(t, err)
	require.Equal(t, domain.DivergenceDiverged, status)
}

func TestDetectDivergenceAbsentNow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	baseline, err := persistence.Snapshot(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	status, err := persistence.DetectDivergence(baseline)
	require.NoError(t, err)
	require.Equal(t, domain.DivergenceAbsentNow, status)
}

func TestDetectDivergenceUnchangedWhenBothAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-existed.md")
	baseline, err := persistence.Snapshot(path)
	require.NoError(t, err)

	status, err := persistence.DetectDivergence(baseline)
	require.NoError(t, err)
	require.Equal(t, domain.DivergenceUnchanged, status)
}
