package pathpolicy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/pathpolicy"
)

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()
	resolved, err := pathpolicy.Resolve("sub/doc.md", root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "sub", "doc.md"), resolved)
}

func TestResolveRejectsParentEscape(t *testing.T) {
	root := t.TempDir()
	_, err := pathpolicy.Resolve("../outside.md", root)
	require.Error(t, err)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.ErrFilesystem, derr.Code)
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	outsideFile := filepath.Join(outside, "secret.md")
	require.NoError(t, os.WriteFile(outsideFile, []byte("secret"), 0o644))

	linkPath := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, linkPath))

	_, err := pathpolicy.Resolve("escape/secret.md", root)
	require.Error(t, err)
}

func TestResolveAllowsAbsolutePathWithinRoot(t *testing.T) {
	root := t.TempDir()
	abs := filepath.Join(root, "doc.md")
	resolved, err := pathpolicy.Resolve(abs, root)
	require.NoError(t, err)
	require.Equal(t, abs, resolved)
}
