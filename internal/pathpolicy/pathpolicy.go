// Package pathpolicy enforces the workspace-root boundary every path
// argument must satisfy before it reaches persistence, per spec §4.2.
// Grounded on checkPathAllowed in pkg/tools/filesystem.go, generalized to
// resolve symlinks before the boundary check so a symlinked escape hatch
// inside the workspace can't be used to read or write outside it.
package pathpolicy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/docflow/docflow/internal/domain"
)

// Resolve validates rawPath against workspaceRoot and returns the
// absolute, symlink-resolved path. It never follows a path outside the
// workspace root, even transitively through a symlink.
func Resolve(rawPath, workspaceRoot string) (string, error) {
	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return "", fsError("invalid workspace root", err)
	}
	root, err = resolveSymlinksBestEffort(root)
	if err != nil {
		return "", fsError("invalid workspace root", err)
	}

	var abs string
	if filepath.IsAbs(rawPath) {
		abs = filepath.Clean(rawPath)
	} else {
		abs = filepath.Join(root, rawPath)
	}

	if !withinRoot(abs, root) {
		return "", workspaceBoundaryError(abs, root)
	}

	resolved, err := resolveSymlinksBestEffort(abs)
	if err != nil {
		return "", fsError("failed to resolve path", err)
	}
	if !withinRoot(resolved, root) {
		return "", workspaceBoundaryError(resolved, root)
	}
	return resolved, nil
}

// resolveSymlinksBestEffort resolves symlinks in p, tolerating a
// not-yet-existing final path component (the common case for a file
// about to be created).
func resolveSymlinksBestEffort(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	dir, base := filepath.Dir(p), filepath.Base(p)
	resolvedDir, derr := filepath.EvalSymlinks(dir)
	if derr != nil {
		if os.IsNotExist(derr) {
			return filepath.Clean(p), nil
		}
		return "", derr
	}
	return filepath.Join(resolvedDir, base), nil
}

func withinRoot(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

func workspaceBoundaryError(path, root string) error {
	return domain.NewError(domain.ErrFilesystem, "path escapes workspace root").
		WithDetail("reason", "workspace_boundary").
		WithDetail("path", path).
		WithDetail("workspace_root", root)
}

func fsError(msg string, cause error) error {
	return domain.NewError(domain.ErrFilesystem, msg).WithDetail("cause", cause.Error())
}
