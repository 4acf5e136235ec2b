// Package persistence implements the safety layer around the filesystem:
// atomic writes, baseline snapshot capture, and external-change
// divergence detection, per spec §4.2. The content-hash precondition
// check is grounded on pkg/codex/diff.go's StructuredDiff.CheckPreconditions
// (SHA-256 of file bytes compared before a patch is allowed to apply);
// the baseline/divergence model itself is grounded on the hash-based
// staleness check in other_examples' crit document model.
package persistence

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/docflow/docflow/internal/domain"
)

// hashBytes returns the hex-encoded SHA-256 of data.
func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Snapshot captures a Baseline for path. A missing file is a distinct,
// non-error variant: the returned Baseline has an empty ContentHash and
// the caller should treat it as "absent" (spec §4.2: snapshot "treats
// 'no file' as a distinct variant, not an error").
func Snapshot(path string) (domain.Baseline, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Baseline{Path: path, CapturedAt: domain.Now()}, nil
		}
		return domain.Baseline{}, fsErr("stat failed", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Baseline{}, fsErr("read failed", path, err)
	}
	mode := uint32(info.Mode().Perm())
	return domain.Baseline{
		Path:        path,
		ContentHash: hashBytes(data),
		Size:        info.Size(),
		ModTime:     domain.TimestampFrom(info.ModTime()),
		CapturedAt:  domain.Now(),
		ModeBits:    &mode,
	}, nil
}

// IsAbsent reports whether a Baseline represents a file that did not
// exist when captured.
func IsAbsent(b domain.Baseline) bool { return b.ContentHash == "" }

// DetectDivergence compares the current on-disk state of baseline.Path
// against the captured baseline, per spec §4.2.
func DetectDivergence(baseline domain.Baseline) (domain.DivergenceStatus, error) {
	current, err := Snapshot(baseline.Path)
	if err != nil {
		return "", err
	}
	if IsAbsent(current) {
		if IsAbsent(baseline) {
			return domain.DivergenceUnchanged, nil
		}
		return domain.DivergenceAbsentNow, nil
	}
	if IsAbsent(baseline) {
		return domain.DivergenceDiverged, nil
	}
	if current.ContentHash != baseline.ContentHash || current.Size != baseline.Size {
		return domain.DivergenceDiverged, nil
	}
	return domain.DivergenceUnchanged, nil
}

// WriteOpts configures AtomicWrite.
type WriteOpts struct {
	// ModeBits, if set, is applied to the final file (permission
	// preservation across rewrites, spec §4.2).
	ModeBits *uint32
	// InjectFailure is a testing hook: when non-nil, called after the
	// temp file is written and before rename, to simulate a crash
	// mid-write. It is never used outside tests.
	InjectFailure func() error
}

// AtomicWrite writes data to path via a temp-file-then-rename sequence,
// fsyncing both the temp file and its containing directory so the
// replacement is durable even across a crash, grounded on the
// write-then-rename shape the teacher's codex Apply pipeline uses for
// each file change (pkg/codex/diff.go applyChange).
func AtomicWrite(path string, data []byte, opts WriteOpts) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fsErr("failed to create parent directory", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".docflow-tmp-*")
	if err != nil {
		return fsErr("failed to create temp file", path, err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			os.Remove(tmpPath)
		}
	}()

	mode := os.FileMode(0o644)
	if opts.ModeBits != nil {
		mode = os.FileMode(*opts.ModeBits)
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fsErr("failed to set permissions", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fsErr("failed to write temp file", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fsErr("failed to sync temp file", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fsErr("failed to close temp file", path, err)
	}

	if opts.InjectFailure != nil {
		if err := opts.InjectFailure(); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fsErr("failed to rename into place", path, err)
	}
	cleanupTmp = false

	if dirHandle, err := os.Open(dir); err == nil {
		_ = dirHandle.Sync()
		dirHandle.Close()
	}
	return nil
}

func fsErr(msg, path string, cause error) error {
	return domain.NewError(domain.ErrFilesystem, msg).
		WithDetail("path", path).
		WithDetail("cause", cause.Error())
}
