// Package checkpoint implements on-disk checkpoint recovery, per spec
// §4.9. Checkpoints are keyed by session id and a monotonic sequence
// number, stored one-file-per-checkpoint under a configured directory.
// Grounded on the teacher's generic JSONStore[T] (pkg/infrastructure/
// persistence/repositories.go), generalized from "one JSON file per
// entity id" to "one JSON file per (session id, sequence) pair" so the
// history of checkpoints for a session is preserved rather than
// overwritten, and written through internal/persistence.AtomicWrite
// rather than a bare os.WriteFile.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/persistence"
)

// magic identifies a docflow checkpoint file, per spec §6: "prefixed by
// a magic header and a schema version byte."
var magic = [4]byte{'D', 'F', 'C', 'K'}

// Store persists and discovers checkpoints under baseDir.
type Store struct {
	baseDir string
}

// NewStore returns a Store rooted at baseDir. The directory is created
// lazily on first write.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) sessionDir(id domain.SessionID) string {
	return filepath.Join(s.baseDir, string(id))
}

func (s *Store) checkpointPath(id domain.SessionID, sequence uint64) string {
	return filepath.Join(s.sessionDir(id), strconv.FormatUint(sequence, 10)+".chk")
}

// Save writes a checkpoint, atomically, at <baseDir>/<session_id>/<sequence>.chk,
// prefixed by the magic header and a schema version byte (spec §6).
func (s *Store) Save(cp domain.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return domain.NewError(domain.ErrInternal, "failed to marshal checkpoint").WithDetail("cause", err.Error())
	}
	data := make([]byte, 0, len(magic)+1+len(payload))
	data = append(data, magic[:]...)
	data = append(data, byte(cp.SchemaVersion))
	data = append(data, payload...)
	return persistence.AtomicWrite(s.checkpointPath(cp.SessionID, cp.Sequence), data, persistence.WriteOpts{})
}

// sequencesFor lists the sequence numbers present for a session, ascending.
func (s *Store) sequencesFor(id domain.SessionID) ([]uint64, error) {
	entries, err := os.ReadDir(s.sessionDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.NewError(domain.ErrFilesystem, "failed to list checkpoints").WithDetail("cause", err.Error())
	}
	var seqs []uint64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".chk") {
			continue
		}
		n, perr := strconv.ParseUint(strings.TrimSuffix(name, ".chk"), 10, 64)
		if perr != nil {
			continue
		}
		seqs = append(seqs, n)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

func (s *Store) load(id domain.SessionID, sequence uint64) (domain.Checkpoint, error) {
	data, err := os.ReadFile(s.checkpointPath(id, sequence))
	if err != nil {
		return domain.Checkpoint{}, domain.NewError(domain.ErrFilesystem, "failed to read checkpoint").WithDetail("cause", err.Error())
	}
	if len(data) < len(magic)+1 || [4]byte(data[:4]) != magic {
		return domain.Checkpoint{}, domain.NewError(domain.ErrParseFailed, "checkpoint file missing magic header")
	}
	schemaVersion := int(data[len(magic)])
	var cp domain.Checkpoint
	if err := json.Unmarshal(data[len(magic)+1:], &cp); err != nil {
		return domain.Checkpoint{}, domain.NewError(domain.ErrParseFailed, "failed to parse checkpoint").WithDetail("cause", err.Error())
	}
	cp.SchemaVersion = schemaVersion
	return cp, nil
}

// SupportedSchemaVersion is the newest checkpoint schema this build
// understands. Older checkpoints surface as a diagnostic, never an
// auto-apply (spec §4.9).
const SupportedSchemaVersion = domain.CheckpointSchemaVersion

// Candidate reports on a recovery candidate without adopting it
// (recovery_status, spec §4.9).
type Candidate struct {
	SessionID      domain.SessionID
	Sequence       uint64
	SchemaVersion  int
	Supported      bool
	CapturedAt     domain.Timestamp
}

// RecoveryStatus returns the pending recovery candidate for a session,
// if any: the newest checkpoint whose schema_version this build
// supports (spec §4.9), not simply the newest checkpoint on disk. If no
// checkpoint has a supported schema, the true newest is returned anyway
// (Candidate.Supported false) so callers can still report it as a
// diagnostic.
func (s *Store) RecoveryStatus(id domain.SessionID) (*Candidate, error) {
	seqs, err := s.sequencesFor(id)
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, nil
	}

	var newestUnsupported *Candidate
	for i := len(seqs) - 1; i >= 0; i-- {
		cp, err := s.load(id, seqs[i])
		if err != nil {
			return nil, err
		}
		cand := &Candidate{
			SessionID:     id,
			Sequence:      cp.Sequence,
			SchemaVersion: cp.SchemaVersion,
			Supported:     cp.SchemaVersion == SupportedSchemaVersion,
			CapturedAt:    cp.CapturedAt,
		}
		if cand.Supported {
			return cand, nil
		}
		if newestUnsupported == nil {
			newestUnsupported = cand
		}
	}
	return newestUnsupported, nil
}

// Recover loads and returns the newest supported checkpoint for a
// session, per spec §4.9's "recover adopts the candidate's document and
// baseline". It refuses to adopt an unsupported schema version.
func (s *Store) Recover(id domain.SessionID) (*domain.Checkpoint, error) {
	status, err := s.RecoveryStatus(id)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, domain.NewError(domain.ErrNotFound, "no recovery candidate for session").WithDetail("session_id", string(id))
	}
	if !status.Supported {
		return nil, domain.NewError(domain.ErrValidationFailed, "recovery candidate schema version is not supported").
			WithDetail("schema_version", status.SchemaVersion).
			WithDetail("supported", SupportedSchemaVersion)
	}
	cp, err := s.load(id, status.Sequence)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// DiscardRecovery deletes a session's recovery candidate, the checkpoint
// RecoveryStatus reports (spec §4.9's discard_recovery).
func (s *Store) DiscardRecovery(id domain.SessionID) error {
	status, err := s.RecoveryStatus(id)
	if err != nil {
		return err
	}
	if status == nil {
		return nil
	}
	if err := os.Remove(s.checkpointPath(id, status.Sequence)); err != nil && !os.IsNotExist(err) {
		return domain.NewError(domain.ErrFilesystem, "failed to discard recovery candidate").WithDetail("cause", err.Error())
	}
	return nil
}

// ListRecoveryCandidates surfaces the RecoveryStatus candidate of every
// session under the store, for operator tooling (spec §4.9).
func (s *Store) ListRecoveryCandidates() ([]Candidate, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.NewError(domain.ErrFilesystem, "failed to list sessions").WithDetail("cause", err.Error())
	}
	var out []Candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := domain.SessionID(e.Name())
		cand, err := s.RecoveryStatus(id)
		if err != nil || cand == nil {
			continue
		}
		out = append(out, *cand)
	}
	return out, nil
}
