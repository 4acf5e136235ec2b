package domain

// Baseline is the on-disk fingerprint captured at the last load or save,
// the basis for external-change divergence detection (spec §3, §4.2).
// Grounded on the content-hash staleness check in the crit document model
// and the precondition-hash pattern in the teacher's codex/diff.go.
type Baseline struct {
	Path        string
	ContentHash string // hex-encoded SHA-256 of bytes as written
	Size        int64
	ModTime     Timestamp
	CapturedAt  Timestamp
	ModeBits    *uint32
}

// DivergenceStatus is the result of comparing a baseline against current
// on-disk state.
type DivergenceStatus string

const (
	DivergenceUnchanged DivergenceStatus = "unchanged"
	DivergenceDiverged  DivergenceStatus = "diverged"
	DivergenceAbsentNow DivergenceStatus = "absent_now"
)

// CheckpointSchemaVersion is the current on-disk schema for Checkpoint.
const CheckpointSchemaVersion = 1

// Checkpoint is the on-disk recovery record captured during edit sessions,
// per spec §3/§4.7.
type Checkpoint struct {
	SchemaVersion int
	SessionID     SessionID
	Sequence      uint64
	Header        map[string]any
	Body          string
	DocPath       string
	DocSyntax     string
	Baseline      *Baseline
	CapturedAt    Timestamp
}
