// Package agent implements the per-session command pipeline of spec
// §4.8: ingest, normalize, guard, authorize, execute, reliability,
// apply, rollback, audit, signal, return. Grounded on the
// load→mutate→save→publish-events shape of pkg/app/session_service.go
// (every mutating method: load aggregate, mutate, persist, publish
// pulled events), generalized into an explicit staged pipeline and
// fused with pkg/orchestration's RetryPolicy and pkg/codex/verify.go's
// apply→verify→rollback shape for the reliability and rollback stages.
package agent

import (
	"time"

	"github.com/docflow/docflow/internal/domain"
)

// Action is the closed set of commands a session agent accepts (spec §6).
type Action string

const (
	ActionLoad         Action = "load"
	ActionSave         Action = "save"
	ActionUpdateHeader Action = "update_header"
	ActionUpdateBody   Action = "update_body"
	ActionRender       Action = "render"
	ActionUndo         Action = "undo"
	ActionRedo         Action = "redo"
)

// Mode selects synchronous (await result) or fire-and-forget dispatch.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// Command is one ingested call into the pipeline (spec §4.8 step 1).
type Command struct {
	Action        Action
	Params        map[string]any
	Mode          Mode
	CorrelationID domain.CorrelationID
	Actor         string
	Source        string
	LockToken     *domain.Token
	Timeout       time.Duration
}

// Status is the Result envelope's top-level outcome.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is the envelope every command returns (spec §4.8 step 11).
type Result struct {
	Status   Status
	Value    any
	Err      *domain.Error
	Action   Action
	Idempotent bool
	CorrelationID domain.CorrelationID
	DurationUS    int64
	Rollback      bool
}

// errResult builds an error Result, filling in the shared envelope fields.
func errResult(cmd Command, err *domain.Error, rollback bool, started time.Time) Result {
	return Result{
		Status:        StatusError,
		Err:           err,
		Action:        cmd.Action,
		CorrelationID: cmd.CorrelationID,
		DurationUS:    time.Since(started).Microseconds(),
		Rollback:      rollback,
	}
}

func okResult(cmd Command, value any, idempotent bool, started time.Time) Result {
	return Result{
		Status:        StatusOK,
		Value:         value,
		Action:        cmd.Action,
		Idempotent:    idempotent,
		CorrelationID: cmd.CorrelationID,
		DurationUS:    time.Since(started).Microseconds(),
	}
}
