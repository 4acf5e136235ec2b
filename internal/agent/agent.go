package agent

import (
	"context"
	"sync"
	"time"

	"github.com/docflow/docflow/internal/audit"
	"github.com/docflow/docflow/internal/bus"
	"github.com/docflow/docflow/internal/checkpoint"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/domain/lock"
	"github.com/docflow/docflow/internal/domain/session"
	"github.com/docflow/docflow/internal/frontmatter"
	"github.com/docflow/docflow/internal/pathpolicy"
	"github.com/docflow/docflow/internal/render"
	"github.com/docflow/docflow/internal/rendersvc"
)

// Deps are the collaborators an Agent needs to run the pipeline. They
// are process-wide and shared across every session's Agent.
type Deps struct {
	WorkspaceRoot    string
	Frontmatter      *frontmatter.Registry
	Checkpoints      *checkpoint.Store
	CheckpointOnEdit bool
	Bus              *bus.Bus
	Audit            *audit.Store
	Renderer         *render.Orchestrator
	RenderWorker     *rendersvc.Worker
	Authorizer       *Authorizer
	Retry            RetryPolicy
}

// Agent is the single-writer actor owning one session's State. Every
// method that mutates state acquires mu first — spec §5's "model it as
// an object whose methods hold a mutex" for targets without actors.
type Agent struct {
	mu    sync.Mutex
	state *session.State
	deps  Deps
}

// New returns an Agent for the given session state and dependencies.
func New(state *session.State, deps Deps) *Agent {
	return &Agent{state: state, deps: deps}
}

// Execute runs the full command pipeline of spec §4.8 against a.state.
func (a *Agent) Execute(ctx context.Context, cmd Command) Result {
	started := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	if cmd.CorrelationID == "" {
		cmd.CorrelationID = domain.NewCorrelationID()
	}
	a.state.Touch()

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	// Guard: write actions against an existing lock require a valid
	// lock_token (spec §4.8 step 3).
	if RequiredPermission(cmd.Action) == PermWrite && a.state.Lock.State == lock.Locked {
		if cmd.LockToken == nil {
			return a.fail(cmd, domain.NewError(domain.ErrConflict, "lock held; lock_token required"), false, started)
		}
		if err := lock.Validate(a.state.Lock, *cmd.LockToken); err != nil {
			return a.fail(cmd, err.(*domain.Error), false, started)
		}
	}

	// Authorize (spec §4.8 step 4).
	if a.deps.Authorizer != nil {
		if err := a.deps.Authorizer.Authorize(ctx, cmd.Action, cmd.Actor); err != nil {
			return a.fail(cmd, err.(*domain.Error), false, started)
		}
	}

	preState := a.snapshotAnchor()

	retry := a.deps.Retry
	value, err := retry.withRetry(ctx, func() (any, error) {
		return a.dispatch(ctx, cmd)
	})

	if err != nil {
		de, ok := domain.AsError(err)
		if !ok {
			de = domain.NewError(domain.ErrInternal, err.Error())
		}
		rolledBack := a.rollbackIfMutation(cmd.Action, preState)
		a.emitSignal(domain.SignalFailed, cmd.CorrelationID, map[string]any{"action": string(cmd.Action), "error": de.Code})
		a.auditEvent(ctx, cmd, domain.AuditError, map[string]any{"error": string(de.Code)})
		return a.fail(cmd, de, rolledBack, started)
	}

	a.auditEvent(ctx, cmd, domain.AuditOK, map[string]any{domain.ParentRevisionKey: preState.Revision})
	return okResult(cmd, value, false, started)
}

func (a *Agent) fail(cmd Command, de *domain.Error, rollback bool, started time.Time) Result {
	return errResult(cmd, de, rollback, started)
}

// RunRenderJob executes a previously enqueued async render job under
// the agent's own lock, so the render worker pool's mutation of
// a.state (RenderCircuit, LastRenderedBody) is serialized with every
// other command running against this session (spec §5's single-writer
// guarantee — satisfies rendersvc.JobRunner).
func (a *Agent) RunRenderJob(ctx context.Context, job render.Job) (render.Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deps.Renderer == nil {
		return render.Result{}, false
	}
	result, ran := a.deps.Renderer.RunJob(ctx, a.state, job)
	if ran && !result.Fallback {
		a.state.LastRenderedBody = job.Body
	}
	return result, ran
}

// snapshotAnchor captures the session's current (revision, document)
// as a pre-command anchor for rollback, even when no document is
// loaded (a zero-value anchor).
func (a *Agent) snapshotAnchor() session.Anchor {
	if a.state.Document == nil {
		return session.Anchor{}
	}
	return session.Anchor{Revision: currentRevision(a.state), Document: *a.state.Document}
}

func currentRevision(st *session.State) uint64 {
	if len(st.RevisionLog) == 0 {
		return 0
	}
	return st.RevisionLog[len(st.RevisionLog)-1]
}

// rollbackIfMutation restores pre-command state for a mutating action
// that failed (spec §4.8 step 8). Reads are side-effect free, so there
// is nothing to roll back.
func (a *Agent) rollbackIfMutation(action Action, pre session.Anchor) bool {
	if RequiredPermission(action) != PermWrite {
		return false
	}
	if a.state.Document == nil {
		return false
	}
	doc := pre.Document
	a.state.Document = &doc
	return true
}

func (a *Agent) emitSignal(typ domain.SignalType, correlationID domain.CorrelationID, data map[string]any) {
	if a.deps.Bus == nil {
		return
	}
	a.deps.Bus.Publish(domain.NewSignal(typ, a.state.SessionID, data, correlationID))
}

func (a *Agent) auditEvent(ctx context.Context, cmd Command, status domain.AuditStatus, metadata map[string]any) {
	if a.deps.Audit == nil {
		return
	}
	evt := domain.NewAuditEvent("command", string(cmd.Action), status, a.state.SessionID, cmd.CorrelationID)
	evt.Actor = cmd.Actor
	evt.Source = cmd.Source
	for k, v := range metadata {
		evt = evt.WithMetadata(k, v)
	}
	a.state.RecordAudit(evt)
	// Durable write happens off the critical path so a slow disk never
	// stalls the pipeline that just produced the user-visible result.
	go func() {
		_ = a.deps.Audit.Record(context.Background(), evt)
	}()
}

// resolvePath applies the workspace-root guard (spec §6: "without it,
// load/save fail with filesystem_error { workspace_root_missing }")
// and the path policy boundary check.
func (a *Agent) resolvePath(raw string) (string, error) {
	if a.deps.WorkspaceRoot == "" {
		return "", domain.NewError(domain.ErrFilesystem, "workspace_root is not configured").
			WithDetail("reason", "workspace_root_missing")
	}
	return pathpolicy.Resolve(raw, a.deps.WorkspaceRoot)
}

func (a *Agent) codecs() document.CodecResolver {
	if a.deps.Frontmatter == nil {
		return frontmatter.NewRegistry()
	}
	return a.deps.Frontmatter
}

// maybeCheckpoint persists a checkpoint after an accepted edit if
// configured to do so (spec §4.8 step 7 / §4.9).
func (a *Agent) maybeCheckpoint() {
	if a.deps.Checkpoints == nil || !a.deps.CheckpointOnEdit || a.state.Document == nil {
		return
	}
	cp := domain.Checkpoint{
		SchemaVersion: domain.CheckpointSchemaVersion,
		SessionID:     a.state.SessionID,
		Sequence:      currentRevision(a.state),
		Header:        a.state.Document.Header,
		Body:          a.state.Document.Body,
		DocPath:       a.state.Document.Path,
		DocSyntax:     string(a.state.Document.Syntax),
		Baseline:      a.state.Baseline,
		CapturedAt:    domain.Now(),
	}
	_ = a.deps.Checkpoints.Save(cp)
}
