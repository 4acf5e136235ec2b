package agent

import (
	"context"
	"os"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/domain/session"
	"github.com/docflow/docflow/internal/persistence"
	"github.com/docflow/docflow/internal/render"
)

// dispatch runs the Execute action (spec §4.8 step 5). Mutation actions
// run inside the reversible wrapper provided by Execute's rollback step;
// dispatch itself just performs the action and updates a.state in place.
func (a *Agent) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Action {
	case ActionLoad:
		return a.doLoad(cmd)
	case ActionSave:
		return a.doSave(cmd)
	case ActionUpdateHeader:
		return a.doUpdateHeader(cmd)
	case ActionUpdateBody:
		return a.doUpdateBody(cmd)
	case ActionRender:
		return a.doRender(ctx, cmd)
	case ActionUndo:
		return a.doUndo(cmd)
	case ActionRedo:
		return a.doRedo(cmd)
	default:
		return nil, domain.NewError(domain.ErrInvalidParams, "unknown action").WithDetail("action", string(cmd.Action))
	}
}

func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// doLoad reads a document from disk into the session, capturing a
// baseline and resetting history (spec §4.1, §4.2).
func (a *Agent) doLoad(cmd Command) (any, error) {
	rawPath, ok := paramString(cmd.Params, "path")
	if !ok || rawPath == "" {
		return nil, domain.NewError(domain.ErrInvalidParams, "path is required")
	}
	path, err := a.resolvePath(rawPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewError(domain.ErrNotFound, "document does not exist").WithDetail("path", path)
		}
		return nil, domain.NewError(domain.ErrTransientIO, "failed to read document").WithDetail("cause", err.Error())
	}

	doc, perr := document.Parse(string(data), a.codecs())
	if perr != nil {
		return nil, perr
	}
	doc.Path = path

	baseline, serr := persistence.Snapshot(path)
	if serr != nil {
		return nil, serr
	}

	doc.Revision = a.state.NextRevision()
	a.state.Document = &doc
	a.state.Baseline = &baseline
	a.state.History = session.NewHistory(0)
	a.state.RecordRevision(doc.Revision)

	a.emitSignal(domain.SignalLoaded, cmd.CorrelationID, map[string]any{"path": path, "revision": doc.Revision})
	return doc, nil
}

// requireLoaded returns invalid_state if no document is loaded.
func (a *Agent) requireLoaded() error {
	if a.state.Document == nil {
		return domain.NewError(domain.ErrValidationFailed, "no document loaded").WithDetail("reason", "invalid_state")
	}
	return nil
}

// ConflictStrategy selects save's behavior on baseline divergence.
type ConflictStrategy string

const (
	OnConflictFail      ConflictStrategy = ""
	OnConflictOverwrite ConflictStrategy = "overwrite"
	OnConflictReload    ConflictStrategy = "reload"
)

// doSave writes the in-memory document to disk, enforcing the baseline
// divergence check unless on_conflict is "overwrite"; any other value,
// "reload" included, still fails with conflict on divergence
// (spec §4.2, §4.3).
func (a *Agent) doSave(cmd Command) (any, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	doc := a.state.Document

	strategy, _ := paramString(cmd.Params, "on_conflict")

	if a.state.Baseline != nil {
		status, err := persistence.DetectDivergence(*a.state.Baseline)
		if err != nil {
			return nil, err
		}
		if status != domain.DivergenceUnchanged && ConflictStrategy(strategy) != OnConflictOverwrite {
			return nil, domain.NewError(domain.ErrConflict, "on-disk content diverged from baseline").
				WithDetail("divergence", status).
				WithDetail("remediation", []string{"reload", "overwrite", "merge_hook"})
		}
	}

	rendered, err := document.Serialize(*doc, a.codecs().For(doc.Syntax), document.SerializeOpts{})
	if err != nil {
		return nil, err
	}

	var modeBits *uint32
	if a.state.Baseline != nil {
		modeBits = a.state.Baseline.ModeBits
	}
	if werr := persistence.AtomicWrite(doc.Path, []byte(rendered), persistence.WriteOpts{ModeBits: modeBits}); werr != nil {
		return nil, domain.NewError(domain.ErrTransientIO, "failed to write document").WithDetail("cause", werr.Error())
	}

	baseline, serr := persistence.Snapshot(doc.Path)
	if serr != nil {
		return nil, serr
	}
	a.state.Baseline = &baseline
	doc.Dirty = false
	doc.Revision = a.state.NextRevision()
	a.state.RecordRevision(doc.Revision)

	a.maybeCheckpoint()
	a.emitSignal(domain.SignalSaved, cmd.CorrelationID, map[string]any{"path": doc.Path, "revision": doc.Revision})
	return *doc, nil
}

// doUpdateHeader applies a shallow merge (or replace) over the
// document's header (spec §4.1).
func (a *Agent) doUpdateHeader(cmd Command) (any, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	changesRaw, _ := cmd.Params["changes"].(map[string]any)
	mode := document.HeaderMerge
	if m, ok := paramString(cmd.Params, "mode"); ok && m == "replace" {
		mode = document.HeaderReplace
	}

	prior := *a.state.Document
	updated := document.UpdateHeader(prior, document.Header(changesRaw), mode)
	if updated.Header.Equal(prior.Header) {
		return updated, nil
	}

	a.pushHistory()
	updated.Dirty = true
	updated.Revision = a.state.NextRevision()
	a.state.Document = &updated
	a.state.RecordRevision(updated.Revision)

	a.emitSignal(domain.SignalUpdated, cmd.CorrelationID, map[string]any{"action": string(domain.UpdatedFrontmatter), "revision": updated.Revision})
	a.maybeCheckpoint()
	return updated, nil
}

// doUpdateBody applies a body patch built from the command params: a
// full replace ("body") or a search/replace ("search"). Transform
// patches are not built here (spec §4.1).
func (a *Agent) doUpdateBody(cmd Command) (any, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}

	var patch document.BodyPatch
	if body, ok := paramString(cmd.Params, "body"); ok {
		patch.Replace = &body
	} else if search, ok := paramString(cmd.Params, "search"); ok {
		replace, _ := paramString(cmd.Params, "replace")
		global, _ := cmd.Params["global"].(bool)
		patch.Search = &document.SearchReplace{Search: search, Replace: replace, Global: global}
	} else {
		return nil, domain.NewError(domain.ErrInvalidParams, "update_body requires body or search/replace params")
	}

	prior := *a.state.Document
	updated, err := document.ApplyBodyPatch(prior, patch, document.UpdateBodyOpts{})
	if err != nil {
		return nil, err
	}
	if updated.Body == prior.Body {
		return updated, nil
	}

	a.pushHistory()
	updated.Dirty = true
	updated.Revision = a.state.NextRevision()
	a.state.Document = &updated
	a.state.RecordRevision(updated.Revision)

	a.emitSignal(domain.SignalUpdated, cmd.CorrelationID, map[string]any{"action": string(domain.UpdatedBody), "revision": updated.Revision})
	a.maybeCheckpoint()
	return updated, nil
}

// pushHistory records the pre-mutation document onto the undo ring.
func (a *Agent) pushHistory() {
	a.state.History.Push(session.Anchor{Revision: currentRevision(a.state), Document: *a.state.Document})
}

// doRender dispatches to the render orchestrator, sync or async (spec §4.7).
func (a *Agent) doRender(ctx context.Context, cmd Command) (any, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	if a.deps.Renderer == nil {
		return nil, domain.NewError(domain.ErrInternal, "no renderer configured")
	}

	previousBody := a.state.LastRenderedBody

	if cmd.Mode == ModeAsync {
		decision := render.DecideChange(previousBody, a.state.Document.Body)
		job := a.deps.Renderer.EnqueueAsync(a.state.SessionID, a.state.Document.Revision, a.state.Document.Body, decision)
		if a.deps.RenderWorker != nil {
			a.deps.RenderWorker.Enqueue(a, a.state.SessionID, job, cmd.CorrelationID)
		}
		return job, nil
	}

	result, err := a.deps.Renderer.RenderSync(ctx, a.state, previousBody, a.state.Document.Body)
	if err != nil {
		return nil, err
	}
	a.state.LastRenderedBody = a.state.Document.Body
	if result.DegradedMode {
		a.emitSignal(domain.SignalUpdated, cmd.CorrelationID, map[string]any{"action": string(domain.UpdatedDegradedMode)})
	}
	if result.Recovered {
		a.emitSignal(domain.SignalUpdated, cmd.CorrelationID, map[string]any{"action": string(domain.UpdatedDegradedRecovered)})
	}
	a.emitSignal(domain.SignalRendered, cmd.CorrelationID, map[string]any{"decision": string(result.Decision), "fallback": result.Fallback})
	return result, nil
}

// doUndo reverts to the most recent pre-mutation anchor (spec §4.4).
func (a *Agent) doUndo(cmd Command) (any, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	restored, err := a.state.History.Undo(session.Anchor{Revision: currentRevision(a.state), Document: *a.state.Document})
	if err != nil {
		return nil, err
	}
	doc := restored.Document
	doc.Revision = a.state.NextRevision()
	a.state.Document = &doc
	a.state.RecordRevision(doc.Revision)
	a.emitSignal(domain.SignalUndone, cmd.CorrelationID, map[string]any{"revision": doc.Revision})
	return doc, nil
}

// doRedo reverses the most recent Undo (spec §4.4).
func (a *Agent) doRedo(cmd Command) (any, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	restored, err := a.state.History.Redo(session.Anchor{Revision: currentRevision(a.state), Document: *a.state.Document})
	if err != nil {
		return nil, err
	}
	doc := restored.Document
	doc.Revision = a.state.NextRevision()
	a.state.Document = &doc
	a.state.RecordRevision(doc.Revision)
	a.emitSignal(domain.SignalRedone, cmd.CorrelationID, map[string]any{"revision": doc.Revision})
	return doc, nil
}
