package agent_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/agent"
	"github.com/docflow/docflow/internal/bus"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/document"
	"github.com/docflow/docflow/internal/domain/session"
	"github.com/docflow/docflow/internal/render"
)

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, body string, decision render.ChangeDecision) (string, error) {
	return "<p>" + body + "</p>", nil
}

func (stubRenderer) CacheKey(sessionID domain.SessionID, revision uint64) string {
	return string(sessionID)
}

func newTestAgent(t *testing.T) (*agent.Agent, *bus.Bus, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("---\ntitle: hi\n---\nhello\n"), 0o644))

	signalBus := bus.New()
	orchestrator := render.New(stubRenderer{}, render.DefaultCircuitThreshold, render.DefaultCircuitCooldown)

	st := session.New(domain.SessionID("sess-1"), 10)
	deps := agent.Deps{
		WorkspaceRoot: root,
		Bus:           signalBus,
		Renderer:      orchestrator,
	}
	return agent.New(st, deps), signalBus, "doc.md"
}

func TestCommandPipelineEmitsSignalsInOrder(t *testing.T) {
	a, signalBus, relPath := newTestAgent(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := signalBus.Subscribe(ctx, domain.SessionID("sess-1"))
	require.NoError(t, err)

	load := a.Execute(context.Background(), agent.Command{Action: agent.ActionLoad, Params: map[string]any{"path": relPath}})
	require.Equal(t, agent.StatusOK, load.Status)

	updateBody := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateBody, Params: map[string]any{"body": "updated body"}})
	require.Equal(t, agent.StatusOK, updateBody.Status)

	renderRes := a.Execute(context.Background(), agent.Command{Action: agent.ActionRender})
	require.Equal(t, agent.StatusOK, renderRes.Status)

	save := a.Execute(context.Background(), agent.Command{Action: agent.ActionSave})
	require.Equal(t, agent.StatusOK, save.Status)

	var gotTypes []domain.SignalType
	for i := 0; i < 4; i++ {
		select {
		case sig := <-ch:
			gotTypes = append(gotTypes, sig.Type)
		default:
			t.Fatalf("expected 4 signals, got %d", i)
		}
	}

	require.Equal(t, []domain.SignalType{
		domain.SignalLoaded,
		domain.SignalUpdated,
		domain.SignalRendered,
		domain.SignalSaved,
	}, gotTypes)
}

func TestUpdateBodyWithoutLoadFails(t *testing.T) {
	a, _, _ := newTestAgent(t)
	res := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateBody, Params: map[string]any{"body": "x"}})
	require.Equal(t, agent.StatusError, res.Status)
	require.Equal(t, domain.ErrValidationFailed, res.Err.Code)
}

func TestWriteActionRequiresLockTokenWhenLocked(t *testing.T) {
	a, _, relPath := newTestAgent(t)
	require.Equal(t, agent.StatusOK, a.Execute(context.Background(), agent.Command{Action: agent.ActionLoad, Params: map[string]any{"path": relPath}}).Status)

	lockInfo, err := a.AcquireLock("alice", nil)
	require.NoError(t, err)

	noToken := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateBody, Params: map[string]any{"body": "x"}})
	require.Equal(t, agent.StatusError, noToken.Status)
	require.Equal(t, domain.ErrConflict, noToken.Err.Code)

	withToken := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateBody, Params: map[string]any{"body": "x"}, LockToken: &lockInfo.Token})
	require.Equal(t, agent.StatusOK, withToken.Status)
}

func TestUpdateBodyNoopDoesNotBumpRevisionOrHistory(t *testing.T) {
	a, _, relPath := newTestAgent(t)
	load := a.Execute(context.Background(), agent.Command{Action: agent.ActionLoad, Params: map[string]any{"path": relPath}})
	require.Equal(t, agent.StatusOK, load.Status)
	before := load.Value.(document.Document).Revision

	noop := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateBody, Params: map[string]any{"body": "hello\n"}})
	require.Equal(t, agent.StatusOK, noop.Status)
	require.Equal(t, before, noop.Value.(document.Document).Revision)

	// No anchor was pushed for the no-op, so there is nothing to undo.
	undo := a.Execute(context.Background(), agent.Command{Action: agent.ActionUndo})
	require.Equal(t, agent.StatusError, undo.Status)
}

func TestUpdateHeaderNoopDoesNotBumpRevisionOrHistory(t *testing.T) {
	a, _, relPath := newTestAgent(t)
	load := a.Execute(context.Background(), agent.Command{Action: agent.ActionLoad, Params: map[string]any{"path": relPath}})
	require.Equal(t, agent.StatusOK, load.Status)
	before := load.Value.(document.Document).Revision

	noop := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateHeader, Params: map[string]any{"changes": map[string]any{"title": "hi"}}})
	require.Equal(t, agent.StatusOK, noop.Status)
	require.Equal(t, before, noop.Value.(document.Document).Revision)

	undo := a.Execute(context.Background(), agent.Command{Action: agent.ActionUndo})
	require.Equal(t, agent.StatusError, undo.Status)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	a, _, relPath := newTestAgent(t)
	require.Equal(t, agent.StatusOK, a.Execute(context.Background(), agent.Command{Action: agent.ActionLoad, Params: map[string]any{"path": relPath}}).Status)

	upd := a.Execute(context.Background(), agent.Command{Action: agent.ActionUpdateBody, Params: map[string]any{"body": "changed"}})
	require.Equal(t, agent.StatusOK, upd.Status)

	undo := a.Execute(context.Background(), agent.Command{Action: agent.ActionUndo})
	require.Equal(t, agent.StatusOK, undo.Status)

	redo := a.Execute(context.Background(), agent.Command{Action: agent.ActionRedo})
	require.Equal(t, agent.StatusOK, redo.Status)
}
