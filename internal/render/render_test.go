package render_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/session"
	"github.com/docflow/docflow/internal/render"
)

type failingRenderer struct{ n int }

func (f *failingRenderer) Render(ctx context.Context, body string, decision render.ChangeDecision) (string, error) {
	f.n++
	return "", errors.New("boom")
}

func (f *failingRenderer) CacheKey(sessionID domain.SessionID, revision uint64) string { return "" }

type okRenderer struct{}

func (okRenderer) Render(ctx context.Context, body string, decision render.ChangeDecision) (string, error) {
	return "<p>" + body + "</p>", nil
}

func (okRenderer) CacheKey(sessionID domain.SessionID, revision uint64) string { return "" }

func TestDecideChange(t *testing.T) {
	require.Equal(t, render.DecisionFull, render.DecideChange("", "abc"))
	require.Equal(t, render.DecisionIncremental, render.DecideChange("abc", "abcdef"))
	require.Equal(t, render.DecisionFull, render.DecideChange("abc", "xyz"))
}

func TestRenderSyncOpensCircuitAfterThreshold(t *testing.T) {
	renderer := &failingRenderer{}
	o := render.New(renderer, 2, time.Minute)
	st := session.New(domain.SessionID("s1"), 10)

	res1, err := o.RenderSync(context.Background(), st, "", "body")
	require.NoError(t, err)
	require.True(t, res1.Fallback)
	require.False(t, res1.DegradedMode)

	res2, err := o.RenderSync(context.Background(), st, "", "body")
	require.NoError(t, err)
	require.True(t, res2.DegradedMode)
	require.Equal(t, session.CircuitOpen, st.RenderCircuit.State)

	_, err = o.RenderSync(context.Background(), st, "", "body")
	require.Error(t, err)
	var derr *domain.Error
	require.ErrorAs(t, err, &derr)
	require.Equal(t, domain.ErrBusy, derr.Code)
}

func TestRenderSyncRecoversFromOpenCircuit(t *testing.T) {
	renderer := &failingRenderer{}
	o := render.New(renderer, 1, time.Millisecond)
	st := session.New(domain.SessionID("s1"), 10)

	_, err := o.RenderSync(context.Background(), st, "", "body")
	require.NoError(t, err)
	require.Equal(t, session.CircuitOpen, st.RenderCircuit.State)

	time.Sleep(5 * time.Millisecond)

	o2 := render.New(okRenderer{}, 1, time.Millisecond)
	res, err := o2.RenderSync(context.Background(), st, "", "body")
	require.NoError(t, err)
	require.True(t, res.Recovered)
	require.Equal(t, session.CircuitClosed, st.RenderCircuit.State)
}

func TestRunJobSuppressesSupersededJob(t *testing.T) {
	o := render.New(okRenderer{}, render.DefaultCircuitThreshold, render.DefaultCircuitCooldown)
	st := session.New(domain.SessionID("s1"), 10)

	stale := o.EnqueueAsync(st.SessionID, 1, "old body", render.DecisionFull)
	_ = o.EnqueueAsync(st.SessionID, 2, "new body", render.DecisionFull)

	_, ran := o.RunJob(context.Background(), st, stale)
	require.False(t, ran)
}
