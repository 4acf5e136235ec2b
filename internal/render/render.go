// Package render implements the render orchestrator of spec §4.7: change
// decision, sync/async dispatch, the circuit breaker, and fallback
// preview. Grounded on pkg/codex/verify.go's ApprovalPolicy (a
// threshold-driven policy object deciding an outcome from simple
// counted conditions) for the circuit breaker's threshold/cooldown
// shape, and on the apply→verify→rollback pipeline in the same file for
// the overall "dispatch, check outcome, react" control flow.
package render

import (
	"context"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/session"
)

// DefaultCircuitThreshold is the default consecutive-failure count that
// opens the circuit (spec §4.7).
const DefaultCircuitThreshold = 3

// DefaultCircuitCooldown is the default open-circuit cooldown.
const DefaultCircuitCooldown = 30 * time.Second

// ChangeDecision is whether a render should be incremental or full.
type ChangeDecision string

const (
	DecisionIncremental ChangeDecision = "incremental"
	DecisionFull        ChangeDecision = "full"
)

// DecideChange applies a simple, deterministic heuristic: if the common
// prefix of previous and current body covers the whole previous body
// (i.e. only a trailing region changed), the render can be incremental.
func DecideChange(previous, current string) ChangeDecision {
	if previous == "" || !strings.HasPrefix(current, previous) {
		return DecisionFull
	}
	return DecisionIncremental
}

// Renderer is the external rendering adapter contract (spec §6).
type Renderer interface {
	Render(ctx context.Context, body string, decision ChangeDecision) (preview string, err error)
	CacheKey(sessionID domain.SessionID, revision uint64) string
}

// Job is an enqueued async render request.
type Job struct {
	ID        domain.Token
	SessionID domain.SessionID
	Revision  uint64
	Body      string
	Decision  ChangeDecision
}

// Result is the outcome of one render, sync or async.
type Result struct {
	Preview        string
	Decision       ChangeDecision
	Fallback       bool
	DegradedMode   bool
	RetryAfterMs   int64
	Recovered      bool
}

// Orchestrator dispatches renders through a Renderer, tracking one
// circuit breaker per session.
type Orchestrator struct {
	renderer  Renderer
	threshold int
	cooldown  time.Duration

	mu   sync.Mutex
	jobs map[domain.Token]Job
}

// New returns an Orchestrator wrapping renderer.
func New(renderer Renderer, threshold int, cooldown time.Duration) *Orchestrator {
	if threshold <= 0 {
		threshold = DefaultCircuitThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCircuitCooldown
	}
	return &Orchestrator{renderer: renderer, threshold: threshold, cooldown: cooldown, jobs: make(map[domain.Token]Job)}
}

// circuitOpen reports whether st's circuit is still within its cooldown
// window. A circuit whose cooldown has elapsed is eligible for a
// recovery attempt (the next render, success or not, is let through).
func (o *Orchestrator) circuitOpen(st *session.State) bool {
	if st.RenderCircuit.State != session.CircuitOpen {
		return false
	}
	return time.Since(st.RenderCircuit.OpenedAt.Time) < o.cooldown
}

// RenderSync runs a render inline for st, honoring the circuit breaker.
func (o *Orchestrator) RenderSync(ctx context.Context, st *session.State, previousBody, body string) (Result, error) {
	if o.circuitOpen(st) {
		remaining := o.cooldown - time.Since(st.RenderCircuit.OpenedAt.Time)
		return Result{}, domain.NewError(domain.ErrBusy, "render circuit is open").
			WithDetail("degraded_mode", true).
			WithDetail("retry_after_ms", remaining.Milliseconds())
	}

	decision := DecideChange(previousBody, body)
	preview, err := o.renderer.Render(ctx, body, decision)
	if err != nil {
		openedNow := st.RecordFailure(o.threshold)
		if openedNow {
			return Result{
				Fallback:     true,
				Decision:     decision,
				Preview:      fallbackPreview(body, err),
				DegradedMode: true,
			}, nil
		}
		return Result{Fallback: true, Decision: decision, Preview: fallbackPreview(body, err)}, nil
	}

	recovered := st.RecordSuccess()
	return Result{Preview: preview, Decision: decision, Recovered: recovered}, nil
}

// EnqueueAsync enqueues a render job and returns its job id immediately;
// the caller runs the job via RunJob on a worker (spec §4.7: "the worker
// runs the renderer and emits a rendered signal when complete").
func (o *Orchestrator) EnqueueAsync(sessionID domain.SessionID, revision uint64, body string, decision ChangeDecision) Job {
	job := Job{ID: domain.NewToken(), SessionID: sessionID, Revision: revision, Body: body, Decision: decision}
	o.mu.Lock()
	// Earlier jobs for the session are superseded: dropping them leaves
	// this one as the session's only, and so latest, job.
	for id, j := range o.jobs {
		if j.SessionID == sessionID {
			delete(o.jobs, id)
		}
	}
	o.jobs[job.ID] = job
	o.mu.Unlock()
	return job
}

// RunJob executes a previously enqueued job. If a newer job has since
// been enqueued for the same session, this run's result is suppressed
// (spec §5: "only the latest revision's result is broadcast").
func (o *Orchestrator) RunJob(ctx context.Context, st *session.State, job Job) (Result, bool) {
	o.mu.Lock()
	latest := o.latestJobForSession(job.SessionID)
	o.mu.Unlock()
	if latest.ID != job.ID {
		return Result{}, false
	}

	if o.circuitOpen(st) {
		return Result{}, false
	}

	preview, err := o.renderer.Render(ctx, job.Body, job.Decision)
	if err != nil {
		openedNow := st.RecordFailure(o.threshold)
		return Result{Fallback: true, Decision: job.Decision, Preview: fallbackPreview(job.Body, err), DegradedMode: openedNow}, true
	}
	recovered := st.RecordSuccess()
	return Result{Preview: preview, Decision: job.Decision, Recovered: recovered}, true
}

func (o *Orchestrator) latestJobForSession(sessionID domain.SessionID) Job {
	var latest Job
	for _, j := range o.jobs {
		if j.SessionID == sessionID && j.Revision >= latest.Revision {
			latest = j
		}
	}
	return latest
}

// fallbackPreview builds the minimal, always-readable preview payload
// emitted on a renderer failure outside the open-circuit path (spec §4.7).
func fallbackPreview(body string, cause error) string {
	var b strings.Builder
	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(body))
	b.WriteString("</pre>\n<!-- render failed: ")
	b.WriteString(html.EscapeString(cause.Error()))
	b.WriteString(" -->")
	return b.String()
}
