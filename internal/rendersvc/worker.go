// Package rendersvc runs the async half of spec §4.7: a small worker
// pool that drains enqueued render.Job values and publishes their
// outcome as a rendered (or degraded_mode) signal once complete.
// Grounded on the ticker/channel-consuming goroutine loop shape used
// elsewhere in this module (internal/bus's subscriber-liveness goroutine,
// internal/registry's RunIdleReclaimer), generalized here to a bounded
// worker pool draining a single job queue instead of a single ticker.
package rendersvc

import (
	"context"

	"github.com/docflow/docflow/internal/bus"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/render"
)

// DefaultQueueLen bounds how many pending async render jobs the service
// will hold before new enqueues are dropped.
const DefaultQueueLen = 256

// DefaultConcurrency is the default number of worker goroutines.
const DefaultConcurrency = 2

// JobRunner executes a previously enqueued async render job against the
// session that owns it, synchronizing the mutation of that session's
// state with whatever else may be running the command pipeline
// concurrently. Implemented by *agent.Agent, which takes its own lock
// around the call (spec §5 single-writer guarantee) — the worker pool
// never touches session state directly.
type JobRunner interface {
	RunRenderJob(ctx context.Context, job render.Job) (render.Result, bool)
}

type queuedJob struct {
	runner        JobRunner
	sessionID     domain.SessionID
	job           render.Job
	correlationID domain.CorrelationID
}

// Worker drains queued render jobs, publishing results on a Bus.
type Worker struct {
	bus   *bus.Bus
	queue chan queuedJob
}

// NewWorker returns a Worker with a bounded internal queue.
func NewWorker(b *bus.Bus, queueLen int) *Worker {
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	return &Worker{bus: b, queue: make(chan queuedJob, queueLen)}
}

// Enqueue schedules job for async execution through runner. If the
// internal queue is full the job is dropped silently — the caller
// already has the job id back from EnqueueAsync and a later render
// supersedes it anyway (spec §5: "only the latest revision's result is
// broadcast").
func (w *Worker) Enqueue(runner JobRunner, sessionID domain.SessionID, job render.Job, correlationID domain.CorrelationID) {
	select {
	case w.queue <- queuedJob{runner: runner, sessionID: sessionID, job: job, correlationID: correlationID}:
	default:
	}
}

// Run starts concurrency worker goroutines draining the queue until ctx
// is canceled.
func (w *Worker) Run(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	for i := 0; i < concurrency; i++ {
		go w.loop(ctx)
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case qj := <-w.queue:
			w.run(ctx, qj)
		}
	}
}

func (w *Worker) run(ctx context.Context, qj queuedJob) {
	result, ran := qj.runner.RunRenderJob(ctx, qj.job)
	if !ran {
		return
	}
	if result.DegradedMode {
		w.publish(qj, domain.SignalUpdated, map[string]any{"action": string(domain.UpdatedDegradedMode)})
	}
	if result.Recovered {
		w.publish(qj, domain.SignalUpdated, map[string]any{"action": string(domain.UpdatedDegradedRecovered)})
	}
	w.publish(qj, domain.SignalRendered, map[string]any{
		"decision": string(result.Decision),
		"fallback": result.Fallback,
		"revision": qj.job.Revision,
	})
}

func (w *Worker) publish(qj queuedJob, typ domain.SignalType, data map[string]any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(domain.NewSignal(typ, qj.sessionID, data, qj.correlationID))
}
