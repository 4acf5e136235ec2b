package checkpoint

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/docflow/docflow/internal/domain"
)

// Schedule wraps a cron expression driving the periodic autosave /
// idle-reclaim timers, matching the teacher's own cron-driven workflow
// triggers (gronx is the teacher's cron library, used there for
// scheduled workflow kickoff; here it drives checkpoint/reclaim cadence
// instead of task dispatch).
type Schedule struct {
	expr  string
	gron  gronx.Gronx
}

// NewSchedule validates expr as a standard 5-field cron expression and
// returns a Schedule that can be polled with Due.
func NewSchedule(expr string) (*Schedule, error) {
	g := gronx.New()
	if !g.IsValid(expr) {
		return nil, domain.NewError(domain.ErrInvalidParams, "invalid cron expression").WithDetail("expr", expr)
	}
	return &Schedule{expr: expr, gron: g}, nil
}

// Due reports whether the schedule is due at t.
func (s *Schedule) Due(t time.Time) (bool, error) {
	return s.gron.IsDue(s.expr, t)
}

// Run polls the schedule once per pollInterval and invokes fn each time
// it becomes due, until ctx is canceled.
func (s *Schedule) Run(ctx context.Context, pollInterval time.Duration, fn func()) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := s.Due(now)
			if err == nil && due {
				fn()
			}
		}
	}
}
