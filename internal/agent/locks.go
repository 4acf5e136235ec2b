package agent

import (
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/lock"
)

// AcquireLock runs the acquire transition of spec §4.6's lock state
// machine and broadcasts the resulting lock_state signal.
func (a *Agent) AcquireLock(owner string, expectedToken *domain.Token) (lock.Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := lock.Acquire(a.state.Lock, owner, expectedToken)
	if err != nil {
		return a.state.Lock, err
	}
	a.state.Lock = next
	a.emitSignal(domain.SignalUpdated, "", map[string]any{
		"action": string(domain.UpdatedLockState), "owner": next.Owner, "lock_revision": next.Revision,
	})
	return next, nil
}

// ReleaseLock runs the release transition and broadcasts lock_state.
func (a *Agent) ReleaseLock(token domain.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, err := lock.Release(a.state.Lock, token)
	if err != nil {
		return err
	}
	a.state.Lock = next
	a.emitSignal(domain.SignalUpdated, "", map[string]any{"action": string(domain.UpdatedLockState), "owner": ""})
	return nil
}

// ForceTakeover unconditionally reassigns the lock, noting the previous
// owner in the broadcast signal (spec §4.6).
func (a *Agent) ForceTakeover(owner, reason string) lock.Info {
	a.mu.Lock()
	defer a.mu.Unlock()
	next, previousOwner := lock.ForceTakeover(a.state.Lock, owner, reason)
	a.state.Lock = next
	a.emitSignal(domain.SignalUpdated, "", map[string]any{
		"action": string(domain.UpdatedLockState), "owner": next.Owner, "previous_owner": previousOwner, "lock_revision": next.Revision,
	})
	return next
}

// ValidateLock reports whether token is the session's current lock token.
func (a *Agent) ValidateLock(token domain.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return lock.Validate(a.state.Lock, token)
}
