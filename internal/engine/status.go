package engine

import (
	"context"

	"feltsync/internal/faults"
	"feltsync/internal/queue"
)

// State names the engine's current activity.
type State string

const (
	StateIdle    State = "idle"
	StatePulling State = "pulling"
	StatePushing State = "pushing"
)

type statusState struct {
	state   State
	cycleID string
	last    CycleSummary
	hasLast bool
}

// StatusSummary represents lightweight engine diagnostics.
type StatusSummary struct {
	State   State
	CycleID string
	// LastCycle is the most recent finished or skipped cycle, nil before the
	// first one.
	LastCycle *CycleSummary
	Queue     queue.HealthSummary
}

func (o *Orchestrator) setStatus(ctx context.Context, state State, cycleID string, last CycleSummary) {
	o.mu.Lock()
	o.status.state = state
	o.status.cycleID = cycleID
	if state == StateIdle {
		o.status.last = last
		o.status.hasLast = true
	}
	o.mu.Unlock()
	o.publishStatus(ctx)
}

// publishStatus pushes the current state and outstanding count onto the
// observable stream. Failures to read queue health degrade to a count of -1
// rather than suppressing the update.
func (o *Orchestrator) publishStatus(ctx context.Context) {
	o.mu.Lock()
	state := o.status.state
	cycleID := o.status.cycleID
	o.mu.Unlock()
	if state == "" {
		state = StateIdle
	}

	outstanding := -1
	if health, err := o.queue.Health(ctx); err == nil {
		outstanding = health.Outstanding()
	}
	o.hub.Publish(StatusUpdate{
		Timestamp:   o.now(),
		State:       state,
		CycleID:     cycleID,
		Outstanding: outstanding,
	})
}

// Status returns the engine state along with queue health counts.
func (o *Orchestrator) Status(ctx context.Context) (StatusSummary, error) {
	o.mu.Lock()
	snapshot := o.status
	o.mu.Unlock()

	if snapshot.state == "" {
		snapshot.state = StateIdle
	}
	summary := StatusSummary{State: snapshot.state, CycleID: snapshot.cycleID}
	if snapshot.hasLast {
		last := snapshot.last
		summary.LastCycle = &last
	}

	health, err := o.queue.Health(ctx)
	if err != nil {
		return summary, faults.Wrap(faults.ErrStorage, "engine", "queue health", err)
	}
	summary.Queue = health
	return summary, nil
}
