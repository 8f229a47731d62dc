package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mr1hm/go-vitatrack/internal/broadcast"
	"github.com/mr1hm/go-vitatrack/internal/clock"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/scheduler"
)

const (
	// DefaultMaxDelta matches a ±0.0005 degree GPS wobble per tick.
	DefaultMaxDelta     = 0.0005
	DefaultJitterPeriod = 5 * time.Second
	DefaultCountdown    = 30 * time.Second
)

// Feed is the fleet state container owned by a single view. Consumers always
// observe the latest snapshot; there is no replay log.
type Feed struct {
	mu       sync.Mutex
	state    State
	rand     clock.Rand
	maxDelta float64
	updates  *broadcast.Broadcaster[State]
}

func NewFeed(initial State, r clock.Rand, maxDelta float64) *Feed {
	if r == nil {
		r = clock.NewRand()
	}
	if maxDelta <= 0 {
		maxDelta = DefaultMaxDelta
	}
	return &Feed{
		state:    clone(initial),
		rand:     r,
		maxDelta: maxDelta,
		updates:  broadcast.New[State](1),
	}
}

func (f *Feed) MaxDelta() float64 { return f.maxDelta }

// Dispatch applies a and publishes the result. Publishing happens under the
// lock so subscribers never see an older state after a newer one.
func (f *Feed) Dispatch(a Action) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Reduce(f.state, a)
	snap := clone(f.state)
	f.updates.Replace(snap)
	return snap
}

func (f *Feed) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.state)
}

// Tick perturbs every ambulance by independent uniform noise in
// [-maxDelta, +maxDelta) on each axis, then applies extra. The whole tick is
// published as one state change.
func (f *Feed) Tick(extra ...Action) State {
	f.mu.Lock()
	deltas := make([]Delta, 0, len(f.state.Ambulances))
	for _, a := range f.state.Ambulances {
		deltas = append(deltas, Delta{
			ID:   a.ID,
			DLat: (f.rand.Float64() - 0.5) * 2 * f.maxDelta,
			DLng: (f.rand.Float64() - 0.5) * 2 * f.maxDelta,
		})
	}
	f.state = Reduce(f.state, Jitter{Deltas: deltas})
	for _, a := range extra {
		f.state = Reduce(f.state, a)
	}
	snap := clone(f.state)
	f.updates.Replace(snap)
	f.mu.Unlock()
	return snap
}

// SetAmbulanceStatus validates the change before applying it.
func (f *Feed) SetAmbulanceStatus(id string, status models.AmbulanceStatus) (State, error) {
	if !status.Valid() {
		return State{}, models.NewValidationError("status", fmt.Sprintf("unknown ambulance status %q", status))
	}
	if !f.hasAmbulance(id) {
		return State{}, fmt.Errorf("ambulance %s: %w", id, models.ErrNotFound)
	}
	return f.Dispatch(SetAmbulanceStatus{ID: id, Status: status}), nil
}

func (f *Feed) AssignCall(callID, ambulanceID string) (State, error) {
	if !f.hasAmbulance(ambulanceID) {
		return State{}, fmt.Errorf("ambulance %s: %w", ambulanceID, models.ErrNotFound)
	}
	if !f.hasCall(callID) {
		return State{}, fmt.Errorf("call %s: %w", callID, models.ErrNotFound)
	}
	return f.Dispatch(AssignCall{CallID: callID, AmbulanceID: ambulanceID}), nil
}

func (f *Feed) SetCallStatus(id string, status models.CallStatus) (State, error) {
	if !status.Valid() {
		return State{}, models.NewValidationError("status", fmt.Sprintf("unknown call status %q", status))
	}
	if !f.hasCall(id) {
		return State{}, fmt.Errorf("call %s: %w", id, models.ErrNotFound)
	}
	return f.Dispatch(SetCallStatus{ID: id, Status: status}), nil
}

func (f *Feed) hasAmbulance(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ambulanceIndex(f.state.Ambulances, id) >= 0
}

func (f *Feed) hasCall(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return callIndex(f.state.Calls, id) >= 0
}

func (f *Feed) Subscribe() (uint64, <-chan State) {
	return f.updates.Subscribe()
}

func (f *Feed) Unsubscribe(id uint64) {
	f.updates.Unsubscribe(id)
}

func (f *Feed) Close() {
	f.updates.Close()
}

// JitterTask moves the fleet on every tick.
func (f *Feed) JitterTask(interval time.Duration) scheduler.Task {
	if interval <= 0 {
		interval = DefaultJitterPeriod
	}
	return scheduler.Task{
		Name:     "fleet-jitter",
		Interval: interval,
		Run:      func(context.Context, time.Time) { f.Tick() },
	}
}

// CountdownTask jitters and counts ETAs down together, as the family view does.
func (f *Feed) CountdownTask(interval time.Duration) scheduler.Task {
	if interval <= 0 {
		interval = DefaultCountdown
	}
	return scheduler.Task{
		Name:     "fleet-countdown",
		Interval: interval,
		Run:      func(context.Context, time.Time) { f.Tick(CountdownETA{}) },
	}
}
