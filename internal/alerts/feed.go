package alerts

import (
	"sync"

	"github.com/mr1hm/go-vitatrack/internal/broadcast"
	"github.com/mr1hm/go-vitatrack/internal/models"
)

// Feed is the alert state container owned by a single view. Every change
// replaces the state as one unit and publishes the new snapshot.
type Feed struct {
	mu      sync.Mutex
	state   State
	updates *broadcast.Broadcaster[State]
}

func NewFeed(initial State) *Feed {
	initial.Alerts = clone(initial.Alerts)
	return &Feed{
		state:   initial,
		updates: broadcast.New[State](1),
	}
}

// Dispatch applies a and returns the resulting snapshot. The snapshot is
// published before the lock is released so publishes keep dispatch order.
func (f *Feed) Dispatch(a Action) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Reduce(f.state, a)
	snap := f.snapshotLocked()
	f.updates.Replace(snap)
	return snap
}

func (f *Feed) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Feed) snapshotLocked() State {
	s := f.state
	s.Alerts = clone(s.Alerts)
	return s
}

func (f *Feed) Add(a models.Alert) State { return f.Dispatch(Prepend{Alert: a}) }

// MarkRead marks one alert read. Unknown ids are ignored.
func (f *Feed) MarkRead(id string) State { return f.Dispatch(MarkRead{ID: id}) }

func (f *Feed) MarkAllRead() State { return f.Dispatch(MarkAllRead{}) }

// Delete removes one alert. Unknown ids are ignored.
func (f *Feed) Delete(id string) State { return f.Dispatch(Delete{ID: id}) }

func (f *Feed) SetSound(enabled bool) State { return f.Dispatch(SetSound{Enabled: enabled}) }

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return UnreadCount(f.state)
}

// Subscribe returns a channel that always holds the latest snapshot.
func (f *Feed) Subscribe() (uint64, <-chan State) {
	return f.updates.Subscribe()
}

func (f *Feed) Unsubscribe(id uint64) {
	f.updates.Unsubscribe(id)
}

// Close releases every subscriber.
func (f *Feed) Close() {
	f.updates.Close()
}
