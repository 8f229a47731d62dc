package alerts

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-vitatrack/internal/clock"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2024, 1, 15, 14, 45, 0, 0, time.UTC)

func seedState() State {
	return State{
		SoundEnabled: true,
		Alerts: []models.Alert{
			{ID: "alert-001", Type: models.AlertTypeEmergency, Priority: models.PriorityCritical, Timestamp: now.Add(-5 * time.Minute)},
			{ID: "alert-002", Type: models.AlertTypeTraffic, Priority: models.PriorityMedium, Timestamp: now.Add(-10 * time.Minute)},
			{ID: "alert-003", Type: models.AlertTypeHospital, Priority: models.PriorityHigh, Timestamp: now.Add(-15 * time.Minute), IsRead: true},
		},
	}
}

func countUnread(s State) int {
	n := 0
	for _, a := range s.Alerts {
		if !a.IsRead {
			n++
		}
	}
	return n
}

func TestScenario_MarkReadThenDelete(t *testing.T) {
	f := NewFeed(seedState())
	defer f.Close()

	require.Equal(t, 2, f.UnreadCount())

	f.MarkRead("alert-001")
	require.Equal(t, 1, f.UnreadCount())

	s := f.Delete("alert-003")
	require.Len(t, s.Alerts, 2)
	require.Equal(t, 1, f.UnreadCount())
}

func TestUnreadCount_MatchesListAfterRandomOps(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	s := seedState()
	for i := 0; i < 20; i++ {
		s = Reduce(s, Prepend{Alert: models.Alert{ID: fmt.Sprintf("gen-%d", i), IsRead: r.IntN(2) == 0}})
	}

	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("gen-%d", r.IntN(25))
		if r.IntN(2) == 0 {
			s = Reduce(s, MarkRead{ID: id})
		} else {
			s = Reduce(s, Delete{ID: id})
		}
		require.Equal(t, countUnread(s), UnreadCount(s))
	}
}

func TestMarkAllRead_Idempotent(t *testing.T) {
	once := Reduce(seedState(), MarkAllRead{})
	twice := Reduce(once, MarkAllRead{})

	require.Equal(t, once, twice)
	require.Zero(t, UnreadCount(twice))
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	in := seedState()
	before := seedState()

	_ = Reduce(in, MarkRead{ID: "alert-001"})
	_ = Reduce(in, MarkAllRead{})
	_ = Reduce(in, Delete{ID: "alert-002"})
	_ = Reduce(in, Prepend{Alert: models.Alert{ID: "new"}})

	require.Equal(t, before, in)
}

func TestReduce_UnknownIDsAreIgnored(t *testing.T) {
	s := seedState()
	require.Equal(t, s, Reduce(s, MarkRead{ID: "missing"}))
	require.Equal(t, s, Reduce(s, Delete{ID: "missing"}))
	require.Equal(t, s, Reduce(s, nil))
}

func TestUnreadBadge(t *testing.T) {
	tests := map[int]string{0: "", 1: "1", 9: "9", 10: "9+", 42: "9+"}
	for n, want := range tests {
		require.Equal(t, want, UnreadBadge(n), "n=%d", n)
	}
}

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{0, "Just now"},
		{30 * time.Second, "Just now"},
		{45 * time.Minute, "45m ago"},
		{90 * time.Minute, "1h ago"},
		{1500 * time.Minute, "1d ago"},
		{-5 * time.Minute, "Just now"},
		{3 * 24 * time.Hour, "3d ago"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, FormatTimeAgo(now.Add(-tt.offset), now), "offset %s", tt.offset)
	}
}

type recordingSounder struct {
	mu     sync.Mutex
	played []models.Alert
}

func (r *recordingSounder) Play(_ context.Context, a models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, a)
}

func (r *recordingSounder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.played)
}

func TestSimulator_Tick(t *testing.T) {
	feed := NewFeed(State{SoundEnabled: true})
	defer feed.Close()

	sounder := &recordingSounder{}
	ids := 0
	sim := NewSimulator(feed, SimulatorOptions{
		Probability: 0.2,
		// miss, hit, hit
		Rand:    clock.NewSequenceRand([]float64{0.5, 0.1, 0.19}, []int{0, 0, 2, 3}),
		Sounder: sounder,
		NewID:   func() string { ids++; return fmt.Sprintf("alert-%d", ids) },
	})

	_, ok := sim.Tick(context.Background(), now)
	require.False(t, ok)
	require.Empty(t, feed.Snapshot().Alerts)

	a, ok := sim.Tick(context.Background(), now)
	require.True(t, ok)
	require.Equal(t, models.AlertTypeEmergency, a.Type)
	require.Equal(t, models.PriorityCritical, a.Priority)
	require.False(t, a.IsRead)
	require.Equal(t, 1, sounder.count())

	b, ok := sim.Tick(context.Background(), now.Add(time.Minute))
	require.True(t, ok)
	require.Equal(t, models.AlertTypeSystem, b.Type)
	require.Equal(t, models.PriorityLow, b.Priority)
	require.Equal(t, 1, sounder.count())

	s := feed.Snapshot()
	require.Equal(t, []string{"alert-2", "alert-1"}, []string{s.Alerts[0].ID, s.Alerts[1].ID})
}

func TestSimulator_NoSoundWhenDisabled(t *testing.T) {
	feed := NewFeed(State{SoundEnabled: false})
	defer feed.Close()

	sounder := &recordingSounder{}
	sim := NewSimulator(feed, SimulatorOptions{
		Probability: 1,
		Rand:        clock.NewSequenceRand([]float64{0}, []int{0}),
		Sounder:     sounder,
	})

	a, ok := sim.Tick(context.Background(), now)
	require.True(t, ok)
	require.Equal(t, models.PriorityCritical, a.Priority)
	require.Zero(t, sounder.count())
}

func TestSimulator_TimestampsNonDecreasing(t *testing.T) {
	feed := NewFeed(State{})
	defer feed.Close()

	sim := NewSimulator(feed, SimulatorOptions{
		Probability: 1,
		Rand:        clock.NewSequenceRand([]float64{0}, []int{1, 2, 3}),
	})

	sim.Tick(context.Background(), now)
	// clock stepped backwards
	b, _ := sim.Tick(context.Background(), now.Add(-time.Hour))
	require.Equal(t, now, b.Timestamp)

	s := feed.Snapshot()
	for i := 1; i < len(s.Alerts); i++ {
		require.False(t, s.Alerts[i].Timestamp.After(s.Alerts[i-1].Timestamp))
	}
}

func TestSimulator_ScheduledTask(t *testing.T) {
	fc := clock.NewFake(now)
	sched := scheduler.New(fc)
	feed := NewFeed(State{})
	defer feed.Close()

	sim := NewSimulator(feed, SimulatorOptions{
		Probability: 1,
		Rand:        clock.NewSequenceRand([]float64{0}, []int{1}),
	})

	id, updates := feed.Subscribe()
	defer feed.Unsubscribe(id)

	h := sched.Schedule(context.Background(), sim.Task(DefaultInterval))
	defer h.Stop()

	fc.Advance(DefaultInterval)

	select {
	case s := <-updates:
		require.Len(t, s.Alerts, 1)
		require.Equal(t, now.Add(DefaultInterval), s.Alerts[0].Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after tick")
	}
}

func TestFeed_ConcurrentDispatchLeavesLatestSnapshot(t *testing.T) {
	f := NewFeed(State{})
	defer f.Close()

	id, updates := f.Subscribe()
	defer f.Unsubscribe(id)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				f.Add(models.Alert{ID: fmt.Sprintf("a-%d-%d", w, i), Timestamp: now})
			}
		}(w)
	}
	wg.Wait()

	select {
	case s := <-updates:
		require.Len(t, s.Alerts, writers*perWriter)
		require.Equal(t, f.Snapshot(), s)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
}
