package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/clock"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/scheduler"
)

const (
	DefaultProbability = 0.2
	DefaultInterval    = 30 * time.Second
)

// Sounder plays the audible cue for critical alerts.
type Sounder interface {
	Play(ctx context.Context, a models.Alert)
}

// LogSounder stands in for a speaker by writing a log line.
type LogSounder struct{}

func (LogSounder) Play(_ context.Context, a models.Alert) {
	zap.L().Warn("critical alert sound played", zap.String("alert_id", a.ID), zap.String("type", string(a.Type)))
}

type SimulatorOptions struct {
	// Probability that a tick produces an alert, in [0, 1].
	Probability float64
	Rand        clock.Rand
	Sounder     Sounder
	NewID       func() string
}

// Simulator synthesizes alerts into a Feed on every tick.
type Simulator struct {
	feed        *Feed
	probability float64
	rand        clock.Rand
	sounder     Sounder
	newID       func() string
}

func NewSimulator(feed *Feed, opts SimulatorOptions) *Simulator {
	s := &Simulator{
		feed:        feed,
		probability: opts.Probability,
		rand:        opts.Rand,
		sounder:     opts.Sounder,
		newID:       opts.NewID,
	}
	if s.probability < 0 || s.probability > 1 {
		s.probability = DefaultProbability
	}
	if s.rand == nil {
		s.rand = clock.NewRand()
	}
	if s.sounder == nil {
		s.sounder = LogSounder{}
	}
	if s.newID == nil {
		s.newID = func() string { return "alert-" + uuid.NewString() }
	}
	return s
}

// Tick rolls the dice once and, on a hit, prepends a new unread alert. The
// returned bool reports whether an alert was created.
func (s *Simulator) Tick(ctx context.Context, now time.Time) (models.Alert, bool) {
	if s.rand.Float64() >= s.probability {
		return models.Alert{}, false
	}

	types := models.AllAlertTypes()
	priorities := models.AllPriorities()

	// Keep insertion order and timestamp order aligned even if the clock
	// steps backwards.
	if head := s.feed.Snapshot().Alerts; len(head) > 0 && head[0].Timestamp.After(now) {
		now = head[0].Timestamp
	}

	alert := models.Alert{
		ID:        s.newID(),
		Type:      types[s.rand.IntN(len(types))],
		Title:     "New System Alert",
		Message:   "Real-time alert from VitaTrack system",
		Priority:  priorities[s.rand.IntN(len(priorities))],
		Timestamp: now,
		IsRead:    false,
	}

	state := s.feed.Add(alert)
	zap.L().Debug("simulated alert", zap.String("alert_id", alert.ID), zap.String("priority", string(alert.Priority)))

	if state.SoundEnabled && alert.Priority == models.PriorityCritical {
		s.sounder.Play(ctx, alert)
	}

	return alert, true
}

// Task wraps Tick for the scheduler.
func (s *Simulator) Task(interval time.Duration) scheduler.Task {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return scheduler.Task{
		Name:     "alert-simulator",
		Interval: interval,
		Run: func(ctx context.Context, now time.Time) {
			s.Tick(ctx, now)
		},
	}
}
