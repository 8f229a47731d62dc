package alerts

import (
	"strconv"

	"github.com/mr1hm/go-vitatrack/internal/models"
)

// State is the alert panel of one view. Alerts are ordered newest first.
type State struct {
	Alerts       []models.Alert `json:"alerts"`
	SoundEnabled bool           `json:"soundEnabled"`
}

// Action is a state transition applied by Reduce.
type Action interface {
	apply(State) State
}

type Prepend struct{ Alert models.Alert }

type MarkRead struct{ ID string }

type MarkAllRead struct{}

type Delete struct{ ID string }

type SetSound struct{ Enabled bool }

// Reduce returns the state that results from applying a to s. s is never
// modified.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

func (a Prepend) apply(s State) State {
	out := make([]models.Alert, 0, len(s.Alerts)+1)
	out = append(out, a.Alert)
	out = append(out, s.Alerts...)
	s.Alerts = out
	return s
}

func (a MarkRead) apply(s State) State {
	idx := indexOf(s.Alerts, a.ID)
	if idx < 0 || s.Alerts[idx].IsRead {
		return s
	}
	out := clone(s.Alerts)
	out[idx].IsRead = true
	s.Alerts = out
	return s
}

func (MarkAllRead) apply(s State) State {
	out := clone(s.Alerts)
	for i := range out {
		out[i].IsRead = true
	}
	s.Alerts = out
	return s
}

func (a Delete) apply(s State) State {
	idx := indexOf(s.Alerts, a.ID)
	if idx < 0 {
		return s
	}
	out := make([]models.Alert, 0, len(s.Alerts)-1)
	out = append(out, s.Alerts[:idx]...)
	out = append(out, s.Alerts[idx+1:]...)
	s.Alerts = out
	return s
}

func (a SetSound) apply(s State) State {
	s.SoundEnabled = a.Enabled
	return s
}

// UnreadCount is derived from the alert list on every call.
func UnreadCount(s State) int {
	n := 0
	for _, a := range s.Alerts {
		if !a.IsRead {
			n++
		}
	}
	return n
}

// UnreadBadge is the bell badge text: empty when nothing is unread, capped at "9+".
func UnreadBadge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 9:
		return "9+"
	default:
		return strconv.Itoa(n)
	}
}

func indexOf(alerts []models.Alert, id string) int {
	for i, a := range alerts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func clone(alerts []models.Alert) []models.Alert {
	out := make([]models.Alert, len(alerts))
	copy(out, alerts)
	return out
}
