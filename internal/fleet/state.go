package fleet

import (
	"github.com/mr1hm/go-vitatrack/internal/models"
)

// State is the ambulance and call board of one view.
type State struct {
	Ambulances []models.Ambulance     `json:"ambulances"`
	Calls      []models.EmergencyCall `json:"calls"`
}

// Action is a state transition applied by Reduce.
type Action interface {
	apply(State) State
}

// Delta is a per-ambulance GPS offset in degrees.
type Delta struct {
	ID   string
	DLat float64
	DLng float64
}

// Jitter moves ambulances by their deltas; no other field changes.
type Jitter struct{ Deltas []Delta }

type SetAmbulanceStatus struct {
	ID     string
	Status models.AmbulanceStatus
}

// AssignCall links a call to an ambulance and marks both dispatched.
type AssignCall struct {
	CallID      string
	AmbulanceID string
}

type SetCallStatus struct {
	ID     string
	Status models.CallStatus
}

// CountdownETA lowers every "N mins" ETA by one minute, never below one.
type CountdownETA struct{}

func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

func (a Jitter) apply(s State) State {
	out := cloneAmbulances(s.Ambulances)
	for _, d := range a.Deltas {
		if i := ambulanceIndex(out, d.ID); i >= 0 {
			out[i].Location.Lat += d.DLat
			out[i].Location.Lng += d.DLng
		}
	}
	s.Ambulances = out
	return s
}

func (a SetAmbulanceStatus) apply(s State) State {
	i := ambulanceIndex(s.Ambulances, a.ID)
	if i < 0 || !a.Status.Valid() {
		return s
	}
	out := cloneAmbulances(s.Ambulances)
	out[i].Status = a.Status
	if a.Status == models.AmbulanceAvailable {
		if callID := out[i].CurrentCallID; callID != "" {
			s.Calls = unlinkCall(s.Calls, callID, a.ID)
		}
		release(&out[i])
	}
	s.Ambulances = out
	return s
}

func (a AssignCall) apply(s State) State {
	ci := callIndex(s.Calls, a.CallID)
	ai := ambulanceIndex(s.Ambulances, a.AmbulanceID)
	if ci < 0 || ai < 0 {
		return s
	}

	calls := cloneCalls(s.Calls)
	ambulances := cloneAmbulances(s.Ambulances)

	// a call has at most one ambulance and an ambulance at most one call
	if prev := ambulances[ai].CurrentCallID; prev != "" && prev != a.CallID {
		calls = unlinkCall(calls, prev, a.AmbulanceID)
	}
	for i := range ambulances {
		if i != ai && ambulances[i].CurrentCallID == a.CallID {
			release(&ambulances[i])
			ambulances[i].Status = models.AmbulanceAvailable
		}
	}

	calls[ci].AmbulanceID = a.AmbulanceID
	calls[ci].Status = models.CallDispatched

	p := calls[ci].Priority
	ambulances[ai].Status = models.AmbulanceDispatched
	ambulances[ai].CurrentCallID = a.CallID
	ambulances[ai].Priority = &p

	s.Calls = calls
	s.Ambulances = ambulances
	return s
}

func (a SetCallStatus) apply(s State) State {
	i := callIndex(s.Calls, a.ID)
	if i < 0 || !a.Status.Valid() {
		return s
	}
	out := cloneCalls(s.Calls)
	out[i].Status = a.Status
	s.Calls = out
	return s
}

func (CountdownETA) apply(s State) State {
	out := cloneAmbulances(s.Ambulances)
	for i := range out {
		if m, ok := ParseETAMinutes(out[i].ETA); ok {
			out[i].ETA = FormatETAMinutes(max(1, m-1))
		}
	}
	s.Ambulances = out
	return s
}

// release drops an ambulance's link to its call.
func release(a *models.Ambulance) {
	a.CurrentCallID = ""
	a.ETA = ""
	a.Priority = nil
}

// unlinkCall clears the ambulance on callID when it is still ambulanceID.
// An unlinked call that was dispatched goes back to pending.
func unlinkCall(calls []models.EmergencyCall, callID, ambulanceID string) []models.EmergencyCall {
	i := callIndex(calls, callID)
	if i < 0 || calls[i].AmbulanceID != ambulanceID {
		return calls
	}
	out := cloneCalls(calls)
	out[i].AmbulanceID = ""
	if out[i].Status == models.CallDispatched {
		out[i].Status = models.CallPending
	}
	return out
}

func ambulanceIndex(list []models.Ambulance, id string) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func callIndex(list []models.EmergencyCall, id string) int {
	for i, c := range list {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func cloneAmbulances(list []models.Ambulance) []models.Ambulance {
	out := make([]models.Ambulance, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}

func cloneCalls(list []models.EmergencyCall) []models.EmergencyCall {
	out := make([]models.EmergencyCall, len(list))
	copy(out, list)
	return out
}

func clone(s State) State {
	return State{
		Ambulances: cloneAmbulances(s.Ambulances),
		Calls:      cloneCalls(s.Calls),
	}
}
