package models

import "time"

type CallStatus string

const (
	CallPending      CallStatus = "pending"
	CallDispatched   CallStatus = "dispatched"
	CallEnRoute      CallStatus = "en_route"
	CallAtScene      CallStatus = "at_scene"
	CallTransporting CallStatus = "transporting"
	CallCompleted    CallStatus = "completed"
)

func AllCallStatuses() []CallStatus {
	return []CallStatus{CallPending, CallDispatched, CallEnRoute, CallAtScene, CallTransporting, CallCompleted}
}

func (s CallStatus) Valid() bool {
	switch s {
	case CallPending, CallDispatched, CallEnRoute, CallAtScene, CallTransporting, CallCompleted:
		return true
	}
	return false
}

func ParseCallStatus(s string) (CallStatus, bool) {
	st := CallStatus(normalize(s))
	return st, st.Valid()
}

// EmergencyCall is an incoming request for an ambulance. PatientName, Address
// and CallerPhone never change after creation.
type EmergencyCall struct {
	ID          string     `json:"id" yaml:"id"`
	PatientName string     `json:"patientName" yaml:"patientName"`
	CallerPhone string     `json:"callerPhone,omitempty" yaml:"callerPhone,omitempty"`
	Address     string     `json:"address" yaml:"address"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Condition   string     `json:"condition" yaml:"condition"`
	AmbulanceID string     `json:"ambulanceId,omitempty" yaml:"ambulanceId,omitempty"`
	Status      CallStatus `json:"status" yaml:"status"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
}

type TimelineStatus string

const (
	TimelineCompleted TimelineStatus = "completed"
	TimelineCurrent   TimelineStatus = "current"
	TimelinePending   TimelineStatus = "pending"
)

func AllTimelineStatuses() []TimelineStatus {
	return []TimelineStatus{TimelineCompleted, TimelineCurrent, TimelinePending}
}

func (s TimelineStatus) Valid() bool {
	switch s {
	case TimelineCompleted, TimelineCurrent, TimelinePending:
		return true
	}
	return false
}

// TimelineEntry is one step of a call as shown to family members.
type TimelineEntry struct {
	Time   string         `json:"time" yaml:"time"`
	Event  string         `json:"event" yaml:"event"`
	Status TimelineStatus `json:"status" yaml:"status"`
}

// RouteInstruction is one leg of the driver's turn-by-turn list.
type RouteInstruction struct {
	Instruction string `json:"instruction" yaml:"instruction"`
	Distance    string `json:"distance" yaml:"distance"`
	Time        string `json:"time" yaml:"time"`
}
