package models

import "time"

type AlertType string

const (
	AlertTypeEmergency AlertType = "emergency"
	AlertTypeTraffic   AlertType = "traffic"
	AlertTypeSystem    AlertType = "system"
	AlertTypeHospital  AlertType = "hospital"
)

// AllAlertTypes lists every alert type in display order.
func AllAlertTypes() []AlertType {
	return []AlertType{AlertTypeEmergency, AlertTypeTraffic, AlertTypeSystem, AlertTypeHospital}
}

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeEmergency, AlertTypeTraffic, AlertTypeSystem, AlertTypeHospital:
		return true
	}
	return false
}

func ParseAlertType(s string) (AlertType, bool) {
	t := AlertType(normalize(s))
	return t, t.Valid()
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// AllPriorities lists priorities from most to least urgent.
func AllPriorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, bool) {
	p := Priority(normalize(s))
	return p, p.Valid()
}

// Alert is a transient, locally generated notice shown in a view's alert panel.
type Alert struct {
	ID          string    `json:"id" yaml:"id"`
	Type        AlertType `json:"type" yaml:"type"`
	Title       string    `json:"title" yaml:"title"`
	Message     string    `json:"message" yaml:"message"`
	Priority    Priority  `json:"priority" yaml:"priority"`
	Timestamp   time.Time `json:"timestamp" yaml:"-"`
	IsRead      bool      `json:"isRead" yaml:"isRead"`
	AmbulanceID string    `json:"ambulanceId,omitempty" yaml:"ambulanceId,omitempty"`
	Location    string    `json:"location,omitempty" yaml:"location,omitempty"`
}
