// Package status maps the closed status and priority enums to their display
// metadata. Every lookup is total: values outside the closed sets resolve to a
// fallback entry instead of failing.
package status

import (
	"strings"

	"github.com/mr1hm/go-vitatrack/internal/models"
)

// Entry is the display metadata for a single status.
type Entry struct {
	Status      string `json:"status"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	TextColor   string `json:"textColor"`
	Description string `json:"description"`
	Pulse       bool   `json:"pulse"`
}

const (
	fallbackMarker = "#6b7280"
	fallbackBadge  = "muted"
)

var offline = Entry{
	Status:      string(models.AmbulanceOffline),
	Label:       "Offline",
	Color:       "bg-status-offline",
	TextColor:   "text-status-offline",
	Description: "Not available",
}

// ForAmbulance returns the entry for an ambulance status.
func ForAmbulance(s models.AmbulanceStatus) Entry {
	switch s {
	case models.AmbulanceAvailable:
		return Entry{Status: string(s), Label: "Available", Color: "bg-status-available", TextColor: "text-status-available", Description: "Ready for dispatch"}
	case models.AmbulanceDispatched:
		return Entry{Status: string(s), Label: "Dispatched", Color: "bg-status-dispatched", TextColor: "text-status-dispatched", Description: "Assigned to emergency"}
	case models.AmbulanceEnRoute:
		return Entry{Status: string(s), Label: "En Route", Color: "bg-status-enRoute", TextColor: "text-status-enRoute", Description: "Traveling to scene", Pulse: true}
	case models.AmbulanceAtScene:
		return Entry{Status: string(s), Label: "At Scene", Color: "bg-primary", TextColor: "text-primary", Description: "Arrived at location"}
	case models.AmbulanceTransporting:
		return Entry{Status: string(s), Label: "Transporting", Color: "bg-destructive", TextColor: "text-destructive", Description: "Patient on board"}
	case models.AmbulanceAtHospital:
		return Entry{Status: string(s), Label: "At Hospital", Color: "bg-status-arrived", TextColor: "text-status-arrived", Description: "Delivered to hospital"}
	case models.AmbulanceOffline:
		return offline
	}
	return offline
}

// ForTimeline returns the entry for a call-progress status.
func ForTimeline(s models.TimelineStatus) Entry {
	switch s {
	case models.TimelinePending:
		return Entry{Status: string(s), Label: "Pending", Color: "bg-warning", TextColor: "text-warning", Description: "Awaiting assignment"}
	case models.TimelineCompleted:
		return Entry{Status: string(s), Label: "Completed", Color: "bg-success", TextColor: "text-success", Description: "Call completed"}
	case models.TimelineCurrent:
		return Entry{Status: string(s), Label: "Current", Color: "bg-primary", TextColor: "text-primary", Description: "In progress", Pulse: true}
	}
	return offline
}

// Lookup resolves any status string, falling back to the offline entry.
func Lookup(s string) Entry {
	key := strings.ToLower(strings.TrimSpace(s))
	if st, ok := models.ParseAmbulanceStatus(key); ok {
		return ForAmbulance(st)
	}
	if ts := models.TimelineStatus(key); ts.Valid() {
		return ForTimeline(ts)
	}
	return offline
}

// Vocabulary returns every known entry, ambulance statuses first.
func Vocabulary() []Entry {
	entries := make([]Entry, 0, 10)
	for _, s := range models.AllAmbulanceStatuses() {
		entries = append(entries, ForAmbulance(s))
	}
	for _, s := range []models.TimelineStatus{models.TimelinePending, models.TimelineCompleted, models.TimelineCurrent} {
		entries = append(entries, ForTimeline(s))
	}
	return entries
}

// BadgeVariant is the admin table badge for an ambulance status.
func BadgeVariant(s models.AmbulanceStatus) string {
	switch s {
	case models.AmbulanceAvailable:
		return "success"
	case models.AmbulanceDispatched:
		return "warning"
	case models.AmbulanceEnRoute:
		return "secondary"
	case models.AmbulanceAtHospital:
		return "default"
	case models.AmbulanceAtScene, models.AmbulanceTransporting, models.AmbulanceOffline:
		return fallbackBadge
	}
	return fallbackBadge
}

// PriorityVariant is the badge variant for a priority.
func PriorityVariant(p models.Priority) string {
	if p.Valid() {
		return string(p)
	}
	return "default"
}

// TimelineVariant is the badge variant for a timeline step.
func TimelineVariant(s models.TimelineStatus) string {
	switch s {
	case models.TimelineCompleted:
		return "success"
	case models.TimelineCurrent:
		return "default"
	case models.TimelinePending:
		return fallbackBadge
	}
	return fallbackBadge
}

// MarkerColor is the map marker colour for an ambulance status.
func MarkerColor(s models.AmbulanceStatus) string {
	switch s {
	case models.AmbulanceAvailable:
		return "#22c55e"
	case models.AmbulanceDispatched:
		return "#f59e0b"
	case models.AmbulanceEnRoute:
		return "#3b82f6"
	case models.AmbulanceAtScene:
		return "#ef4444"
	case models.AmbulanceTransporting:
		return "#8b5cf6"
	case models.AmbulanceAtHospital:
		return "#10b981"
	case models.AmbulanceOffline:
		return fallbackMarker
	}
	return fallbackMarker
}

// PriorityMarkerColor is the map marker colour for a call priority.
func PriorityMarkerColor(p models.Priority) string {
	switch p {
	case models.PriorityCritical:
		return "#dc2626"
	case models.PriorityHigh:
		return "#f59e0b"
	case models.PriorityMedium:
		return "#3b82f6"
	case models.PriorityLow:
		return fallbackMarker
	}
	return fallbackMarker
}
