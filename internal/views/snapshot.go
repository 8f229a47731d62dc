package views

import (
	"time"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/fleet"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/status"
)

// Snapshot is the whole state of one view at one instant.
type Snapshot struct {
	Role models.Role `json:"role"`
	// Seq increases by one for every published snapshot of a mount.
	Seq  uint64    `json:"seq"`
	Time time.Time `json:"time"`

	Alerts            *AlertsPanel          `json:"alerts,omitempty"`
	Fleet             *fleet.ViewModel      `json:"fleet,omitempty"`
	Notifications     []models.Notification `json:"notifications,omitempty"`
	NotificationState string                `json:"notificationState,omitempty"`
	Driver            *DriverPanel          `json:"driver,omitempty"`
	Family            *FamilyPanel          `json:"family,omitempty"`
}

type AlertItem struct {
	models.Alert
	TimeAgo         string `json:"timeAgo"`
	PriorityVariant string `json:"priorityVariant"`
}

type AlertsPanel struct {
	Items        []AlertItem `json:"items"`
	Unread       int         `json:"unread"`
	Badge        string      `json:"badge,omitempty"`
	SoundEnabled bool        `json:"soundEnabled"`
}

func alertsPanel(s alerts.State, now time.Time) *AlertsPanel {
	p := &AlertsPanel{
		Items:        make([]AlertItem, 0, len(s.Alerts)),
		Unread:       alerts.UnreadCount(s),
		SoundEnabled: s.SoundEnabled,
	}
	p.Badge = alerts.UnreadBadge(p.Unread)
	for _, a := range s.Alerts {
		p.Items = append(p.Items, AlertItem{
			Alert:           a,
			TimeAgo:         alerts.FormatTimeAgo(a.Timestamp, now),
			PriorityVariant: status.PriorityVariant(a.Priority),
		})
	}
	return p
}

type DriverPanel struct {
	Ambulance           *fleet.AmbulanceView      `json:"ambulance,omitempty"`
	CurrentCall         *fleet.CallView           `json:"currentCall,omitempty"`
	StatusOptions       []status.Entry            `json:"statusOptions"`
	SpecialInstructions string                    `json:"specialInstructions,omitempty"`
	HospitalDestination string                    `json:"hospitalDestination,omitempty"`
	Route               []models.RouteInstruction `json:"route"`
}

type TimelineItem struct {
	models.TimelineEntry
	Variant string       `json:"variant"`
	Entry   status.Entry `json:"entry"`
}

type FamilyPanel struct {
	Call                *fleet.CallView      `json:"call,omitempty"`
	Ambulance           *fleet.AmbulanceView `json:"ambulance,omitempty"`
	ETA                 string               `json:"eta"`
	DistanceToPatient   string               `json:"distanceToPatient,omitempty"`
	DestinationHospital string               `json:"destinationHospital,omitempty"`
	HospitalAddress     string               `json:"hospitalAddress,omitempty"`
	Timeline            []TimelineItem       `json:"timeline"`
	// CurrentTime only moves on the clock refresh task.
	CurrentTime time.Time `json:"currentTime"`
}

func timelineItems(entries []models.TimelineEntry) []TimelineItem {
	out := make([]TimelineItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, TimelineItem{
			TimelineEntry: e,
			Variant:       status.TimelineVariant(e.Status),
			Entry:         status.ForTimeline(e.Status),
		})
	}
	return out
}

func statusOptions() []status.Entry {
	all := models.AllAmbulanceStatuses()
	out := make([]status.Entry, 0, len(all))
	for _, s := range all {
		out = append(out, status.ForAmbulance(s))
	}
	return out
}
