package models

import "time"

type NotificationType string

const (
	NotificationInfo     NotificationType = "info"
	NotificationWarning  NotificationType = "warning"
	NotificationCritical NotificationType = "critical"
)

func AllNotificationTypes() []NotificationType {
	return []NotificationType{NotificationInfo, NotificationWarning, NotificationCritical}
}

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationWarning, NotificationCritical:
		return true
	}
	return false
}

// ParseNotificationType falls back to info for anything outside the closed set.
func ParseNotificationType(s string) (NotificationType, bool) {
	t := NotificationType(normalize(s))
	if !t.Valid() {
		return NotificationInfo, false
	}
	return t, true
}

// Notification is a record owned by the external store and mirrored read-only
// into views.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"createdAt"`
	IsRead    bool             `json:"isRead"`
	Type      NotificationType `json:"type"`
}

// NewNotification is the payload of an append; the store assigns ID and CreatedAt.
type NewNotification struct {
	Message string
	Type    NotificationType
}
