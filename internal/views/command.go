package views

import (
	"fmt"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/models"
)

type CommandType string

const (
	CmdMarkRead        CommandType = "mark_read"
	CmdMarkAllRead     CommandType = "mark_all_read"
	CmdDeleteAlert     CommandType = "delete_alert"
	CmdSetSound        CommandType = "set_sound"
	CmdSetStatus       CommandType = "set_status"
	CmdAssignCall      CommandType = "assign_call"
	CmdSetCallStatus   CommandType = "set_call_status"
	CmdAddNotification CommandType = "add_notification"
)

// Command is a user action decoded from a client frame.
type Command struct {
	Type CommandType `json:"type"`
	// ID names the alert, ambulance or call the command targets.
	ID               string `json:"id,omitempty"`
	Status           string `json:"status,omitempty"`
	AmbulanceID      string `json:"ambulanceId,omitempty"`
	Enabled          *bool  `json:"enabled,omitempty"`
	Message          string `json:"message,omitempty"`
	NotificationType string `json:"notificationType,omitempty"`
}

func unsupported(role models.Role, cmd Command) error {
	return models.NewValidationError("type", fmt.Sprintf("%s view does not accept %q", role, cmd.Type))
}

// handleAlert applies the alert commands shared by admin and driver views.
// ok is false when cmd is not an alert command.
func handleAlert(feed *alerts.Feed, cmd Command) (ok bool, err error) {
	switch cmd.Type {
	case CmdMarkRead:
		if cmd.ID == "" {
			return true, models.NewValidationError("id", "alert id is required")
		}
		feed.MarkRead(cmd.ID)
	case CmdMarkAllRead:
		feed.MarkAllRead()
	case CmdDeleteAlert:
		if cmd.ID == "" {
			return true, models.NewValidationError("id", "alert id is required")
		}
		feed.Delete(cmd.ID)
	case CmdSetSound:
		enabled := !feed.Snapshot().SoundEnabled
		if cmd.Enabled != nil {
			enabled = *cmd.Enabled
		}
		feed.SetSound(enabled)
	default:
		return false, nil
	}
	return true, nil
}
