package seed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/models"
)

func TestLoad_Default(t *testing.T) {
	t.Parallel()

	d, err := Load("")
	require.NoError(t, err)

	require.Len(t, d.Alerts, 3)
	require.Len(t, d.Ambulances, 3)
	require.Len(t, d.Calls, 2)
	require.Len(t, d.Driver.Route, 4)
	require.Len(t, d.Family.Timeline, 6)

	require.Equal(t, models.PriorityCritical, *d.Ambulances[0].Priority)
	require.Nil(t, d.Ambulances[1].Priority)
	require.Equal(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), d.Calls[0].CreatedAt.UTC())
}

func TestAlertState(t *testing.T) {
	t.Parallel()

	d, err := Load("")
	require.NoError(t, err)

	now := time.Date(2024, 1, 15, 14, 45, 0, 0, time.UTC)
	s := d.AlertState(now, true)

	require.True(t, s.SoundEnabled)
	require.Equal(t, 2, alerts.UnreadCount(s))
	require.Equal(t, "alert-001", s.Alerts[0].ID)
	require.Equal(t, now.Add(-5*time.Minute), s.Alerts[0].Timestamp)
	require.Equal(t, "5m ago", alerts.FormatTimeAgo(s.Alerts[0].Timestamp, now))
}

func TestFleetState_IsIndependentCopy(t *testing.T) {
	t.Parallel()

	d, err := Load("")
	require.NoError(t, err)

	a := d.FleetState()
	a.Ambulances[0].Location.Lat = 0
	*a.Ambulances[0].Priority = models.PriorityLow

	b := d.FleetState()
	require.Equal(t, 40.7589, b.Ambulances[0].Location.Lat)
	require.Equal(t, models.PriorityCritical, *b.Ambulances[0].Priority)
}

func TestOnly(t *testing.T) {
	t.Parallel()

	d, err := Load("")
	require.NoError(t, err)

	s := d.Only("AMB-001", "CALL-2024-156")
	require.Len(t, s.Ambulances, 1)
	require.Len(t, s.Calls, 1)
	require.Equal(t, "Robert Chen", s.Calls[0].PatientName)
}

func TestParse_RejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"bad alert type":    "alerts: [{id: a, type: fire, priority: low}]",
		"bad priority":      "alerts: [{id: a, type: system, priority: urgent}]",
		"duplicate alert":   "alerts: [{id: a, type: system, priority: low}, {id: a, type: system, priority: low}]",
		"bad status":        "ambulances: [{id: A, status: parked}]",
		"unknown ambulance": "calls: [{id: C, status: pending, priority: low, ambulanceId: X}]",
		"bad yaml":          "alerts: [",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ambulances: [{id: A, status: offline}]\n"), 0o600))

	d, err := Load(path)
	require.NoError(t, err)
	require.Len(t, d.Ambulances, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
