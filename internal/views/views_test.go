package views

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-vitatrack/internal/clock"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/repository"
	"github.com/mr1hm/go-vitatrack/internal/seed"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 1, 15, 14, 45, 0, 0, time.UTC)

func testDeps(t *testing.T, fc *clock.Fake) Deps {
	t.Helper()
	data, err := seed.Load("")
	require.NoError(t, err)
	return Deps{
		Seed:             data,
		Clock:            fc,
		Rand:             clock.NewSequenceRand([]float64{0.99}, []int{0}),
		AlertProbability: 0,
	}
}

// waitFor reads snapshots until match returns true.
func waitFor(t *testing.T, ch <-chan Snapshot, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "snapshot channel closed")
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestNew_UnknownRole(t *testing.T) {
	fc := clock.NewFake(epoch)
	_, err := New("dispatcher", testDeps(t, fc))
	require.True(t, errors.Is(err, models.ErrValidation))

	_, err = New(models.RoleAdmin, Deps{})
	require.Error(t, err)
}

func TestAdmin_MountUnmountReleasesEverything(t *testing.T) {
	fc := clock.NewFake(epoch)
	v, err := New(models.RoleAdmin, testDeps(t, fc))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, v.Mount(context.Background()))
		require.True(t, v.Mounted())
		// alert simulator and fleet jitter
		require.Equal(t, 2, fc.Tickers())

		err := v.Mount(context.Background())
		require.True(t, errors.Is(err, models.ErrInvalidState))

		v.Unmount()
		v.Unmount()
		require.False(t, v.Mounted())
		require.Equal(t, 0, fc.Tickers())
	}

	_, ch := v.Subscribe()
	_, ok := <-ch
	require.False(t, ok)

	err = v.Handle(context.Background(), Command{Type: CmdMarkAllRead})
	require.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestAdmin_AlertCommands(t *testing.T) {
	fc := clock.NewFake(epoch)
	v, err := New(models.RoleAdmin, testDeps(t, fc))
	require.NoError(t, err)
	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	id, ch := v.Subscribe()
	defer v.Unsubscribe(id)

	s := waitFor(t, ch, func(s Snapshot) bool { return s.Alerts != nil })
	require.Len(t, s.Alerts.Items, 3)
	require.Equal(t, 2, s.Alerts.Unread)
	require.Equal(t, "2", s.Alerts.Badge)
	require.Equal(t, "5m ago", s.Alerts.Items[0].TimeAgo)

	require.NoError(t, v.Handle(context.Background(), Command{Type: CmdMarkRead, ID: "alert-001"}))
	s = waitFor(t, ch, func(s Snapshot) bool { return s.Alerts.Unread == 1 })
	require.Len(t, s.Alerts.Items, 3)

	require.NoError(t, v.Handle(context.Background(), Command{Type: CmdDeleteAlert, ID: "alert-003"}))
	s = waitFor(t, ch, func(s Snapshot) bool { return len(s.Alerts.Items) == 2 })
	require.Equal(t, 1, s.Alerts.Unread)

	off := false
	require.NoError(t, v.Handle(context.Background(), Command{Type: CmdSetSound, Enabled: &off}))
	waitFor(t, ch, func(s Snapshot) bool { return !s.Alerts.SoundEnabled })

	err = v.Handle(context.Background(), Command{Type: CmdMarkRead})
	require.True(t, errors.Is(err, models.ErrValidation))
	err = v.Handle(context.Background(), Command{Type: "launch"})
	require.True(t, errors.Is(err, models.ErrValidation))
}

func TestAdmin_FleetCommandsAndJitter(t *testing.T) {
	fc := clock.NewFake(epoch)
	v, err := New(models.RoleAdmin, testDeps(t, fc))
	require.NoError(t, err)
	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	id, ch := v.Subscribe()
	defer v.Unsubscribe(id)

	require.NoError(t, v.Handle(context.Background(), Command{Type: CmdAssignCall, ID: "CALL-2024-157", AmbulanceID: "AMB-002"}))
	s := waitFor(t, ch, func(s Snapshot) bool { return s.Fleet != nil && s.Fleet.PendingCalls == 0 })
	require.Equal(t, models.AmbulanceDispatched, s.Fleet.Ambulances[1].Status)

	err = v.Handle(context.Background(), Command{Type: CmdSetStatus, ID: "AMB-404", Status: "offline"})
	require.True(t, errors.Is(err, models.ErrNotFound))
	err = v.Handle(context.Background(), Command{Type: CmdSetStatus, ID: "AMB-001", Status: "flying"})
	require.True(t, errors.Is(err, models.ErrValidation))

	before := v.Snapshot().Fleet.Ambulances[0].Location.Lat
	fc.Advance(5 * time.Second)
	s = waitFor(t, ch, func(s Snapshot) bool { return s.Fleet.Ambulances[0].Location.Lat != before })
	require.InDelta(t, before, s.Fleet.Ambulances[0].Location.Lat, 0.0005+1e-9)
}

func TestAdmin_SimulatedAlert(t *testing.T) {
	fc := clock.NewFake(epoch)
	deps := testDeps(t, fc)
	deps.AlertProbability = 1
	deps.Rand = clock.NewSequenceRand([]float64{0}, []int{2, 3})

	v, err := New(models.RoleAdmin, deps)
	require.NoError(t, err)
	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	id, ch := v.Subscribe()
	defer v.Unsubscribe(id)

	fc.Advance(30 * time.Second)
	s := waitFor(t, ch, func(s Snapshot) bool { return len(s.Alerts.Items) == 4 })
	require.Equal(t, "New System Alert", s.Alerts.Items[0].Title)
	require.Equal(t, models.AlertSystem, s.Alerts.Items[0].Type)
	require.Equal(t, models.PriorityLow, s.Alerts.Items[0].Priority)
	require.Equal(t, 3, s.Alerts.Unread)
}

func TestAdmin_Notifications(t *testing.T) {
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	fc := clock.NewFake(epoch)
	deps := testDeps(t, fc)
	deps.Store = db
	deps.NotificationLimit = 2

	v, err := New(models.RoleAdmin, deps)
	require.NoError(t, err)
	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	id, ch := v.Subscribe()
	defer v.Unsubscribe(id)

	waitFor(t, ch, func(s Snapshot) bool { return s.NotificationState == "subscribed" })

	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, v.Handle(context.Background(), Command{Type: CmdAddNotification, Message: msg, NotificationType: "warning"}))
	}
	s := waitFor(t, ch, func(s Snapshot) bool {
		return len(s.Notifications) == 2 && s.Notifications[0].Message == "third"
	})
	require.Equal(t, "second", s.Notifications[1].Message)
	require.Equal(t, models.NotificationWarning, s.Notifications[0].Type)

	err = v.Handle(context.Background(), Command{Type: CmdAddNotification, Message: "  "})
	require.True(t, errors.Is(err, models.ErrValidation))
}

func TestDriver(t *testing.T) {
	fc := clock.NewFake(epoch)
	v, err := New(models.RoleDriver, testDeps(t, fc))
	require.NoError(t, err)
	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	// drivers have no periodic tasks
	require.Equal(t, 0, fc.Tickers())

	s := v.Snapshot()
	require.NotNil(t, s.Driver)
	require.Equal(t, "AMB-001", s.Driver.Ambulance.ID)
	require.Equal(t, "CALL-2024-156", s.Driver.CurrentCall.ID)
	require.Len(t, s.Driver.StatusOptions, 7)
	require.Len(t, s.Driver.Route, 4)

	id, ch := v.Subscribe()
	defer v.Unsubscribe(id)

	// the id is ignored, drivers only move their own vehicle
	require.NoError(t, v.Handle(context.Background(), Command{Type: CmdSetStatus, ID: "AMB-002", Status: "at_scene"}))
	s = waitFor(t, ch, func(s Snapshot) bool { return s.Driver.Ambulance.Status == models.AmbulanceAtScene })
	require.Equal(t, "AMB-001", s.Driver.Ambulance.ID)

	require.NoError(t, v.Handle(context.Background(), Command{Type: CmdSetCallStatus, Status: "transporting"}))
	waitFor(t, ch, func(s Snapshot) bool { return s.Driver.CurrentCall.Status == models.CallTransporting })

	err = v.Handle(context.Background(), Command{Type: CmdAssignCall, ID: "CALL-2024-157"})
	require.True(t, errors.Is(err, models.ErrValidation))
}

func TestFamily_CountdownAndClock(t *testing.T) {
	fc := clock.NewFake(epoch)
	v, err := New(models.RoleFamily, testDeps(t, fc))
	require.NoError(t, err)
	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	require.Equal(t, 2, fc.Tickers())

	s := v.Snapshot()
	require.Equal(t, "8 mins", s.Family.ETA)
	require.Equal(t, "CALL-2024-156", s.Family.Call.ID)
	require.Len(t, s.Family.Timeline, 6)
	require.Equal(t, "success", s.Family.Timeline[0].Variant)
	require.Equal(t, epoch, s.Family.CurrentTime)

	id, ch := v.Subscribe()
	defer v.Unsubscribe(id)

	fc.Advance(30 * time.Second)
	waitFor(t, ch, func(s Snapshot) bool { return s.Family.ETA == "7 mins" })

	fc.Advance(30 * time.Second)
	waitFor(t, ch, func(s Snapshot) bool {
		return s.Family.CurrentTime.Equal(epoch.Add(time.Minute)) && s.Family.ETA == "6 mins"
	})

	err = v.Handle(context.Background(), Command{Type: CmdMarkAllRead})
	require.True(t, errors.Is(err, models.ErrValidation))
}
