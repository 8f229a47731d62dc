package views

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/fleet"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/notifications"
)

// Admin is the dispatcher board: every ambulance and call, the simulated
// alert feed and the live notification list.
type Admin struct {
	base

	alerts *alerts.Feed
	fleet  *fleet.Feed
	bridge *notifications.Bridge
}

func NewAdmin(deps Deps) *Admin {
	a := &Admin{base: newBase(models.RoleAdmin, deps.withDefaults())}
	a.build = a.snapshot
	return a
}

func (a *Admin) Mount(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, err := a.begin(ctx)
	if err != nil {
		return err
	}
	d := a.deps

	a.alerts = alerts.NewFeed(d.Seed.AlertState(d.Clock.Now(), true))
	a.fleet = fleet.NewFeed(d.Seed.FleetState(), d.Rand, d.MaxDelta)
	a.onStop(a.alerts.Close)
	a.onStop(a.fleet.Close)

	alertID, alertCh := a.alerts.Subscribe()
	fleetID, fleetCh := a.fleet.Subscribe()
	a.onStop(func() { a.alerts.Unsubscribe(alertID) })
	a.onStop(func() { a.fleet.Unsubscribe(fleetID) })
	watch(ctx, &a.base, alertCh)
	watch(ctx, &a.base, fleetCh)

	a.bridge = nil
	if d.Store != nil {
		a.bridge = notifications.NewBridge(d.Store, d.NotificationLimit, d.Retry)
		a.onStop(a.bridge.Close)
		bridgeID, bridgeCh := a.bridge.Subscribe()
		a.onStop(func() { a.bridge.Unsubscribe(bridgeID) })
		watch(ctx, &a.base, bridgeCh)

		// a stale list is better than no board
		if err := a.bridge.Mount(ctx); err != nil {
			zap.L().Error("admin view running without live notifications", zap.Error(err))
		}
	}

	sim := alerts.NewSimulator(a.alerts, alerts.SimulatorOptions{
		Probability: d.AlertProbability,
		Rand:        d.Rand,
		Sounder:     d.Sounder,
	})
	a.schedule(ctx, sim.Task(d.Intervals.Alerts))
	a.schedule(ctx, a.fleet.JitterTask(d.Intervals.Jitter))

	a.run(ctx)
	return nil
}

func (a *Admin) snapshot(now time.Time) Snapshot {
	vm := fleet.View(a.fleet.Snapshot())
	s := Snapshot{
		Time:   now,
		Alerts: alertsPanel(a.alerts.Snapshot(), now),
		Fleet:  &vm,
	}
	if a.bridge != nil {
		s.Notifications = a.bridge.Mirror()
		s.NotificationState = a.bridge.State().String()
	}
	return s
}

func (a *Admin) Handle(ctx context.Context, cmd Command) error {
	if err := a.requireMounted(); err != nil {
		return err
	}

	if ok, err := handleAlert(a.alerts, cmd); ok {
		return err
	}

	switch cmd.Type {
	case CmdSetStatus:
		st, ok := models.ParseAmbulanceStatus(cmd.Status)
		if !ok {
			return models.NewValidationError("status", "unknown ambulance status")
		}
		_, err := a.fleet.SetAmbulanceStatus(cmd.ID, st)
		return err
	case CmdAssignCall:
		_, err := a.fleet.AssignCall(cmd.ID, cmd.AmbulanceID)
		return err
	case CmdSetCallStatus:
		st, ok := models.ParseCallStatus(cmd.Status)
		if !ok {
			return models.NewValidationError("status", "unknown call status")
		}
		_, err := a.fleet.SetCallStatus(cmd.ID, st)
		return err
	case CmdAddNotification:
		if a.bridge == nil {
			return models.NewValidationError("type", "notifications are not configured")
		}
		typ, _ := models.ParseNotificationType(cmd.NotificationType)
		_, err := a.bridge.Submit(ctx, cmd.Message, typ)
		return err
	}
	return unsupported(a.role, cmd)
}
