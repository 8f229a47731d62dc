package views

import (
	"context"
	"time"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/fleet"
	"github.com/mr1hm/go-vitatrack/internal/models"
)

// Driver follows a single ambulance and the call it is serving.
type Driver struct {
	base

	ambulanceID string
	alerts      *alerts.Feed
	fleet       *fleet.Feed
}

func NewDriver(deps Deps) *Driver {
	d := &Driver{base: newBase(models.RoleDriver, deps.withDefaults())}
	d.ambulanceID = d.deps.Seed.Driver.AmbulanceID
	d.build = d.snapshot
	return d
}

func (d *Driver) Mount(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, err := d.begin(ctx)
	if err != nil {
		return err
	}
	data := d.deps.Seed

	callID := ""
	for _, a := range data.Ambulances {
		if a.ID == d.ambulanceID {
			callID = a.CurrentCallID
		}
	}

	d.alerts = alerts.NewFeed(data.AlertState(d.deps.Clock.Now(), true))
	d.fleet = fleet.NewFeed(data.Only(d.ambulanceID, callID), d.deps.Rand, d.deps.MaxDelta)
	d.onStop(d.alerts.Close)
	d.onStop(d.fleet.Close)

	alertID, alertCh := d.alerts.Subscribe()
	fleetID, fleetCh := d.fleet.Subscribe()
	d.onStop(func() { d.alerts.Unsubscribe(alertID) })
	d.onStop(func() { d.fleet.Unsubscribe(fleetID) })
	watch(ctx, &d.base, alertCh)
	watch(ctx, &d.base, fleetCh)

	d.run(ctx)
	return nil
}

func (d *Driver) snapshot(now time.Time) Snapshot {
	data := d.deps.Seed
	vm := fleet.View(d.fleet.Snapshot())

	panel := &DriverPanel{
		StatusOptions:       statusOptions(),
		SpecialInstructions: data.Driver.SpecialInstructions,
		HospitalDestination: data.Driver.HospitalDestination,
		Route:               data.Driver.Route,
	}
	if len(vm.Ambulances) > 0 {
		amb := vm.Ambulances[0]
		panel.Ambulance = &amb
		for _, c := range vm.Calls {
			if c.ID == amb.CurrentCallID {
				call := c
				panel.CurrentCall = &call
			}
		}
	}

	return Snapshot{
		Time:   now,
		Alerts: alertsPanel(d.alerts.Snapshot(), now),
		Driver: panel,
	}
}

func (d *Driver) Handle(_ context.Context, cmd Command) error {
	if err := d.requireMounted(); err != nil {
		return err
	}

	if ok, err := handleAlert(d.alerts, cmd); ok {
		return err
	}

	switch cmd.Type {
	case CmdSetStatus:
		st, ok := models.ParseAmbulanceStatus(cmd.Status)
		if !ok {
			return models.NewValidationError("status", "unknown ambulance status")
		}
		// drivers only ever change their own vehicle
		_, err := d.fleet.SetAmbulanceStatus(d.ambulanceID, st)
		return err
	case CmdSetCallStatus:
		st, ok := models.ParseCallStatus(cmd.Status)
		if !ok {
			return models.NewValidationError("status", "unknown call status")
		}
		amb := d.fleet.Snapshot().Ambulances
		if len(amb) == 0 || amb[0].CurrentCallID == "" {
			return models.NewValidationError("id", "no active call")
		}
		_, err := d.fleet.SetCallStatus(amb[0].CurrentCallID, st)
		return err
	}
	return unsupported(d.role, cmd)
}
