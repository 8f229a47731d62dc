package views

import (
	"context"
	"sync"
	"time"

	"github.com/mr1hm/go-vitatrack/internal/fleet"
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/scheduler"
)

// Family tracks one call for the patient's relatives or the receiving
// hospital. It is read only.
type Family struct {
	base

	fleet *fleet.Feed

	clockMu sync.Mutex
	current time.Time
}

func NewFamily(deps Deps) *Family {
	f := &Family{base: newBase(models.RoleFamily, deps.withDefaults())}
	f.build = f.snapshot
	return f
}

func (f *Family) Mount(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, err := f.begin(ctx)
	if err != nil {
		return err
	}
	data := f.deps.Seed

	f.setCurrent(f.deps.Clock.Now())
	f.fleet = fleet.NewFeed(data.Only(data.Family.AmbulanceID, data.Family.CallID), f.deps.Rand, f.deps.MaxDelta)
	f.onStop(f.fleet.Close)

	fleetID, fleetCh := f.fleet.Subscribe()
	f.onStop(func() { f.fleet.Unsubscribe(fleetID) })
	watch(ctx, &f.base, fleetCh)

	// location and ETA move together on the slower tracking tick
	f.schedule(ctx, f.fleet.CountdownTask(f.deps.Intervals.Countdown))
	f.schedule(ctx, scheduler.Task{
		Name:     "family-clock",
		Interval: f.deps.Intervals.Clock,
		Run: func(_ context.Context, now time.Time) {
			f.setCurrent(now)
			f.poke()
		},
	})

	f.run(ctx)
	return nil
}

func (f *Family) setCurrent(now time.Time) {
	f.clockMu.Lock()
	f.current = now
	f.clockMu.Unlock()
}

func (f *Family) snapshot(now time.Time) Snapshot {
	data := f.deps.Seed
	vm := fleet.View(f.fleet.Snapshot())

	f.clockMu.Lock()
	current := f.current
	f.clockMu.Unlock()

	panel := &FamilyPanel{
		DistanceToPatient:   data.Family.DistanceToPatient,
		DestinationHospital: data.Family.DestinationHospital,
		HospitalAddress:     data.Family.HospitalAddress,
		Timeline:            timelineItems(data.Family.Timeline),
		CurrentTime:         current,
		ETA:                 fleet.DisplayETA(""),
	}
	if len(vm.Ambulances) > 0 {
		amb := vm.Ambulances[0]
		panel.Ambulance = &amb
		panel.ETA = amb.ETADisplay
	}
	if len(vm.Calls) > 0 {
		call := vm.Calls[0]
		panel.Call = &call
	}

	return Snapshot{Time: now, Family: panel}
}

func (f *Family) Handle(_ context.Context, cmd Command) error {
	if err := f.requireMounted(); err != nil {
		return err
	}
	return unsupported(f.role, cmd)
}
