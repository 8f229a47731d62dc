// Package seed loads the fixture data every new view starts from.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-vitatrack/internal/alerts"
	"github.com/mr1hm/go-vitatrack/internal/fleet"
	"github.com/mr1hm/go-vitatrack/internal/models"
)

//go:embed default.yaml
var defaultSeed []byte

type AlertFixture struct {
	models.Alert `yaml:",inline"`
	AgeMinutes   int `yaml:"ageMinutes"`
}

type DriverFixture struct {
	AmbulanceID         string                    `yaml:"ambulanceId"`
	SpecialInstructions string                    `yaml:"specialInstructions"`
	HospitalDestination string                    `yaml:"hospitalDestination"`
	Route               []models.RouteInstruction `yaml:"route"`
}

type FamilyFixture struct {
	CallID              string                 `yaml:"callId"`
	AmbulanceID         string                 `yaml:"ambulanceId"`
	DistanceToPatient   string                 `yaml:"distanceToPatient"`
	DestinationHospital string                 `yaml:"destinationHospital"`
	HospitalAddress     string                 `yaml:"hospitalAddress"`
	Timeline            []models.TimelineEntry `yaml:"timeline"`
}

type Data struct {
	Alerts     []AlertFixture         `yaml:"alerts"`
	Ambulances []models.Ambulance     `yaml:"ambulances"`
	Calls      []models.EmergencyCall `yaml:"calls"`
	Driver     DriverFixture          `yaml:"driver"`
	Family     FamilyFixture          `yaml:"family"`
}

// Load reads fixtures from path, or the embedded defaults when path is empty.
func Load(path string) (*Data, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading seed file: %w", err)
		}
		raw = b
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("error decoding seed: %w", err)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (d *Data) validate() error {
	seen := make(map[string]bool)
	for _, a := range d.Alerts {
		if a.ID == "" || seen[a.ID] {
			return fmt.Errorf("seed alert: missing or duplicate id %q", a.ID)
		}
		seen[a.ID] = true
		if !a.Type.Valid() {
			return fmt.Errorf("seed alert %s: invalid type %q", a.ID, a.Type)
		}
		if !a.Priority.Valid() {
			return fmt.Errorf("seed alert %s: invalid priority %q", a.ID, a.Priority)
		}
	}

	ambulances := make(map[string]bool)
	for _, a := range d.Ambulances {
		if a.ID == "" || ambulances[a.ID] {
			return fmt.Errorf("seed ambulance: missing or duplicate id %q", a.ID)
		}
		ambulances[a.ID] = true
		if !a.Status.Valid() {
			return fmt.Errorf("seed ambulance %s: invalid status %q", a.ID, a.Status)
		}
		if a.Priority != nil && !a.Priority.Valid() {
			return fmt.Errorf("seed ambulance %s: invalid priority %q", a.ID, *a.Priority)
		}
	}

	calls := make(map[string]bool)
	for _, c := range d.Calls {
		if c.ID == "" || calls[c.ID] {
			return fmt.Errorf("seed call: missing or duplicate id %q", c.ID)
		}
		calls[c.ID] = true
		if !c.Status.Valid() {
			return fmt.Errorf("seed call %s: invalid status %q", c.ID, c.Status)
		}
		if !c.Priority.Valid() {
			return fmt.Errorf("seed call %s: invalid priority %q", c.ID, c.Priority)
		}
		if c.AmbulanceID != "" && !ambulances[c.AmbulanceID] {
			return fmt.Errorf("seed call %s: unknown ambulance %q", c.ID, c.AmbulanceID)
		}
	}

	if d.Driver.AmbulanceID != "" && !ambulances[d.Driver.AmbulanceID] {
		return fmt.Errorf("seed driver: unknown ambulance %q", d.Driver.AmbulanceID)
	}
	if d.Family.AmbulanceID != "" && !ambulances[d.Family.AmbulanceID] {
		return fmt.Errorf("seed family: unknown ambulance %q", d.Family.AmbulanceID)
	}
	if d.Family.CallID != "" && !calls[d.Family.CallID] {
		return fmt.Errorf("seed family: unknown call %q", d.Family.CallID)
	}
	for _, e := range d.Family.Timeline {
		if !e.Status.Valid() {
			return fmt.Errorf("seed timeline %q: invalid status %q", e.Event, e.Status)
		}
	}
	return nil
}

// AlertState stamps fixture alerts relative to now, newest first.
func (d *Data) AlertState(now time.Time, soundEnabled bool) alerts.State {
	out := make([]models.Alert, 0, len(d.Alerts))
	for _, f := range d.Alerts {
		a := f.Alert
		a.Timestamp = now.Add(-time.Duration(f.AgeMinutes) * time.Minute)
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return alerts.State{Alerts: out, SoundEnabled: soundEnabled}
}

// FleetState returns a fresh copy of the ambulances and calls.
func (d *Data) FleetState() fleet.State {
	s := fleet.State{
		Ambulances: make([]models.Ambulance, len(d.Ambulances)),
		Calls:      make([]models.EmergencyCall, len(d.Calls)),
	}
	for i, a := range d.Ambulances {
		s.Ambulances[i] = a.Clone()
	}
	copy(s.Calls, d.Calls)
	return s
}

// Only returns the subset of the fleet that a single-ambulance view tracks.
func (d *Data) Only(ambulanceID, callID string) fleet.State {
	full := d.FleetState()
	var s fleet.State
	for _, a := range full.Ambulances {
		if a.ID == ambulanceID {
			s.Ambulances = append(s.Ambulances, a)
		}
	}
	for _, c := range full.Calls {
		if c.ID == callID {
			s.Calls = append(s.Calls, c)
		}
	}
	return s
}
