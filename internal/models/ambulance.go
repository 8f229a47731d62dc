package models

import "strings"

type AmbulanceStatus string

const (
	AmbulanceAvailable    AmbulanceStatus = "available"
	AmbulanceDispatched   AmbulanceStatus = "dispatched"
	AmbulanceEnRoute      AmbulanceStatus = "en_route"
	AmbulanceAtScene      AmbulanceStatus = "at_scene"
	AmbulanceTransporting AmbulanceStatus = "transporting"
	AmbulanceAtHospital   AmbulanceStatus = "at_hospital"
	AmbulanceOffline      AmbulanceStatus = "offline"
)

// AllAmbulanceStatuses lists statuses in the order a call progresses through them.
func AllAmbulanceStatuses() []AmbulanceStatus {
	return []AmbulanceStatus{
		AmbulanceAvailable,
		AmbulanceDispatched,
		AmbulanceEnRoute,
		AmbulanceAtScene,
		AmbulanceTransporting,
		AmbulanceAtHospital,
		AmbulanceOffline,
	}
}

func (s AmbulanceStatus) Valid() bool {
	switch s {
	case AmbulanceAvailable, AmbulanceDispatched, AmbulanceEnRoute, AmbulanceAtScene,
		AmbulanceTransporting, AmbulanceAtHospital, AmbulanceOffline:
		return true
	}
	return false
}

func ParseAmbulanceStatus(s string) (AmbulanceStatus, bool) {
	st := AmbulanceStatus(normalize(s))
	return st, st.Valid()
}

type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type Ambulance struct {
	ID            string          `json:"id" yaml:"id"`
	VehicleNumber string          `json:"vehicleNumber" yaml:"vehicleNumber"`
	Status        AmbulanceStatus `json:"status" yaml:"status"`
	DriverName    string          `json:"driverName" yaml:"driverName"`
	CurrentCallID string          `json:"currentCallId,omitempty" yaml:"currentCallId,omitempty"`
	Location      Location        `json:"location" yaml:"location"`
	ETA           string          `json:"eta,omitempty" yaml:"eta,omitempty"`
	Priority      *Priority       `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Clone returns a copy that shares no pointers with a.
func (a Ambulance) Clone() Ambulance {
	if a.Priority != nil {
		p := *a.Priority
		a.Priority = &p
	}
	return a
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "-", "_")
}
