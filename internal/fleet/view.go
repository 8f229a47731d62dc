package fleet

import (
	"github.com/mr1hm/go-vitatrack/internal/models"
	"github.com/mr1hm/go-vitatrack/internal/status"
)

// AmbulanceView is an ambulance with its derived display fields.
type AmbulanceView struct {
	models.Ambulance
	// Ordinal is the 1-based position on the board and map.
	Ordinal         int          `json:"ordinal"`
	StatusEntry     status.Entry `json:"statusEntry"`
	Badge           string       `json:"badge"`
	MarkerColor     string       `json:"markerColor"`
	PriorityVariant string       `json:"priorityVariant,omitempty"`
	ETADisplay      string       `json:"etaDisplay"`
	// MarkerLeft and MarkerTop place the marker on the placeholder map, in percent.
	MarkerLeft int `json:"markerLeft"`
	MarkerTop  int `json:"markerTop"`
}

type CallView struct {
	models.EmergencyCall
	PriorityVariant string `json:"priorityVariant"`
	MarkerColor     string `json:"markerColor"`
	Assigned        bool   `json:"assigned"`
}

type ViewModel struct {
	Ambulances   []AmbulanceView                `json:"ambulances"`
	Calls        []CallView                     `json:"calls"`
	StatusCounts map[models.AmbulanceStatus]int `json:"statusCounts"`
	Active       int                            `json:"active"`
	PendingCalls int                            `json:"pendingCalls"`
}

// View derives the display model from a snapshot.
func View(s State) ViewModel {
	vm := ViewModel{
		Ambulances:   make([]AmbulanceView, 0, len(s.Ambulances)),
		Calls:        make([]CallView, 0, len(s.Calls)),
		StatusCounts: make(map[models.AmbulanceStatus]int),
	}

	for i, a := range s.Ambulances {
		av := AmbulanceView{
			Ambulance:   a.Clone(),
			Ordinal:     i + 1,
			StatusEntry: status.ForAmbulance(a.Status),
			Badge:       status.BadgeVariant(a.Status),
			MarkerColor: status.MarkerColor(a.Status),
			ETADisplay:  DisplayETA(a.ETA),
			MarkerLeft:  30 + i*15,
			MarkerTop:   40 + i*10,
		}
		if a.Priority != nil {
			av.PriorityVariant = status.PriorityVariant(*a.Priority)
		}
		vm.Ambulances = append(vm.Ambulances, av)

		vm.StatusCounts[a.Status]++
		if a.Status != models.AmbulanceOffline {
			vm.Active++
		}
	}

	for _, c := range s.Calls {
		vm.Calls = append(vm.Calls, CallView{
			EmergencyCall:   c,
			PriorityVariant: status.PriorityVariant(c.Priority),
			MarkerColor:     status.PriorityMarkerColor(c.Priority),
			Assigned:        c.AmbulanceID != "",
		})
		if c.Status == models.CallPending {
			vm.PendingCalls++
		}
	}

	return vm
}
