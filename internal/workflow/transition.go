package workflow

import "github.com/okothvientrevor/musawo-health-backend/internal/models"

// statusGraph is a transition table: each state maps to the set of
// states reachable from it. Terminal states map to an empty list, so
// legality is data rather than scattered conditionals.
type statusGraph[S ~string] map[S][]S

// Allowed reports whether from -> to is a legal step.
func (g statusGraph[S]) Allowed(from, to S) bool {
	for _, next := range g[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Step validates from -> to, returning InvalidTransition when the table
// does not permit it.
func (g statusGraph[S]) Step(from, to S) error {
	if !g.Allowed(from, to) {
		return ErrInvalidTransition(string(from), string(to))
	}
	return nil
}

// appointmentGraph: scheduled is the only non-terminal state.
var appointmentGraph = statusGraph[models.AppointmentStatus]{
	models.AppointmentScheduled: {
		models.AppointmentCompleted,
		models.AppointmentCancelled,
		models.AppointmentNoShow,
	},
	models.AppointmentCompleted: {},
	models.AppointmentCancelled: {},
	models.AppointmentNoShow:    {},
}

// labRequestGraph mirrors the lab request lifecycle. requested ->
// completed is deliberately absent: that edge exists only through
// result creation.
var labRequestGraph = statusGraph[models.LabRequestStatus]{
	models.LabRequested:  {models.LabProcessing, models.LabCancelled},
	models.LabProcessing: {models.LabCompleted, models.LabCancelled},
	models.LabCompleted:  {},
	models.LabCancelled:  {},
}
