package notify

import (
	"encoding/json"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
)

// Workflow event types. Each qualifying transition emits exactly one.
const (
	EventAppointmentBooked      = "AppointmentBooked"
	EventAppointmentRescheduled = "AppointmentRescheduled"
	EventAppointmentCancelled   = "AppointmentCancelled"
	EventAppointmentCompleted   = "AppointmentCompleted"
	EventAppointmentNoShow      = "AppointmentNoShow"
	EventConsultationOpened     = "ConsultationOpened"
	EventLabResultReady         = "LabResultReady"
)

// Event is what the dispatcher consumes. UserID is the notification
// target; Payload carries event-specific detail.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	UserID      string          `json:"userId"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// FromOutbox converts a stored outbox row into a dispatchable event.
func FromOutbox(row *models.OutboxEvent) Event {
	return Event{
		ID:          row.ID,
		Type:        row.EventType,
		AggregateID: row.AggregateID,
		UserID:      row.UserID,
		Payload:     json.RawMessage(row.Payload),
		OccurredAt:  row.CreatedAt,
	}
}

// notificationType maps an event type to the notification category the
// original system files it under.
func notificationType(eventType string) models.NotificationType {
	switch eventType {
	case EventLabResultReady:
		return models.NotificationLabResult
	case EventAppointmentBooked, EventAppointmentRescheduled,
		EventAppointmentCancelled, EventAppointmentCompleted,
		EventAppointmentNoShow, EventConsultationOpened:
		return models.NotificationAppointment
	default:
		return models.NotificationSystem
	}
}

// titleFor renders the short human title for an event.
func titleFor(eventType string) string {
	switch eventType {
	case EventAppointmentBooked:
		return "Appointment booked"
	case EventAppointmentRescheduled:
		return "Appointment rescheduled"
	case EventAppointmentCancelled:
		return "Appointment cancelled"
	case EventAppointmentCompleted:
		return "Appointment completed"
	case EventAppointmentNoShow:
		return "Missed appointment"
	case EventConsultationOpened:
		return "Consultation started"
	case EventLabResultReady:
		return "Lab results available"
	default:
		return eventType
	}
}
