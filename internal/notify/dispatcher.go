package notify

import (
	"context"
	"fmt"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dispatcher delivers a workflow event to its consumer. Implementations
// must treat Enqueue as fire-and-forget from the workflow's point of
// view: a failure is retried by the relay, never propagated back into
// the transition that produced the event.
type Dispatcher interface {
	Enqueue(ctx context.Context, event Event) error
}

// DBDispatcher materializes events as notification rows. This is the
// default sink when no message broker is configured.
type DBDispatcher struct {
	db *gorm.DB
}

func NewDBDispatcher(db *gorm.DB) *DBDispatcher {
	return &DBDispatcher{db: db}
}

func (d *DBDispatcher) Enqueue(ctx context.Context, event Event) error {
	notification := models.Notification{
		UserID:  event.UserID,
		Title:   titleFor(event.Type),
		Message: messageFor(event),
		Type:    notificationType(event.Type),
		Data:    datatypes.JSON(event.Payload),
	}
	if err := d.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return fmt.Errorf("create notification for event %s: %w", event.ID, err)
	}
	return nil
}

func messageFor(event Event) string {
	switch event.Type {
	case EventAppointmentBooked:
		return "Your appointment has been booked."
	case EventAppointmentRescheduled:
		return "Your appointment has been moved to a new time."
	case EventAppointmentCancelled:
		return "Your appointment has been cancelled."
	case EventAppointmentCompleted:
		return "Your appointment has been completed."
	case EventAppointmentNoShow:
		return "You missed your scheduled appointment."
	case EventConsultationOpened:
		return "Your consultation has started."
	case EventLabResultReady:
		return "Your lab results are ready to view."
	default:
		return "You have a new notification."
	}
}
