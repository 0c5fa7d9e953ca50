package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserDirectory resolves a user to their role. Workflows use it to
// check role preconditions before touching any rows.
type UserDirectory interface {
	RoleOf(ctx context.Context, userID string) (models.Role, error)
}

// ProviderDirectory answers whether a provider can hold a schedule.
type ProviderDirectory interface {
	Exists(ctx context.Context, providerID string) (bool, error)
}

// AppointmentWorkflow owns every appointment mutation. Other workflows
// request transitions through it rather than writing appointment rows
// themselves.
type AppointmentWorkflow struct {
	db        *gorm.DB
	clock     Clock
	users     UserDirectory
	providers ProviderDirectory
	log       *zap.Logger
}

func NewAppointmentWorkflow(db *gorm.DB, clock Clock, users UserDirectory, providers ProviderDirectory, log *zap.Logger) *AppointmentWorkflow {
	return &AppointmentWorkflow{db: db, clock: clock, users: users, providers: providers, log: log}
}

// BookingInput carries everything needed to book an appointment.
type BookingInput struct {
	PatientID     string
	ProviderID    string
	ScheduledAt   time.Time
	Modality      models.AppointmentModality
	Reason        string
	Notes         string
	FeeAmount     float64
	PaymentStatus models.PaymentStatus
}

type appointmentEvent struct {
	AppointmentID string    `json:"appointmentId"`
	ProviderID    string    `json:"providerId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	Status        string    `json:"status"`
}

func validModality(m models.AppointmentModality) bool {
	switch m {
	case models.ModalityVideo, models.ModalityAudio, models.ModalityInPerson:
		return true
	}
	return false
}

func validPaymentStatus(s models.PaymentStatus) bool {
	switch s {
	case models.PaymentPending, models.PaymentPaid, models.PaymentRefunded:
		return true
	}
	return false
}

// Book creates a new scheduled appointment. The conflict probe and the
// insert run in one transaction; a lost race on the unique slot index
// surfaces as SlotConflict, never a generic storage error.
func (w *AppointmentWorkflow) Book(ctx context.Context, in BookingInput) (*models.Appointment, error) {
	if in.PatientID == "" || in.ProviderID == "" {
		return nil, ErrValidation("patient and provider are required")
	}
	if in.Reason == "" {
		return nil, ErrValidation("a reason for the appointment is required")
	}
	if !validModality(in.Modality) {
		return nil, ErrValidation("invalid appointment modality %q", in.Modality)
	}
	if in.FeeAmount < 0 {
		return nil, ErrValidation("fee amount cannot be negative")
	}
	if in.PaymentStatus == "" {
		in.PaymentStatus = models.PaymentPending
	}
	if !validPaymentStatus(in.PaymentStatus) {
		return nil, ErrValidation("invalid payment status %q", in.PaymentStatus)
	}

	at := in.ScheduledAt.UTC().Truncate(time.Minute)
	if !at.After(w.clock.Now().UTC()) {
		return nil, ErrValidation("appointment time must be in the future")
	}

	role, err := w.users.RoleOf(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if role != models.RolePatient {
		return nil, ErrValidation("the selected user is not a patient")
	}
	ok, err := w.providers.Exists(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound("provider", in.ProviderID)
	}

	slotKey := models.SlotKeyFor(in.ProviderID, at)
	appointment := models.Appointment{
		PatientID:     in.PatientID,
		ProviderID:    in.ProviderID,
		ScheduledAt:   at,
		Status:        models.AppointmentScheduled,
		Modality:      in.Modality,
		Reason:        in.Reason,
		Notes:         in.Notes,
		FeeAmount:     in.FeeAmount,
		PaymentStatus: in.PaymentStatus,
		SlotKey:       &slotKey,
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		err := tx.Model(&models.Appointment{}).
			Where("provider_id = ? AND scheduled_at = ? AND status <> ?",
				in.ProviderID, at, models.AppointmentCancelled).
			Count(&taken).Error
		if err != nil {
			return storageErr("probe slot", err)
		}
		if taken > 0 {
			return ErrSlotConflict(in.ProviderID)
		}

		if err := tx.Create(&appointment).Error; err != nil {
			return err
		}

		return w.writeEvent(tx, notify.EventAppointmentBooked, &appointment)
	})
	if err != nil {
		return nil, w.classify(err, in.ProviderID)
	}

	w.log.Info("appointment booked",
		zap.String("appointment_id", appointment.ID),
		zap.String("provider_id", in.ProviderID),
		zap.Time("scheduled_at", at))
	return &appointment, nil
}

// Reschedule moves a scheduled appointment to a new timestamp. The
// conflict check excludes the appointment's own row; status does not
// change.
func (w *AppointmentWorkflow) Reschedule(ctx context.Context, appointmentID string, newTime time.Time) (*models.Appointment, error) {
	at := newTime.UTC().Truncate(time.Minute)
	if !at.After(w.clock.Now().UTC()) {
		return nil, ErrValidation("new appointment time must be in the future")
	}

	var appointment models.Appointment
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appointment, "id = ?", appointmentID).Error; err != nil {
			return notFoundOr(err, "appointment", appointmentID)
		}
		if appointment.Status != models.AppointmentScheduled {
			return &Error{
				Kind:    KindInvalidTransition,
				Message: fmt.Sprintf("cannot reschedule a %s appointment", appointment.Status),
			}
		}

		var taken int64
		err := tx.Model(&models.Appointment{}).
			Where("provider_id = ? AND scheduled_at = ? AND status <> ? AND id <> ?",
				appointment.ProviderID, at, models.AppointmentCancelled, appointment.ID).
			Count(&taken).Error
		if err != nil {
			return storageErr("probe slot", err)
		}
		if taken > 0 {
			return ErrSlotConflict(appointment.ProviderID)
		}

		slotKey := models.SlotKeyFor(appointment.ProviderID, at)
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", appointment.ID, models.AppointmentScheduled).
			Updates(map[string]interface{}{"scheduled_at": at, "slot_key": slotKey})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &Error{
				Kind:    KindInvalidTransition,
				Message: "appointment changed status while rescheduling",
			}
		}
		appointment.ScheduledAt = at
		appointment.SlotKey = &slotKey

		return w.writeEvent(tx, notify.EventAppointmentRescheduled, &appointment)
	})
	if err != nil {
		return nil, w.classify(err, appointment.ProviderID)
	}

	w.log.Info("appointment rescheduled",
		zap.String("appointment_id", appointment.ID),
		zap.Time("scheduled_at", at))
	return &appointment, nil
}

// Cancel moves a scheduled appointment to cancelled and frees its slot.
func (w *AppointmentWorkflow) Cancel(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	return w.transition(ctx, appointmentID, models.AppointmentCancelled, notify.EventAppointmentCancelled)
}

// Complete moves a scheduled appointment to completed.
func (w *AppointmentWorkflow) Complete(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	return w.transition(ctx, appointmentID, models.AppointmentCompleted, notify.EventAppointmentCompleted)
}

// MarkNoShow moves a scheduled appointment to no_show.
func (w *AppointmentWorkflow) MarkNoShow(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	return w.transition(ctx, appointmentID, models.AppointmentNoShow, notify.EventAppointmentNoShow)
}

// CompleteViaConsultation is the trusted entry point used by the
// consultation workflow inside its own transaction. An appointment
// already completed is left alone so that a consultation can still be
// attached after a direct Complete call; terminal cancelled/no_show
// states reject as usual.
func (w *AppointmentWorkflow) CompleteViaConsultation(tx *gorm.DB, appointmentID string) error {
	var appointment models.Appointment
	if err := tx.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		return notFoundOr(err, "appointment", appointmentID)
	}
	if appointment.Status == models.AppointmentCompleted {
		return nil
	}
	return w.applyTransition(tx, &appointment, models.AppointmentCompleted, notify.EventAppointmentCompleted)
}

// Delete removes an appointment, rejecting while a consultation still
// references it.
func (w *AppointmentWorkflow) Delete(ctx context.Context, appointmentID string) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appointment models.Appointment
		if err := tx.First(&appointment, "id = ?", appointmentID).Error; err != nil {
			return notFoundOr(err, "appointment", appointmentID)
		}

		var consultations int64
		err := tx.Model(&models.Consultation{}).
			Where("appointment_id = ?", appointmentID).
			Count(&consultations).Error
		if err != nil {
			return storageErr("check consultations", err)
		}
		if consultations > 0 {
			return ErrConflict("appointment has an associated consultation")
		}

		return tx.Delete(&models.Appointment{}, "id = ?", appointmentID).Error
	})
}

func (w *AppointmentWorkflow) transition(ctx context.Context, appointmentID string, to models.AppointmentStatus, eventType string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appointment, "id = ?", appointmentID).Error; err != nil {
			return notFoundOr(err, "appointment", appointmentID)
		}
		return w.applyTransition(tx, &appointment, to, eventType)
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("appointment transitioned",
		zap.String("appointment_id", appointment.ID),
		zap.String("status", string(to)))
	return &appointment, nil
}

// applyTransition performs a guarded status write: the UPDATE is
// predicated on the status just read, so two racing callers cannot both
// apply a transition from the same state.
func (w *AppointmentWorkflow) applyTransition(tx *gorm.DB, appointment *models.Appointment, to models.AppointmentStatus, eventType string) error {
	if err := appointmentGraph.Step(appointment.Status, to); err != nil {
		return err
	}

	updates := map[string]interface{}{"status": to}
	if to == models.AppointmentCancelled {
		updates["slot_key"] = nil
	}
	res := tx.Model(&models.Appointment{}).
		Where("id = ? AND status = ?", appointment.ID, appointment.Status).
		Updates(updates)
	if res.Error != nil {
		return storageErr("update appointment status", res.Error)
	}
	if res.RowsAffected == 0 {
		var current models.Appointment
		if err := tx.First(&current, "id = ?", appointment.ID).Error; err != nil {
			return notFoundOr(err, "appointment", appointment.ID)
		}
		return ErrInvalidTransition(string(current.Status), string(to))
	}

	appointment.Status = to
	if to == models.AppointmentCancelled {
		appointment.SlotKey = nil
	}
	return w.writeEvent(tx, eventType, appointment)
}

func (w *AppointmentWorkflow) writeEvent(tx *gorm.DB, eventType string, appointment *models.Appointment) error {
	payload, err := json.Marshal(appointmentEvent{
		AppointmentID: appointment.ID,
		ProviderID:    appointment.ProviderID,
		ScheduledAt:   appointment.ScheduledAt,
		Status:        string(appointment.Status),
	})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return tx.Create(&models.OutboxEvent{
		EventType:   eventType,
		AggregateID: appointment.ID,
		UserID:      appointment.PatientID,
		Payload:     datatypes.JSON(payload),
	}).Error
}

// classify turns low-level booking failures into taxonomy errors. A
// duplicate slot key is the unique index winning a race the probe
// missed.
func (w *AppointmentWorkflow) classify(err error, providerID string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSlotConflict(providerID)
	}
	var we *Error
	if errors.As(err, &we) {
		return err
	}
	return storageErr("book appointment", err)
}
