package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConsultationWorkflow owns consultation mutation. Appointment
// transitions it needs go through the appointment workflow's trusted
// entry point, never by writing appointment rows directly.
type ConsultationWorkflow struct {
	db           *gorm.DB
	clock        Clock
	appointments *AppointmentWorkflow
	log          *zap.Logger
}

func NewConsultationWorkflow(db *gorm.DB, clock Clock, appointments *AppointmentWorkflow, log *zap.Logger) *ConsultationWorkflow {
	return &ConsultationWorkflow{db: db, clock: clock, appointments: appointments, log: log}
}

// OpenConsultationInput carries the fields needed to start a consultation.
type OpenConsultationInput struct {
	AppointmentID string
	StartTime     time.Time
	Symptoms      string
	Prescription  json.RawMessage
}

// Open starts the consultation for an appointment and completes the
// appointment in the same transaction. At most one consultation may
// exist per appointment.
func (w *ConsultationWorkflow) Open(ctx context.Context, in OpenConsultationInput) (*models.Consultation, error) {
	if in.AppointmentID == "" {
		return nil, ErrValidation("appointment is required")
	}
	if in.Symptoms == "" {
		return nil, ErrValidation("symptoms are required")
	}
	if in.StartTime.IsZero() {
		in.StartTime = w.clock.Now()
	}

	consultation := models.Consultation{
		AppointmentID: in.AppointmentID,
		StartTime:     in.StartTime,
		Symptoms:      in.Symptoms,
		Prescription:  datatypes.JSON(in.Prescription),
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var appointment models.Appointment
		if err := tx.First(&appointment, "id = ?", in.AppointmentID).Error; err != nil {
			return notFoundOr(err, "appointment", in.AppointmentID)
		}

		var existing int64
		err := tx.Model(&models.Consultation{}).
			Where("appointment_id = ?", in.AppointmentID).
			Count(&existing).Error
		if err != nil {
			return storageErr("check existing consultation", err)
		}
		if existing > 0 {
			return ErrAlreadyExists("a consultation already exists for this appointment")
		}

		if err := w.appointments.CompleteViaConsultation(tx, in.AppointmentID); err != nil {
			return err
		}

		if err := tx.Create(&consultation).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyExists("a consultation already exists for this appointment")
			}
			return storageErr("create consultation", err)
		}

		payload, err := json.Marshal(map[string]string{
			"consultationId": consultation.ID,
			"appointmentId":  in.AppointmentID,
		})
		if err != nil {
			return err
		}
		return tx.Create(&models.OutboxEvent{
			EventType:   notify.EventConsultationOpened,
			AggregateID: consultation.ID,
			UserID:      appointment.PatientID,
			Payload:     datatypes.JSON(payload),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("consultation opened",
		zap.String("consultation_id", consultation.ID),
		zap.String("appointment_id", in.AppointmentID))
	return &consultation, nil
}

// End stamps the consultation's end time. Once set it is immutable.
func (w *ConsultationWorkflow) End(ctx context.Context, consultationID string) (*models.Consultation, error) {
	var consultation models.Consultation
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&consultation, "id = ?", consultationID).Error; err != nil {
			return notFoundOr(err, "consultation", consultationID)
		}
		if consultation.EndTime != nil {
			return &Error{Kind: KindInvalidTransition, Message: "consultation is already ended"}
		}

		now := w.clock.Now()
		res := tx.Model(&models.Consultation{}).
			Where("id = ? AND end_time IS NULL", consultationID).
			Update("end_time", now)
		if res.Error != nil {
			return storageErr("end consultation", res.Error)
		}
		if res.RowsAffected == 0 {
			return &Error{Kind: KindInvalidTransition, Message: "consultation is already ended"}
		}
		consultation.EndTime = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("consultation ended", zap.String("consultation_id", consultationID))
	return &consultation, nil
}

// UpdateConsultationInput carries the clinically editable fields.
type UpdateConsultationInput struct {
	Diagnosis        *string
	TreatmentPlan    *string
	Prescription     json.RawMessage
	FollowUpRequired *bool
	FollowUpDate     *time.Time
}

// Update edits the clinical free-text fields. It never touches the end
// time; End is the only way to close a consultation.
func (w *ConsultationWorkflow) Update(ctx context.Context, consultationID string, in UpdateConsultationInput) (*models.Consultation, error) {
	var consultation models.Consultation
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&consultation, "id = ?", consultationID).Error; err != nil {
			return notFoundOr(err, "consultation", consultationID)
		}

		if in.FollowUpDate != nil && !in.FollowUpDate.After(consultation.StartTime) {
			return ErrValidation("follow-up date must be after the consultation start")
		}

		if in.Diagnosis != nil {
			consultation.Diagnosis = *in.Diagnosis
		}
		if in.TreatmentPlan != nil {
			consultation.TreatmentPlan = *in.TreatmentPlan
		}
		if in.Prescription != nil {
			consultation.Prescription = datatypes.JSON(in.Prescription)
		}
		if in.FollowUpRequired != nil {
			consultation.FollowUpRequired = *in.FollowUpRequired
		}
		if in.FollowUpDate != nil {
			consultation.FollowUpDate = in.FollowUpDate
		}

		return tx.Save(&consultation).Error
	})
	if err != nil {
		return nil, err
	}
	return &consultation, nil
}

// Delete removes a consultation unless a transcript depends on it.
func (w *ConsultationWorkflow) Delete(ctx context.Context, consultationID string) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var consultation models.Consultation
		if err := tx.First(&consultation, "id = ?", consultationID).Error; err != nil {
			return notFoundOr(err, "consultation", consultationID)
		}
		if consultation.HasTranscript {
			return ErrConflict("cannot delete consultation with associated transcript")
		}
		return tx.Delete(&models.Consultation{}, "id = ?", consultationID).Error
	})
}
