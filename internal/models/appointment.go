package models

import (
	"fmt"
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// AppointmentModality represents how the appointment is held
type AppointmentModality string

const (
	ModalityVideo    AppointmentModality = "video"
	ModalityAudio    AppointmentModality = "audio"
	ModalityInPerson AppointmentModality = "in_person"
)

// PaymentStatus represents the payment state of an appointment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Appointment represents a scheduled clinical appointment.
//
// SlotKey encodes (provider, timestamp) while the appointment is
// non-cancelled and is NULL once cancelled. Its unique index is the
// storage-level guarantee that a provider holds at most one live
// appointment per timestamp; multiple cancelled rows may share a slot
// because NULLs never collide.
type Appointment struct {
	BaseModel
	PatientID     string              `gorm:"size:36;index" json:"patientId"`
	ProviderID    string              `gorm:"size:36;index" json:"providerId"`
	ScheduledAt   time.Time           `gorm:"index" json:"scheduledAt"`
	Status        AppointmentStatus   `gorm:"size:20;default:'scheduled'" json:"status"`
	Modality      AppointmentModality `gorm:"size:20" json:"modality"`
	Reason        string              `gorm:"type:text" json:"reason"`
	Notes         string              `gorm:"type:text" json:"notes"`
	FeeAmount     float64             `gorm:"type:decimal(10,2)" json:"feeAmount"`
	PaymentStatus PaymentStatus       `gorm:"size:20;default:'pending'" json:"paymentStatus"`
	SlotKey       *string             `gorm:"size:80;uniqueIndex" json:"-"`

	// Relations
	Patient  User `gorm:"foreignKey:PatientID" json:"-"`
	Provider User `gorm:"foreignKey:ProviderID" json:"-"`
}

// SlotKeyFor builds the unique slot key for a provider at a timestamp.
func SlotKeyFor(providerID string, at time.Time) string {
	return fmt.Sprintf("%s@%s", providerID, at.UTC().Format(time.RFC3339))
}
