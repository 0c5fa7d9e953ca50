package models

import (
	"time"

	"gorm.io/datatypes"
)

// Consultation represents the clinical record of a completed appointment.
// A nil EndTime means the consultation is still open; once set it is
// never cleared.
type Consultation struct {
	BaseModel
	AppointmentID    string         `gorm:"size:36;uniqueIndex" json:"appointmentId"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          *time.Time     `json:"endTime,omitempty"`
	Symptoms         string         `gorm:"type:text" json:"symptoms"`
	Diagnosis        string         `gorm:"type:text" json:"diagnosis,omitempty"`
	TreatmentPlan    string         `gorm:"type:text" json:"treatmentPlan,omitempty"`
	Prescription     datatypes.JSON `json:"prescription,omitempty"`
	FollowUpRequired bool           `gorm:"default:false" json:"followUpRequired"`
	FollowUpDate     *time.Time     `json:"followUpDate,omitempty"`
	HasTranscript    bool           `gorm:"default:false" json:"hasTranscript"`

	// Relations
	Appointment Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}
