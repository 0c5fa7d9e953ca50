package models

import (
	"time"

	"gorm.io/datatypes"
)

// LabRequestStatus represents the status of a lab request
type LabRequestStatus string

const (
	LabRequested  LabRequestStatus = "requested"
	LabProcessing LabRequestStatus = "processing"
	LabCompleted  LabRequestStatus = "completed"
	LabCancelled  LabRequestStatus = "cancelled"
)

// UrgencyLevel represents how urgently a lab request must be handled
type UrgencyLevel string

const (
	UrgencyRoutine   UrgencyLevel = "routine"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyEmergency UrgencyLevel = "emergency"
)

// LabRequest represents an order for laboratory tests.
type LabRequest struct {
	BaseModel
	PatientID      string           `gorm:"size:36;index" json:"patientId"`
	ProviderID     string           `gorm:"size:36;index" json:"providerId"`
	LaboratoryID   string           `gorm:"size:36;index" json:"laboratoryId"`
	TestsRequested datatypes.JSON   `json:"testsRequested"`
	UrgencyLevel   UrgencyLevel     `gorm:"size:20;default:'routine'" json:"urgencyLevel"`
	Notes          string           `gorm:"type:text" json:"notes,omitempty"`
	Status         LabRequestStatus `gorm:"size:20;default:'requested'" json:"status"`

	// Relations
	Patient  User `gorm:"foreignKey:PatientID" json:"-"`
	Provider User `gorm:"foreignKey:ProviderID" json:"-"`
}

// ResultEntry is one measured value within a lab result.
type ResultEntry struct {
	TestName    string `json:"testName"`
	Value       string `json:"value"`
	NormalRange string `json:"normalRange"`
	IsAbnormal  bool   `json:"isAbnormal"`
}

// LabResult represents the outcome of a completed lab request.
type LabResult struct {
	BaseModel
	LabRequestID  string         `gorm:"size:36;uniqueIndex" json:"labRequestId"`
	Results       datatypes.JSON `json:"results"`
	TechnicianID  string         `gorm:"size:36;index" json:"technicianId"`
	ResultDate    time.Time      `json:"resultDate"`
	AttachmentRef string         `gorm:"size:512" json:"attachmentRef,omitempty"`
	Notes         string         `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	LabRequest LabRequest `gorm:"foreignKey:LabRequestID" json:"-"`
	Technician User       `gorm:"foreignKey:TechnicianID" json:"-"`
}
