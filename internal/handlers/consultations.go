package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okothvientrevor/musawo-health-backend/internal/middleware"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/utils"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"gorm.io/gorm"
)

// ConsultationHandler handles consultation related requests.
type ConsultationHandler struct {
	DB       *gorm.DB
	Workflow *workflow.ConsultationWorkflow
}

// NewConsultationHandler creates a new ConsultationHandler.
func NewConsultationHandler(db *gorm.DB, wf *workflow.ConsultationWorkflow) *ConsultationHandler {
	return &ConsultationHandler{DB: db, Workflow: wf}
}

// CreateConsultationRequest represents the request body for opening a consultation.
type CreateConsultationRequest struct {
	AppointmentID string          `json:"appointmentId" binding:"required,uuid"`
	StartTime     time.Time       `json:"startTime"`
	Symptoms      string          `json:"symptoms" binding:"required"`
	Prescription  json.RawMessage `json:"prescription"`
}

// CreateConsultation opens a consultation for an appointment. The owning
// appointment is completed in the same transaction.
func (h *ConsultationHandler) CreateConsultation(c *gin.Context) {
	var req CreateConsultationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	consultation, err := h.Workflow.Open(c.Request.Context(), workflow.OpenConsultationInput{
		AppointmentID: req.AppointmentID,
		StartTime:     req.StartTime,
		Symptoms:      req.Symptoms,
		Prescription:  req.Prescription,
	})
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Created(c, "Consultation created successfully", consultation)
}

// GetConsultationByID fetches a consultation, restricted to involved parties.
func (h *ConsultationHandler) GetConsultationByID(c *gin.Context) {
	consultationID := c.Param("id")

	var consultation models.Consultation
	if err := h.DB.Preload("Appointment").First(&consultation, "id = ?", consultationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Consultation not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	involved := userID == consultation.Appointment.PatientID ||
		userID == consultation.Appointment.ProviderID
	if userRole != models.RoleAdmin && !involved {
		utils.Forbidden(c, "You are not authorized to view this consultation")
		return
	}

	utils.Success(c, "Consultation fetched successfully", consultation)
}

// UpdateConsultationRequest represents the request body for editing clinical fields.
type UpdateConsultationRequest struct {
	Diagnosis        *string         `json:"diagnosis"`
	TreatmentPlan    *string         `json:"treatmentPlan"`
	Prescription     json.RawMessage `json:"prescription"`
	FollowUpRequired *bool           `json:"followUpRequired"`
	FollowUpDate     *time.Time      `json:"followUpDate"`
}

// UpdateConsultation edits the clinical fields of a consultation.
func (h *ConsultationHandler) UpdateConsultation(c *gin.Context) {
	var req UpdateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	consultation, err := h.Workflow.Update(c.Request.Context(), c.Param("id"), workflow.UpdateConsultationInput{
		Diagnosis:        req.Diagnosis,
		TreatmentPlan:    req.TreatmentPlan,
		Prescription:     req.Prescription,
		FollowUpRequired: req.FollowUpRequired,
		FollowUpDate:     req.FollowUpDate,
	})
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Success(c, "Consultation updated successfully", consultation)
}

// EndConsultation stamps the consultation's end time.
func (h *ConsultationHandler) EndConsultation(c *gin.Context) {
	consultation, err := h.Workflow.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Success(c, "Consultation ended successfully", consultation)
}

// DeleteConsultation removes a consultation unless a transcript depends on it.
func (h *ConsultationHandler) DeleteConsultation(c *gin.Context) {
	if err := h.Workflow.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.WorkflowError(c, err)
		return
	}
	utils.NoContent(c)
}
