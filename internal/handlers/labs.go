package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okothvientrevor/musawo-health-backend/internal/middleware"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/utils"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"gorm.io/gorm"
)

// LabHandler handles lab request and lab result requests.
type LabHandler struct {
	DB       *gorm.DB
	Workflow *workflow.LabWorkflow
}

// NewLabHandler creates a new LabHandler.
func NewLabHandler(db *gorm.DB, wf *workflow.LabWorkflow) *LabHandler {
	return &LabHandler{DB: db, Workflow: wf}
}

// CreateLabRequestRequest represents the request body for ordering lab tests.
type CreateLabRequestRequest struct {
	PatientID      string   `json:"patientId" binding:"required,uuid"`
	ProviderID     string   `json:"providerId"`
	LaboratoryID   string   `json:"laboratoryId" binding:"required"`
	TestsRequested []string `json:"testsRequested" binding:"required,min=1"`
	UrgencyLevel   string   `json:"urgencyLevel" binding:"omitempty,oneof=routine urgent emergency"`
	Notes          string   `json:"notes"`
}

// CreateLabRequest orders lab tests for a patient.
func (h *LabHandler) CreateLabRequest(c *gin.Context) {
	var req CreateLabRequestRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	request, err := h.Workflow.CreateRequest(c.Request.Context(), workflow.CreateLabRequestInput{
		PatientID:      req.PatientID,
		ProviderID:     req.ProviderID,
		LaboratoryID:   req.LaboratoryID,
		TestsRequested: req.TestsRequested,
		UrgencyLevel:   models.UrgencyLevel(req.UrgencyLevel),
		Notes:          req.Notes,
	})
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Created(c, "Lab request created successfully", request)
}

// GetLabRequests lists lab requests visible to the caller.
func (h *LabHandler) GetLabRequests(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	query := h.DB.Order("created_at desc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if urgency := c.Query("urgencyLevel"); urgency != "" {
		query = query.Where("urgency_level = ?", urgency)
	}

	var requests []models.LabRequest
	var err error
	switch userRole {
	case models.RolePatient:
		err = query.Where("patient_id = ?", userID).Find(&requests).Error
	case models.RoleDoctor, models.RoleNurse:
		err = query.Where("provider_id = ?", userID).Find(&requests).Error
	case models.RoleLabTechnician, models.RoleAdmin:
		err = query.Find(&requests).Error
	default:
		utils.Forbidden(c, "User role not permitted to view lab requests.")
		return
	}
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch lab requests: "+err.Error())
		return
	}

	utils.Success(c, "Lab requests fetched successfully", requests)
}

// GetLabRequestByID fetches a single lab request.
func (h *LabHandler) GetLabRequestByID(c *gin.Context) {
	var request models.LabRequest
	if err := h.DB.First(&request, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Lab request not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	utils.Success(c, "Lab request fetched successfully", request)
}

// UpdateLabRequestStatusRequest represents the request body for a status change.
type UpdateLabRequestStatusRequest struct {
	Status models.LabRequestStatus `json:"status" binding:"required,oneof=requested processing completed cancelled"`
}

// UpdateLabRequestStatus applies a status transition to a lab request.
func (h *LabHandler) UpdateLabRequestStatus(c *gin.Context) {
	var req UpdateLabRequestStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	request, err := h.Workflow.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Success(c, "Lab request status updated successfully", request)
}

// DeleteLabRequest removes a lab request unless work is in flight.
func (h *LabHandler) DeleteLabRequest(c *gin.Context) {
	if err := h.Workflow.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		utils.WorkflowError(c, err)
		return
	}
	utils.NoContent(c)
}

// CreateLabResultRequest represents the request body for recording results.
type CreateLabResultRequest struct {
	LabRequestID  string               `json:"labRequestId" binding:"required,uuid"`
	TechnicianID  string               `json:"technicianId" binding:"required,uuid"`
	Results       []models.ResultEntry `json:"results" binding:"required,min=1"`
	ResultDate    time.Time            `json:"resultDate"`
	AttachmentRef string               `json:"attachmentRef"`
	Notes         string               `json:"notes"`
}

// CreateLabResult records the result for a lab request and completes it.
func (h *LabHandler) CreateLabResult(c *gin.Context) {
	var req CreateLabResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	result, err := h.Workflow.CreateResult(c.Request.Context(), workflow.CreateLabResultInput{
		LabRequestID:  req.LabRequestID,
		TechnicianID:  req.TechnicianID,
		Results:       req.Results,
		ResultDate:    req.ResultDate,
		AttachmentRef: req.AttachmentRef,
		Notes:         req.Notes,
	})
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Created(c, "Lab result created successfully", result)
}

// GetLabResultByID fetches a single lab result.
func (h *LabHandler) GetLabResultByID(c *gin.Context) {
	var result models.LabResult
	if err := h.DB.Preload("LabRequest").First(&result, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Lab result not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	utils.Success(c, "Lab result fetched successfully", result)
}

// DeleteLabResult removes a result and reverts its request to processing.
func (h *LabHandler) DeleteLabResult(c *gin.Context) {
	if err := h.Workflow.DeleteResult(c.Request.Context(), c.Param("id")); err != nil {
		utils.WorkflowError(c, err)
		return
	}
	utils.NoContent(c)
}
