package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okothvientrevor/musawo-health-backend/internal/middleware"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/scheduling"
	"github.com/okothvientrevor/musawo-health-backend/internal/utils"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"gorm.io/gorm"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB       *gorm.DB
	Workflow *workflow.AppointmentWorkflow
	Calendar *scheduling.SlotCalendar
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, wf *workflow.AppointmentWorkflow, calendar *scheduling.SlotCalendar) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Workflow: wf, Calendar: calendar}
}

// CreateAppointmentRequest represents the request body for booking an appointment.
type CreateAppointmentRequest struct {
	ProviderID  string    `json:"providerId" binding:"required,uuid"`
	PatientID   string    `json:"patientId" binding:"required,uuid"`
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
	Modality    string    `json:"modality" binding:"required,oneof=video audio in_person"`
	Reason      string    `json:"reason" binding:"required"`
	Notes       string    `json:"notes"`
	FeeAmount   float64   `json:"feeAmount" binding:"min=0"`
}

// CreateAppointment handles booking a new appointment.
// Typically initiated by a patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	// Patients may only book for themselves; staff can book on behalf of a patient.
	userRole, _ := middleware.GetUserRoleFromContext(c)
	if userRole == models.RolePatient && userID != req.PatientID {
		utils.Forbidden(c, "Patients can only book appointments for themselves.")
		return
	}

	appointment, err := h.Workflow.Book(c.Request.Context(), workflow.BookingInput{
		PatientID:   req.PatientID,
		ProviderID:  req.ProviderID,
		ScheduledAt: req.ScheduledAt,
		Modality:    models.AppointmentModality(req.Modality),
		Reason:      req.Reason,
		Notes:       req.Notes,
		FeeAmount:   req.FeeAmount,
	})
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Created(c, "Appointment booked successfully", appointment)
}

// GetAppointmentsForUser handles fetching appointments for the logged-in user.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	userRole, _ := middleware.GetUserRoleFromContext(c)

	var appointments []models.Appointment
	var err error

	query := h.DB.Order("scheduled_at asc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	switch userRole {
	case models.RolePatient:
		err = query.Where("patient_id = ?", userID).Find(&appointments).Error
	case models.RoleDoctor, models.RoleNurse:
		err = query.Where("provider_id = ?", userID).Find(&appointments).Error
	case models.RoleAdmin:
		err = query.Find(&appointments).Error
	default:
		utils.Forbidden(c, "User role not permitted to view appointments this way.")
		return
	}

	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, provider, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointmentID := c.Param("id")

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	isPatientInvolved := userID == appointment.PatientID
	isProviderInvolved := userID == appointment.ProviderID

	if userRole != models.RoleAdmin && !isPatientInvolved && !isProviderInvolved {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateAppointmentStatusRequest represents the request body for a status change.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=completed cancelled no_show"`
}

// UpdateAppointmentStatus handles completing, cancelling, or marking an
// appointment as a no-show. Transition legality is decided by the workflow.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointmentID := c.Param("id")

	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	// Providers manage their own schedule, admins manage any, patients
	// may only cancel their own appointments.
	canUpdate := false
	switch {
	case userRole == models.RoleAdmin:
		canUpdate = true
	case userRole.IsProvider() && userID == appointment.ProviderID:
		canUpdate = true
	case userRole == models.RolePatient && userID == appointment.PatientID:
		if req.Status != models.AppointmentCancelled {
			utils.Forbidden(c, "Patients can only cancel appointments.")
			return
		}
		canUpdate = true
	}
	if !canUpdate {
		utils.Forbidden(c, "You are not authorized to update this appointment's status.")
		return
	}

	var updated *models.Appointment
	var err error
	switch req.Status {
	case models.AppointmentCancelled:
		updated, err = h.Workflow.Cancel(c.Request.Context(), appointmentID)
	case models.AppointmentCompleted:
		updated, err = h.Workflow.Complete(c.Request.Context(), appointmentID)
	case models.AppointmentNoShow:
		updated, err = h.Workflow.MarkNoShow(c.Request.Context(), appointmentID)
	}
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Success(c, "Appointment status updated successfully", updated)
}

// RescheduleAppointmentRequest represents the request body for rescheduling.
type RescheduleAppointmentRequest struct {
	NewScheduledAt time.Time `json:"newScheduledAt" binding:"required"`
}

// RescheduleAppointment moves an appointment to a new slot.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	appointmentID := c.Param("id")

	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var appointment models.Appointment
	if err := h.DB.First(&appointment, "id = ?", appointmentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	userRole, _ := middleware.GetUserRoleFromContext(c)

	canReschedule := userRole == models.RoleAdmin ||
		(userRole.IsProvider() && userID == appointment.ProviderID) ||
		(userRole == models.RolePatient && userID == appointment.PatientID)
	if !canReschedule {
		utils.Forbidden(c, "You are not authorized to reschedule this appointment.")
		return
	}

	updated, err := h.Workflow.Reschedule(c.Request.Context(), appointmentID, req.NewScheduledAt)
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	utils.Success(c, "Appointment rescheduled successfully", updated)
}

// DeleteAppointment removes an appointment (admin only; routes enforce the role).
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	if err := h.Workflow.Delete(c.Request.Context(), c.Param("id")); err != nil {
		utils.WorkflowError(c, err)
		return
	}
	utils.NoContent(c)
}

// AvailableSlotsResponse is the payload for the slot listing endpoint.
type AvailableSlotsResponse struct {
	ProviderID     string   `json:"providerId"`
	Date           string   `json:"date"`
	AvailableSlots []string `json:"availableSlots"`
}

// GetAvailableSlots lists the free slot start times for a provider on a date.
func (h *AppointmentHandler) GetAvailableSlots(c *gin.Context) {
	providerID := c.Query("providerId")
	dateStr := c.Query("date")
	if providerID == "" || dateStr == "" {
		utils.BadRequest(c, "providerId and date query parameters are required")
		return
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		utils.BadRequest(c, "date must be formatted as YYYY-MM-DD")
		return
	}

	slots, err := h.Calendar.AvailableSlots(c.Request.Context(), providerID, date)
	if err != nil {
		utils.WorkflowError(c, err)
		return
	}

	formatted := make([]string, len(slots))
	for i, slot := range slots {
		formatted[i] = slot.Format("15:04")
	}

	utils.Success(c, "Available slots fetched successfully", AvailableSlotsResponse{
		ProviderID:     providerID,
		Date:           dateStr,
		AvailableSlots: formatted,
	})
}
