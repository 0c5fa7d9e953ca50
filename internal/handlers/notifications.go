package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/okothvientrevor/musawo-health-backend/internal/middleware"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/utils"
	"gorm.io/gorm"
)

// NotificationHandler serves the notification read-side. Creation is the
// workflows' business; this handler only lists and marks read.
type NotificationHandler struct {
	DB *gorm.DB
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{DB: db}
}

// GetNotifications lists the caller's notifications, newest first.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	query := h.DB.Where("user_id = ?", userID).Order("created_at desc")
	if t := c.Query("type"); t != "" {
		query = query.Where("type = ?", t)
	}
	switch c.Query("read") {
	case "1":
		query = query.Where("read_at IS NOT NULL")
	case "0":
		query = query.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch notifications: "+err.Error())
		return
	}

	utils.Success(c, "Notifications fetched successfully", notifications)
}

// MarkNotificationAsRead stamps the read marker on one of the caller's
// notifications. Marking twice is a no-op.
func (h *NotificationHandler) MarkNotificationAsRead(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var notification models.Notification
	if err := h.DB.First(&notification, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Notification not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if notification.UserID != userID {
		utils.Forbidden(c, "You are not authorized to update this notification")
		return
	}

	if notification.ReadAt == nil {
		now := time.Now()
		notification.ReadAt = &now
		if err := h.DB.Save(&notification).Error; err != nil {
			utils.InternalServerError(c, "Failed to mark notification as read: "+err.Error())
			return
		}
	}

	utils.Success(c, "Notification marked as read", notification)
}
