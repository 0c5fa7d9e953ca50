package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/utils"
	"gorm.io/gorm"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	DB *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"required,oneof=patient doctor nurse lab_technician admin"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existingUser models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		utils.BadRequest(c, "User with this email already exists")
		return
	} else if err != gorm.ErrRecordNotFound {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	user := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      models.Role(req.Role),
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	if err := h.DB.Create(&user).Error; err != nil {
		utils.InternalServerError(c, "Failed to create user: "+err.Error())
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers handles fetching all users (admin).
func (h *UserHandler) GetUsers(c *gin.Context) {
	var users []models.User
	query := h.DB
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Find(&users).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch users: "+err.Error())
		return
	}

	sanitized := make([]models.UserSanitized, len(users))
	for i, u := range users {
		sanitized[i] = u.Sanitize()
	}

	utils.Success(c, "Users fetched successfully", sanitized)
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	var user models.User
	if err := h.DB.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// GetProviders handles fetching all users who can hold a schedule.
// Accessible to patients for booking appointments.
func (h *UserHandler) GetProviders(c *gin.Context) {
	var providers []models.User
	err := h.DB.Where("role IN ?", []models.Role{models.RoleDoctor, models.RoleNurse}).
		Find(&providers).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch providers: "+err.Error())
		return
	}

	sanitized := make([]models.UserSanitized, len(providers))
	for i, p := range providers {
		sanitized[i] = p.Sanitize()
	}

	utils.Success(c, "Providers fetched successfully", sanitized)
}

// DeleteUser handles deleting a user by ID (admin).
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if err := h.DB.Delete(&models.User{}, "id = ?", userID).Error; err != nil {
		utils.InternalServerError(c, "Failed to delete user: "+err.Error())
		return
	}

	utils.Success(c, "User deleted successfully", nil)
}
