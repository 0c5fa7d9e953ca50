package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/okothvientrevor/musawo-health-backend/internal/config"
	"github.com/okothvientrevor/musawo-health-backend/internal/directory"
	"github.com/okothvientrevor/musawo-health-backend/internal/handlers"
	"github.com/okothvientrevor/musawo-health-backend/internal/middleware"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/scheduling"
	"github.com/okothvientrevor/musawo-health-backend/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	// Initialize the workflow engine
	clock := workflow.SystemClock{}
	users := directory.NewUserDirectory(db)
	providers := directory.NewProviderDirectory(db)

	appointmentWorkflow := workflow.NewAppointmentWorkflow(db, clock, users, providers, log)
	consultationWorkflow := workflow.NewConsultationWorkflow(db, clock, appointmentWorkflow, log)
	labWorkflow := workflow.NewLabWorkflow(db, clock, users, log)
	calendar := scheduling.NewSlotCalendar(db, clock, scheduling.SlotConfig{
		WindowStart: cfg.Scheduling.WindowStart,
		WindowEnd:   cfg.Scheduling.WindowEnd,
		SlotWidth:   cfg.Scheduling.SlotWidth,
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	appointmentHandler := handlers.NewAppointmentHandler(db, appointmentWorkflow, calendar)
	consultationHandler := handlers.NewConsultationHandler(db, consultationWorkflow)
	labHandler := handlers.NewLabHandler(db, labWorkflow)
	notificationHandler := handlers.NewNotificationHandler(db)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
		}

		// User management routes
		userRoutes := private.Group("/users")
		{
			// Provider listing is open to all authenticated users for booking
			userRoutes.GET("/providers", userHandler.GetProviders)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.GET("/slots", appointmentHandler.GetAvailableSlots)
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient, models.RoleDoctor, models.RoleNurse, models.RoleAdmin), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.PATCH("/:id/reschedule", appointmentHandler.RescheduleAppointment)
			appointmentRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleAdmin), appointmentHandler.DeleteAppointment)
		}

		// Consultation routes (clinical staff create and edit)
		consultationRoutes := private.Group("/consultations")
		{
			consultationRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleNurse, models.RoleAdmin), consultationHandler.CreateConsultation)
			consultationRoutes.GET("/:id", consultationHandler.GetConsultationByID)
			consultationRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleNurse, models.RoleAdmin), consultationHandler.UpdateConsultation)
			consultationRoutes.PATCH("/:id/end", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleNurse, models.RoleAdmin), consultationHandler.EndConsultation)
			consultationRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleAdmin), consultationHandler.DeleteConsultation)
		}

		// Lab request routes
		labRequestRoutes := private.Group("/lab-requests")
		{
			labRequestRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleNurse, models.RoleAdmin), labHandler.CreateLabRequest)
			labRequestRoutes.GET("", labHandler.GetLabRequests)
			labRequestRoutes.GET("/:id", labHandler.GetLabRequestByID)
			labRequestRoutes.PATCH("/:id/status", middleware.RoleAuthMiddleware(models.RoleLabTechnician, models.RoleAdmin), labHandler.UpdateLabRequestStatus)
			labRequestRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleNurse, models.RoleAdmin), labHandler.DeleteLabRequest)
		}

		// Lab result routes
		labResultRoutes := private.Group("/lab-results")
		{
			labResultRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleLabTechnician, models.RoleAdmin), labHandler.CreateLabResult)
			labResultRoutes.GET("/:id", labHandler.GetLabResultByID)
			labResultRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleLabTechnician, models.RoleAdmin), labHandler.DeleteLabResult)
		}

		// Notification routes
		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationAsRead)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
