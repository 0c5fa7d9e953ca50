package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/okothvientrevor/musawo-health-backend/internal/config"
	"github.com/okothvientrevor/musawo-health-backend/internal/models"
	"github.com/okothvientrevor/musawo-health-backend/internal/notify"
	"github.com/okothvientrevor/musawo-health-backend/internal/routes"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		logger.Fatal("Error connecting to database", zap.Error(err))
	}

	// Pick the notification sink: RabbitMQ when configured, otherwise
	// notifications land directly in the notifications table.
	var dispatcher notify.Dispatcher = notify.NewDBDispatcher(db)
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("Error connecting to AMQP broker", zap.Error(err))
		}
		defer conn.Close()

		amqpDispatcher, err := notify.NewAMQPDispatcher(conn, logger)
		if err != nil {
			logger.Fatal("Error setting up AMQP dispatcher", zap.Error(err))
		}
		defer amqpDispatcher.Close()
		dispatcher = amqpDispatcher
	}

	// The relay drains outbox rows written by the workflows.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := notify.NewOutboxRelay(db, dispatcher, logger, cfg.Outbox.PollInterval)
	go relay.Run(ctx)

	// Initialize Gin router
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes
	routes.SetupRoutes(router, db, cfg, logger)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := router.Run(serverAddr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
