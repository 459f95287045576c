package router

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rafiq-dev/bandmate/backend/internal/handlers"
	"github.com/rafiq-dev/bandmate/backend/internal/middleware"
	"github.com/rafiq-dev/bandmate/backend/internal/models"
	"github.com/rafiq-dev/bandmate/backend/internal/repositories"
	"github.com/rafiq-dev/bandmate/backend/internal/services"
	"github.com/rafiq-dev/bandmate/backend/pkg/config"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// SetupRoutes wires the stores, the connection service and the HTTP routes.
// It returns the reconciler so the caller owns its start/stop lifecycle.
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *config.DB, firebaseAuthClient *auth.Client, zlog *zap.Logger) (*services.Reconciler, error) {
	ctx := context.Background()

	// AutoMigrate PostgreSQL models
	if err := db.Postgres.AutoMigrate(
		&models.Notification{},
		&models.FriendEdge{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate models: %w", err)
	}
	log.Println("PostgreSQL auto-migrations completed.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	mongoDB := db.Mongo.Database(cfg.MongoDatabase)

	requestRepo := repositories.NewMongoConnectionRequestRepository(mongoDB)
	if err := requestRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create connection request indexes: %w", err)
	}

	accountRepo := repositories.NewMongoAccountRepository(mongoDB)

	var friendRepo repositories.FriendListRepository
	switch cfg.FriendBackend {
	case config.FriendBackendPostgresEdges:
		friendRepo = repositories.NewPostgresFriendEdgeRepository(db.Postgres)
	default:
		friendRepo = repositories.NewMongoFriendListRepository(mongoDB)
	}
	log.Printf("Friend-list backend: %s", cfg.FriendBackend)

	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)

	// --- Initialize Services ---
	resolver := services.NewConnectionResolver(requestRepo, friendRepo, zlog)
	dispatcher := services.NewNotificationDispatcher(notificationRepo, accountRepo, zlog)
	feed := services.NewChangeFeed(resolver, requestRepo, friendRepo, zlog)
	connectionService := services.NewConnectionService(
		requestRepo, friendRepo, accountRepo, notificationRepo,
		resolver, dispatcher, feed, zlog,
	)
	reconciler := services.NewReconciler(requestRepo, friendRepo, zlog)

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.FirebaseAuthMiddleware(firebaseAuthClient))
	log.Println("Firebase authentication middleware applied to /api/v1 group.")

	connectionHandler := handlers.NewConnectionHandler(connectionService)
	connectionHandler.RegisterConnectionRoutes(api)
	log.Println("Connection routes configured.")

	notificationHandler := handlers.NewNotificationHandler(connectionService, accountRepo)
	notificationHandler.RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	return reconciler, nil
}
