package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"

	"github.com/rafiq-dev/bandmate/backend/internal/router"
	"github.com/rafiq-dev/bandmate/backend/pkg/config"
	"github.com/rafiq-dev/bandmate/backend/pkg/firebase"
	"github.com/rafiq-dev/bandmate/backend/pkg/logger"
	"github.com/rafiq-dev/bandmate/backend/pkg/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Validator
	e.Validator = validators.NewValidator()

	// Setup routes and dependencies
	reconciler, err := router.SetupRoutes(e, cfg, db, firebaseApp.AuthClient, zlog)
	if err != nil {
		log.Fatalf("Failed to set up routes: %v", err)
	}

	// Background mutuality repair sweep
	reconciler.Start(cfg.ReconcileInterval)
	defer reconciler.Stop()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
