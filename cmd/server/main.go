package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/studymaterials/backend/docs"
	"github.com/studymaterials/backend/internal/auth"
	"github.com/studymaterials/backend/internal/config"
	"github.com/studymaterials/backend/internal/handlers"
	"github.com/studymaterials/backend/internal/jobs"
	"github.com/studymaterials/backend/internal/logger"
	"github.com/studymaterials/backend/internal/mailer"
	"github.com/studymaterials/backend/internal/middleware"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/repositories"
	"github.com/studymaterials/backend/internal/services"
	"github.com/studymaterials/backend/internal/storage"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title Study Materials API
// @version 1.0
// @description API for browsing, uploading and deleting study materials

// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Study Materials API")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize object storage
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	objectStorage, err := storage.NewObjectStorage(startupCtx, storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		Bucket:          cfg.Storage.Bucket,
		PublicURL:       cfg.Storage.PublicURL,
	})
	if err != nil {
		cancelStartup()
		logger.Logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	// Initialize JWT token generator
	tokenGenerator := auth.NewTokenGenerator(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.PasswordReset.TokenExpiry)

	// Initialize password reset mail, disabled without an SMTP server
	var resetNotifier services.PasswordResetNotifier
	if cfg.SMTP.Enabled() {
		resetNotifier = mailer.NewPasswordResetMailer(mailer.NewSMTPSender(cfg.SMTP), cfg.PasswordReset.URL, logger.Logger)
	} else {
		logger.Logger.Warn("SMTP_HOST is not set, password reset emails are disabled")
	}

	// Initialize repositories
	materialsRepo := repositories.NewMaterialsRepository(db, logger.Logger)
	usersRepo := repositories.NewUsersRepository(db, logger.Logger)

	// Initialize services
	materialsService := services.NewMaterialsService(materialsRepo, objectStorage, logger.Logger)
	authService := services.NewAuthService(usersRepo, tokenGenerator, resetNotifier, logger.Logger)

	if cfg.Bootstrap.Enabled() {
		created, err := authService.EnsureTeacher(startupCtx, cfg.Bootstrap.TeacherEmail, cfg.Bootstrap.TeacherPassword)
		if err != nil {
			cancelStartup()
			logger.Logger.Fatal("Failed to create bootstrap teacher", zap.Error(err))
		}
		if created {
			logger.Logger.Info("Bootstrap teacher created", zap.String("email", cfg.Bootstrap.TeacherEmail))
		}
	}
	cancelStartup()

	// Start background jobs
	sweeper, err := jobs.NewOrphanSweeper(objectStorage, materialsRepo, cfg.Jobs.OrphanSweepSchedule, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to create orphan sweeper", zap.Error(err))
	}
	sweeper.Start()

	// Initialize middleware
	authMw := auth.SessionMiddleware(tokenGenerator)
	teacherMw := auth.RoleMiddleware(models.RoleTeacher)

	// Initialize handlers
	materialsHandler := handlers.NewMaterialsHandler(materialsService, logger.Logger, authMw)
	authHandler := handlers.NewAuthHandler(authService, logger.Logger, authMw, teacherMw)
	healthHandler := handlers.NewHealthHandler(db, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.LoggerMiddleware(logger.Logger))
	r.Use(middleware.RecoveryMiddleware(logger.Logger))
	r.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(middleware.RequestSizeLimitMiddleware(cfg.Server.MaxUploadSize))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	healthHandler.RegisterRoutes(r)

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		materialsHandler.RegisterRoutes(r)
		authHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second, // Longer timeout for file uploads
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}
	sweeper.Stop()

	logger.Logger.Info("Server exited")
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "materials_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Running from cmd/server
		if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(migrationPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
