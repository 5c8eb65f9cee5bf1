// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/joho/godotenv"
)

const (
	defaultServerPort          = 8080
	defaultAccessTokenExpiry   = "24h"
	defaultMaxUploadSize       = "50MB"
	defaultOrphanSweepSchedule = "0 3 * * *"
	defaultResetTokenExpiry    = "30m"
	defaultSMTPPort            = 587
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	CORS     CORSConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Jobs     JobsConfig
	SMTP     SMTPConfig
	// PasswordReset configures the emails sent by the forgot password flow
	PasswordReset PasswordResetConfig
	// Bootstrap is the first teacher account, created on start when the email is free
	Bootstrap BootstrapConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port int
	// MaxUploadSize is the request body limit in bytes
	MaxUploadSize int64
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// StorageConfig holds MinIO connection settings
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	PublicURL       string
}

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether an SMTP server is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// PasswordResetConfig holds password reset settings
type PasswordResetConfig struct {
	// URL is the page the emailed link points at; the token is appended as ?token=
	URL         string
	TokenExpiry time.Duration
}

// JobsConfig holds background job settings
type JobsConfig struct {
	OrphanSweepSchedule string
}

// BootstrapConfig holds the optional first teacher account
type BootstrapConfig struct {
	TeacherEmail    string
	TeacherPassword string
}

// Enabled reports whether a bootstrap teacher is configured
func (b BootstrapConfig) Enabled() bool {
	return b.TeacherEmail != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional, real environment variables win
	_ = godotenv.Load()

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	dbPortStr, err := requireEnv("DB_PORT")
	if err != nil {
		return nil, err
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort
	if cfg.Database.User, err = requireEnv("DB_USER"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.DBName, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Server configuration
	cfg.Server.Port = defaultServerPort
	if serverPortStr := os.Getenv("SERVER_PORT"); serverPortStr != "" {
		serverPort, err := strconv.Atoi(serverPortStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
		}
		cfg.Server.Port = serverPort
	}

	maxUploadSize, err := units.FromHumanSize(envOrDefault("MAX_UPLOAD_SIZE", defaultMaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUploadSize <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: must be positive")
	}
	cfg.Server.MaxUploadSize = maxUploadSize

	// Logging configuration
	cfg.Logging.Level = envOrDefault("LOG_LEVEL", "info")

	// CORS configuration
	cfg.CORS.AllowedOrigins = parseOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	// JWT configuration
	if cfg.JWT.Secret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}
	accessExpiry, err := time.ParseDuration(envOrDefault("JWT_ACCESS_TOKEN_EXPIRY", defaultAccessTokenExpiry))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_EXPIRY: %w", err)
	}
	cfg.JWT.AccessTokenExpiry = accessExpiry

	// Object storage configuration
	if cfg.Storage.Endpoint, err = requireEnv("MINIO_ENDPOINT"); err != nil {
		return nil, err
	}
	if cfg.Storage.AccessKeyID, err = requireEnv("MINIO_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.Storage.SecretAccessKey, err = requireEnv("MINIO_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.Storage.Bucket, err = requireEnv("MINIO_BUCKET"); err != nil {
		return nil, err
	}
	if useSSL := os.Getenv("MINIO_USE_SSL"); useSSL != "" {
		cfg.Storage.UseSSL, err = strconv.ParseBool(useSSL)
		if err != nil {
			return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
		}
	}
	cfg.Storage.PublicURL = strings.TrimRight(os.Getenv("MINIO_PUBLIC_URL"), "/")

	// Background jobs configuration
	cfg.Jobs.OrphanSweepSchedule = envOrDefault("ORPHAN_SWEEP_SCHEDULE", defaultOrphanSweepSchedule)

	// SMTP configuration (optional, password reset is unavailable without it)
	cfg.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if cfg.SMTP.Enabled() {
		cfg.SMTP.Port = defaultSMTPPort
		if smtpPortStr := os.Getenv("SMTP_PORT"); smtpPortStr != "" {
			smtpPort, err := strconv.Atoi(smtpPortStr)
			if err != nil {
				return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
			}
			cfg.SMTP.Port = smtpPort
		}
		cfg.SMTP.Username = os.Getenv("SMTP_USERNAME") // optional
		cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD") // optional
		if cfg.SMTP.From, err = requireEnv("SMTP_FROM"); err != nil {
			return nil, fmt.Errorf("%w when SMTP_HOST is set", err)
		}
	}

	// Password reset configuration
	cfg.PasswordReset.URL = strings.TrimSpace(os.Getenv("PASSWORD_RESET_URL"))
	resetExpiry, err := time.ParseDuration(envOrDefault("PASSWORD_RESET_TOKEN_EXPIRY", defaultResetTokenExpiry))
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TOKEN_EXPIRY: %w", err)
	}
	if resetExpiry <= 0 {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TOKEN_EXPIRY: must be positive")
	}
	cfg.PasswordReset.TokenExpiry = resetExpiry

	// Bootstrap teacher
	cfg.Bootstrap.TeacherEmail = strings.TrimSpace(os.Getenv("BOOTSTRAP_TEACHER_EMAIL"))
	cfg.Bootstrap.TeacherPassword = os.Getenv("BOOTSTRAP_TEACHER_PASSWORD")
	if cfg.Bootstrap.Enabled() && cfg.Bootstrap.TeacherPassword == "" {
		return nil, fmt.Errorf("BOOTSTRAP_TEACHER_PASSWORD is required when BOOTSTRAP_TEACHER_EMAIL is set")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins splits a comma-separated origin list.
// An empty or blank list allows all origins.
func parseOrigins(raw string) []string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
