package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_USER", "study")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "materials")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio-secret")
	t.Setenv("MINIO_BUCKET", "study")
	for _, key := range []string{
		"SERVER_PORT", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS", "JWT_ACCESS_TOKEN_EXPIRY",
		"MAX_UPLOAD_SIZE", "MINIO_USE_SSL", "MINIO_PUBLIC_URL", "ORPHAN_SWEEP_SCHEDULE",
		"BOOTSTRAP_TEACHER_EMAIL", "BOOTSTRAP_TEACHER_PASSWORD",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
		"PASSWORD_RESET_URL", "PASSWORD_RESET_TOKEN_EXPIRY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(50_000_000), cfg.Server.MaxUploadSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.JWT.AccessTokenExpiry)
	assert.False(t, cfg.Storage.UseSSL)
	assert.Equal(t, "0 3 * * *", cfg.Jobs.OrphanSweepSchedule)
	assert.False(t, cfg.Bootstrap.Enabled())
	assert.False(t, cfg.SMTP.Enabled())
	assert.Equal(t, 30*time.Minute, cfg.PasswordReset.TokenExpiry)
	assert.Empty(t, cfg.PasswordReset.URL)
	assert.Equal(t, "study:secret@tcp(localhost:3306)/materials?parseTime=true&charset=utf8mb4", cfg.DSN())
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_UPLOAD_SIZE", "10MB")
	t.Setenv("CORS_ALLOWED_ORIGINS", " http://a.local , ,http://b.local")
	t.Setenv("JWT_ACCESS_TOKEN_EXPIRY", "2h")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_PUBLIC_URL", "https://cdn.local/")
	t.Setenv("ORPHAN_SWEEP_SCHEDULE", "@hourly")
	t.Setenv("BOOTSTRAP_TEACHER_EMAIL", " admin@school.local ")
	t.Setenv("BOOTSTRAP_TEACHER_PASSWORD", "changeme")
	t.Setenv("SMTP_HOST", "smtp.school.local")
	t.Setenv("SMTP_USERNAME", "mailer")
	t.Setenv("SMTP_PASSWORD", "mail-secret")
	t.Setenv("SMTP_FROM", "no-reply@school.local")
	t.Setenv("PASSWORD_RESET_URL", "https://school.local/reset")
	t.Setenv("PASSWORD_RESET_TOKEN_EXPIRY", "15m")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(10_000_000), cfg.Server.MaxUploadSize)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTokenExpiry)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, "https://cdn.local", cfg.Storage.PublicURL)
	assert.Equal(t, "@hourly", cfg.Jobs.OrphanSweepSchedule)
	assert.True(t, cfg.Bootstrap.Enabled())
	assert.Equal(t, "admin@school.local", cfg.Bootstrap.TeacherEmail)
	assert.Equal(t, "changeme", cfg.Bootstrap.TeacherPassword)
	assert.True(t, cfg.SMTP.Enabled())
	assert.Equal(t, SMTPConfig{
		Host:     "smtp.school.local",
		Port:     587,
		Username: "mailer",
		Password: "mail-secret",
		From:     "no-reply@school.local",
	}, cfg.SMTP)
	assert.Equal(t, "https://school.local/reset", cfg.PasswordReset.URL)
	assert.Equal(t, 15*time.Minute, cfg.PasswordReset.TokenExpiry)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		value         string
		expectedError string
	}{
		{name: "missing db host", key: "DB_HOST", value: "", expectedError: "DB_HOST is required"},
		{name: "bad db port", key: "DB_PORT", value: "abc", expectedError: "invalid DB_PORT"},
		{name: "missing jwt secret", key: "JWT_SECRET", value: "", expectedError: "JWT_SECRET is required"},
		{name: "missing bucket", key: "MINIO_BUCKET", value: "", expectedError: "MINIO_BUCKET is required"},
		{name: "bad server port", key: "SERVER_PORT", value: "eighty", expectedError: "invalid SERVER_PORT"},
		{name: "bad upload size", key: "MAX_UPLOAD_SIZE", value: "lots", expectedError: "invalid MAX_UPLOAD_SIZE"},
		{name: "bad expiry", key: "JWT_ACCESS_TOKEN_EXPIRY", value: "1 day", expectedError: "invalid JWT_ACCESS_TOKEN_EXPIRY"},
		{name: "bad ssl flag", key: "MINIO_USE_SSL", value: "maybe", expectedError: "invalid MINIO_USE_SSL"},
		{name: "smtp host without sender", key: "SMTP_HOST", value: "smtp.school.local", expectedError: "SMTP_FROM is required when SMTP_HOST is set"},
		{name: "bad reset expiry", key: "PASSWORD_RESET_TOKEN_EXPIRY", value: "-5m", expectedError: "invalid PASSWORD_RESET_TOKEN_EXPIRY"},
		{name: "bootstrap email without password", key: "BOOTSTRAP_TEACHER_EMAIL", value: "admin@school.local", expectedError: "BOOTSTRAP_TEACHER_PASSWORD is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestLoad_SMTPPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SMTP_HOST", "smtp.school.local")
	t.Setenv("SMTP_FROM", "no-reply@school.local")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2525, cfg.SMTP.Port)

	t.Setenv("SMTP_PORT", "smtp")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid SMTP_PORT")
}
