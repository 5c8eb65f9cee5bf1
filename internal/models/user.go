package models

import "time"

// Role represents a user role
type Role string

// RoleTeacher is the only role allowed to sign in; students browse anonymously
const RoleTeacher Role = "teacher"

// User represents a teacher account
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an authenticated session passed explicitly into operations that require auth
type Session struct {
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the session can authorize an operation at the given time
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.UserID <= 0 {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// LoginRequest represents the request body for sign in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the request body for creating a teacher account
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest asks for a password reset email
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest sets a new password with an emailed reset token
type PasswordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// TokenResponse is returned after a successful sign in
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
