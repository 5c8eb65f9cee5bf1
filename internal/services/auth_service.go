package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/studymaterials/backend/internal/auth"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/repositories"
	"go.uber.org/zap"
)

// minPasswordLength is the shortest password accepted for new accounts
const minPasswordLength = 6

// emailRegex validates email format
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UsersRepository is the interface for user data access
type UsersRepository interface {
	// Method Create inserts the user and sets its ID.
	//
	// A taken email yields an error wrapping repositories.ErrDuplicateEmail.
	Create(ctx context.Context, user *models.User) error
	// Method GetByEmail retrieves a user by email.
	//
	// If the user does not exist, the returned error wraps sql.ErrNoRows.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Method GetByID retrieves a user by ID.
	//
	// If the user does not exist, the returned error wraps sql.ErrNoRows.
	GetByID(ctx context.Context, id int64) (*models.User, error)
	// Method ExistsByEmail checks whether a user with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Method UpdatePassword replaces the password hash of a user.
	//
	// If the user does not exist, the returned error wraps sql.ErrNoRows.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// TokenIssuer signs sessions and password reset tokens
type TokenIssuer interface {
	// Issue signs a session for an authenticated user
	Issue(user *models.User) (*models.Session, error)
	// IssueReset signs a password reset token bound to the user's current password
	IssueReset(user *models.User) (string, time.Time, error)
	// ValidateReset parses a password reset token
	ValidateReset(token string) (*auth.ResetClaims, error)
}

// PasswordResetNotifier delivers password reset tokens to account owners
type PasswordResetNotifier interface {
	SendPasswordReset(ctx context.Context, to, token string, expiresAt time.Time) error
}

// authService implements sign in, teacher registration and password reset
type authService struct {
	usersRepo UsersRepository
	issuer    TokenIssuer
	notifier  PasswordResetNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service.
// A nil notifier disables password reset requests.
func NewAuthService(usersRepo UsersRepository, issuer TokenIssuer, notifier PasswordResetNotifier, logger *zap.Logger) *authService {
	return &authService{
		usersRepo: usersRepo,
		issuer:    issuer,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Login checks the credentials and issues a session
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	email := normalizeEmail(req.Email)
	if !emailRegex.MatchString(email) {
		return nil, newValidationError("email", "please enter a valid email address")
	}
	if req.Password == "" {
		return nil, newValidationError("password", "please enter your password")
	}

	user, err := s.usersRepo.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, gatewayError("login", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	session, err := s.issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("user signed in", zap.Int64("user_id", user.ID))
	return session, nil
}

// Register creates a new teacher account. Only a signed-in teacher can register another teacher.
func (s *authService) Register(ctx context.Context, session *models.Session, req *models.RegisterRequest) (*models.User, error) {
	if !session.Valid(s.now()) {
		return nil, ErrAuthRequired
	}

	email := normalizeEmail(req.Email)
	if !emailRegex.MatchString(email) {
		return nil, newValidationError("email", "please enter a valid email address")
	}
	if len(req.Password) < minPasswordLength {
		return nil, newValidationError("password", "password must be at least %d characters", minPasswordLength)
	}

	exists, err := s.usersRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, gatewayError("register", err)
	}
	if exists {
		return nil, fmt.Errorf("email %s: %w", email, ErrAlreadyExists)
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleTeacher,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.usersRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, fmt.Errorf("email %s: %w", email, ErrAlreadyExists)
		}
		return nil, gatewayError("register", err)
	}

	s.logger.Info("teacher registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("registered_by", session.UserID),
	)
	return user, nil
}

// EnsureTeacher creates the teacher account unless the email is already taken.
// It reports whether an account was created.
func (s *authService) EnsureTeacher(ctx context.Context, email, password string) (bool, error) {
	email = normalizeEmail(email)
	if !emailRegex.MatchString(email) {
		return false, newValidationError("email", "please enter a valid email address")
	}
	if len(password) < minPasswordLength {
		return false, newValidationError("password", "password must be at least %d characters", minPasswordLength)
	}

	exists, err := s.usersRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return false, gatewayError("bootstrap", err)
	}
	if exists {
		return false, nil
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleTeacher,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.usersRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return false, nil
		}
		return false, gatewayError("bootstrap", err)
	}

	s.logger.Info("bootstrap teacher created", zap.Int64("user_id", user.ID))
	return true, nil
}

// RequestPasswordReset emails a reset token to the account with the email.
// An unknown email is not reported so the response does not reveal which accounts exist.
func (s *authService) RequestPasswordReset(ctx context.Context, req *models.PasswordResetRequest) error {
	if s.notifier == nil {
		return fmt.Errorf("password reset email: %w", ErrUnavailable)
	}

	email := normalizeEmail(req.Email)
	if !emailRegex.MatchString(email) {
		return newValidationError("email", "please enter a valid email address")
	}

	user, err := s.usersRepo.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return gatewayError("password reset", err)
	}

	token, expiresAt, err := s.issuer.IssueReset(user)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, token, expiresAt); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	s.logger.Info("password reset email sent", zap.Int64("user_id", user.ID))
	return nil
}

// ConfirmPasswordReset sets a new password for the owner of a reset token.
// A token works once: changing the password invalidates every token issued before.
func (s *authService) ConfirmPasswordReset(ctx context.Context, req *models.PasswordResetConfirmRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return newValidationError("token", "reset token is required")
	}
	if len(req.Password) < minPasswordLength {
		return newValidationError("password", "password must be at least %d characters", minPasswordLength)
	}

	claims, err := s.issuer.ValidateReset(token)
	if err != nil {
		s.logger.Debug("invalid reset token", zap.Error(err))
		return invalidResetToken()
	}

	user, err := s.usersRepo.GetByID(ctx, claims.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return invalidResetToken()
	}
	if err != nil {
		return gatewayError("password reset", err)
	}
	if auth.PasswordFingerprint(user.PasswordHash) != claims.Fingerprint {
		return invalidResetToken()
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}

	if err := s.usersRepo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invalidResetToken()
		}
		return gatewayError("password reset", err)
	}

	s.logger.Info("password reset", zap.Int64("user_id", user.ID))
	return nil
}

func invalidResetToken() *ValidationError {
	return newValidationError("token", "reset link is invalid or has expired")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
