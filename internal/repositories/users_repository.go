package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/studymaterials/backend/internal/models"
	"go.uber.org/zap"
)

// mysqlDuplicateEntry is the MySQL error number for unique key violations
const mysqlDuplicateEntry = 1062

// ErrDuplicateEmail is returned when a user with the same email already exists
var ErrDuplicateEmail = errors.New("email already exists")

// usersRepository implements UsersRepository
type usersRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsersRepository creates a new user repository
func NewUsersRepository(db *sql.DB, logger *zap.Logger) *usersRepository {
	return &usersRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user into the database
func (r *usersRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
	`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return fmt.Errorf("failed to create user: %w", ErrDuplicateEmail)
		}
		r.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetByEmail retrieves a user by email. A missing user yields an error wrapping sql.ErrNoRows.
func (r *usersRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = ?
		LIMIT 1
	`

	user := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		r.logger.Error("failed to get user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	user.Role = models.Role(role)
	return user, nil
}

// GetByID retrieves a user by ID. A missing user yields an error wrapping sql.ErrNoRows.
func (r *usersRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE id = ?
	`

	user := &models.User{}
	var role string
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		r.logger.Error("failed to get user by id", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	user.Role = models.Role(role)
	return user, nil
}

// UpdatePassword replaces the password hash of a user. A missing user yields an error wrapping sql.ErrNoRows.
func (r *usersRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		r.logger.Error("failed to update password", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return nil
}

// ExistsByEmail checks whether a user with the email exists
func (r *usersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)", email).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check email existence", zap.Error(err))
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}
