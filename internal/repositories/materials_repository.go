package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/studymaterials/backend/internal/models"
	"go.uber.org/zap"
)

const materialColumns = "id, name, file_type, file_url, chapter, class, type, category, page_count, created_at"

type materialsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMaterialsRepository creates a new instance of the materials repository
func NewMaterialsRepository(db *sql.DB, logger *zap.Logger) *materialsRepository {
	return &materialsRepository{
		db:     db,
		logger: logger,
	}
}

// Method QueryRecords is a MaterialsRepository implementation for retrieving the materials visible under a filter key.
// When the key carries a class, records without a class are returned as well.
func (r *materialsRepository) QueryRecords(ctx context.Context, key models.FilterKey) ([]models.Material, error) {
	var query strings.Builder
	query.WriteString("SELECT " + materialColumns + " FROM materials WHERE category = ? AND type = ?")
	args := []any{string(key.Category), string(key.Kind)}

	if key.Class != nil {
		query.WriteString(" AND (class = ? OR class IS NULL)")
		args = append(args, *key.Class)
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		r.logger.Error("failed to query materials", zap.Error(err))
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	materials := make([]models.Material, 0)
	for rows.Next() {
		material, err := scanMaterial(rows)
		if err != nil {
			r.logger.Error("failed to scan material", zap.Error(err))
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, *material)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return materials, nil
}

// Method GetByID is a MaterialsRepository implementation for retrieving a single material.
// A missing record yields an error wrapping sql.ErrNoRows.
func (r *materialsRepository) GetByID(ctx context.Context, id int64) (*models.Material, error) {
	query := "SELECT " + materialColumns + " FROM materials WHERE id = ? LIMIT 1"

	material, err := scanMaterial(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("material not found: %w", err)
	}
	if err != nil {
		r.logger.Error("failed to get material by id", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get material by id: %w", err)
	}

	return material, nil
}

// Method Create is a MaterialsRepository implementation for inserting a material. It sets the generated ID.
func (r *materialsRepository) Create(ctx context.Context, material *models.Material) error {
	query := `
		INSERT INTO materials (name, file_type, file_url, chapter, class, type, category, page_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		material.Name,
		string(material.FileType),
		material.FileURL,
		nullableInt(material.Chapter),
		nullableInt(material.Class),
		string(material.Kind),
		string(material.Category),
		nullableInt(material.PageCount),
		material.CreatedAt,
	)
	if err != nil {
		r.logger.Error("failed to create material", zap.Error(err))
		return fmt.Errorf("failed to create material: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	material.ID = id
	return nil
}

// Method DeleteRecord is a MaterialsRepository implementation for deleting a material by ID.
// It returns the number of deleted rows; zero is not an error.
func (r *materialsRepository) DeleteRecord(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", id)
	if err != nil {
		r.logger.Error("failed to delete material", zap.Int64("id", id), zap.Error(err))
		return 0, fmt.Errorf("failed to delete material: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		r.logger.Debug("delete matched no material", zap.Int64("id", id))
	}
	return affected, nil
}

// Method ListFileURLs is a MaterialsRepository implementation for retrieving the URLs of all stored binaries
func (r *materialsRepository) ListFileURLs(ctx context.Context) ([]string, error) {
	args := make([]any, 0, len(models.FileTypes))
	for _, fileType := range models.FileTypes {
		if fileType.IsStored() {
			args = append(args, string(fileType))
		}
	}
	query := "SELECT file_url FROM materials WHERE file_type IN (?" + strings.Repeat(", ?", len(args)-1) + ")"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query file urls", zap.Error(err))
		return nil, fmt.Errorf("failed to query file urls: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan file url: %w", err)
		}
		urls = append(urls, url)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return urls, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (*models.Material, error) {
	var (
		material  models.Material
		fileType  string
		kind      string
		category  string
		chapter   sql.NullInt64
		class     sql.NullInt64
		pageCount sql.NullInt64
	)

	if err := row.Scan(
		&material.ID,
		&material.Name,
		&fileType,
		&material.FileURL,
		&chapter,
		&class,
		&kind,
		&category,
		&pageCount,
		&material.CreatedAt,
	); err != nil {
		return nil, err
	}

	material.FileType = models.FileType(fileType)
	material.Kind = models.MaterialKind(kind)
	material.Category = models.Category(category)
	material.Chapter = intFromNull(chapter)
	material.Class = intFromNull(class)
	material.PageCount = intFromNull(pageCount)
	return &material, nil
}

func intFromNull(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
