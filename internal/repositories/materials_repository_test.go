package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/studymaterials/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var materialRowColumns = []string{"id", "name", "file_type", "file_url", "chapter", "class", "type", "category", "page_count", "created_at"}

// setupMaterialsTestRepository creates a materials repository with a mock database
func setupMaterialsTestRepository(t *testing.T) (*materialsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewMaterialsRepository(db, zap.NewNop())

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

func intPtr(v int) *int {
	return &v
}

func TestNewMaterialsRepository(t *testing.T) {
	logger := zap.NewNop()
	db := &sql.DB{}

	repo := NewMaterialsRepository(db, logger)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
	assert.Equal(t, logger, repo.logger)
}

func TestMaterialsRepository_QueryRecords(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	baseQuery := regexp.QuoteMeta("SELECT " + materialColumns + " FROM materials WHERE category = ? AND type = ?")
	classQuery := regexp.QuoteMeta("SELECT " + materialColumns + " FROM materials WHERE category = ? AND type = ? AND (class = ? OR class IS NULL)")

	tests := []struct {
		name          string
		key           models.FilterKey
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		validate      func(*testing.T, []models.Material)
	}{
		{
			name: "without class filter",
			key:  models.FilterKey{Category: models.CategoryJEE, Kind: models.MaterialKindMaterial},
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(materialRowColumns).
					AddRow(1, "Kinematics", "pdf", "http://s/materials/jee/1.pdf", 3, 11, "material", "jee", 12, createdAt).
					AddRow(2, "Formula sheet", "img", "http://s/materials/jee/2.png", nil, nil, "material", "jee", nil, createdAt)
				mock.ExpectQuery("^" + baseQuery + "$").
					WithArgs("jee", "material").
					WillReturnRows(rows)
			},
			validate: func(t *testing.T, materials []models.Material) {
				require.Len(t, materials, 2)
				assert.Equal(t, int64(1), materials[0].ID)
				assert.Equal(t, models.FileTypePDF, materials[0].FileType)
				assert.Equal(t, intPtr(3), materials[0].Chapter)
				assert.Equal(t, intPtr(11), materials[0].Class)
				assert.Equal(t, intPtr(12), materials[0].PageCount)
				assert.Equal(t, createdAt, materials[0].CreatedAt)
				assert.Nil(t, materials[1].Chapter)
				assert.Nil(t, materials[1].Class)
				assert.Nil(t, materials[1].PageCount)
				assert.Equal(t, models.FileTypeImage, materials[1].FileType)
			},
		},
		{
			name: "with class filter includes classless records",
			key:  models.FilterKey{Category: models.CategoryNCERT, Kind: models.MaterialKindPYQ, Class: intPtr(9)},
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(materialRowColumns).
					AddRow(5, "2019 paper", "pdf", "http://s/materials/ncert/5.pdf", nil, 9, "pyq", "ncert", 4, createdAt).
					AddRow(6, "Any class", "video", "https://youtu.be/dQw4w9WgXcQ", nil, nil, "pyq", "ncert", nil, createdAt)
				mock.ExpectQuery(classQuery).
					WithArgs("ncert", "pyq", 9).
					WillReturnRows(rows)
			},
			validate: func(t *testing.T, materials []models.Material) {
				require.Len(t, materials, 2)
				assert.Equal(t, intPtr(9), materials[0].Class)
				assert.Nil(t, materials[1].Class)
			},
		},
		{
			name: "no rows is an empty result",
			key:  models.FilterKey{Category: models.CategoryOlympiad, Kind: models.MaterialKindSolution},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("^" + baseQuery + "$").
					WithArgs("olympiad", "solution").
					WillReturnRows(sqlmock.NewRows(materialRowColumns))
			},
			validate: func(t *testing.T, materials []models.Material) {
				assert.NotNil(t, materials)
				assert.Empty(t, materials)
			},
		},
		{
			name: "database error",
			key:  models.FilterKey{Category: models.CategoryJEE, Kind: models.MaterialKindMaterial},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(baseQuery).
					WillReturnError(errors.New("connection refused"))
			},
			expectedError: true,
		},
		{
			name: "scan error",
			key:  models.FilterKey{Category: models.CategoryJEE, Kind: models.MaterialKindMaterial},
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(materialRowColumns).
					AddRow("not-a-number", "x", "pdf", "u", nil, nil, "material", "jee", nil, createdAt)
				mock.ExpectQuery(baseQuery).WillReturnRows(rows)
			},
			expectedError: true,
		},
		{
			name: "row iteration error",
			key:  models.FilterKey{Category: models.CategoryJEE, Kind: models.MaterialKindMaterial},
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(materialRowColumns).
					AddRow(1, "x", "pdf", "u", nil, nil, "material", "jee", nil, createdAt).
					RowError(0, errors.New("row error"))
				mock.ExpectQuery(baseQuery).WillReturnRows(rows)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMaterialsTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			materials, err := repo.QueryRecords(context.Background(), tt.key)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, materials)
			} else {
				require.NoError(t, err)
				tt.validate(t, materials)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMaterialsRepository_GetByID(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("SELECT " + materialColumns + " FROM materials WHERE id = ? LIMIT 1")

	tests := []struct {
		name          string
		id            int64
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		notFound      bool
	}{
		{
			name: "success",
			id:   7,
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(materialRowColumns).
					AddRow(7, "Optics", "video", "https://youtu.be/dQw4w9WgXcQ", 2, 12, "material", "jee", nil, createdAt)
				mock.ExpectQuery(query).WithArgs(int64(7)).WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			id:   8,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)
			},
			expectedError: true,
			notFound:      true,
		},
		{
			name: "database error",
			id:   9,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WithArgs(int64(9)).WillReturnError(errors.New("timeout"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMaterialsTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			material, err := repo.GetByID(context.Background(), tt.id)

			if tt.expectedError {
				require.Error(t, err)
				assert.Nil(t, material)
				assert.Equal(t, tt.notFound, errors.Is(err, sql.ErrNoRows))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.id, material.ID)
				assert.Equal(t, models.FileTypeVideo, material.FileType)
				assert.Equal(t, intPtr(2), material.Chapter)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMaterialsRepository_Create(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		material      *models.Material
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
		expectedID    int64
	}{
		{
			name: "success with optional fields",
			material: &models.Material{
				Name: "Kinematics", FileType: models.FileTypePDF, FileURL: "http://s/materials/jee/1.pdf",
				Chapter: intPtr(3), Class: intPtr(11), Kind: models.MaterialKindMaterial,
				Category: models.CategoryJEE, PageCount: intPtr(10), CreatedAt: createdAt,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO materials`).
					WithArgs("Kinematics", "pdf", "http://s/materials/jee/1.pdf", 3, 11, "material", "jee", 10, createdAt).
					WillReturnResult(sqlmock.NewResult(15, 1))
			},
			expectedID: 15,
		},
		{
			name: "success without optional fields",
			material: &models.Material{
				Name: "Olympiad intro", FileType: models.FileTypeVideo, FileURL: "https://youtu.be/dQw4w9WgXcQ",
				Kind: models.MaterialKindMaterial, Category: models.CategoryOlympiad, CreatedAt: createdAt,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO materials`).
					WithArgs("Olympiad intro", "video", "https://youtu.be/dQw4w9WgXcQ", nil, nil, "material", "olympiad", nil, createdAt).
					WillReturnResult(sqlmock.NewResult(16, 1))
			},
			expectedID: 16,
		},
		{
			name: "database error",
			material: &models.Material{
				Name: "x", FileType: models.FileTypeImage, FileURL: "u",
				Kind: models.MaterialKindMaterial, Category: models.CategoryJEE, CreatedAt: createdAt,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO materials`).WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
		{
			name: "last insert id error",
			material: &models.Material{
				Name: "x", FileType: models.FileTypeImage, FileURL: "u",
				Kind: models.MaterialKindMaterial, Category: models.CategoryJEE, CreatedAt: createdAt,
			},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO materials`).
					WillReturnResult(sqlmock.NewErrorResult(errors.New("no id")))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMaterialsTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			err := repo.Create(context.Background(), tt.material)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedID, tt.material.ID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("sets created at when missing", func(t *testing.T) {
		repo, mock, cleanup := setupMaterialsTestRepository(t)
		defer cleanup()

		mock.ExpectExec(`INSERT INTO materials`).WillReturnResult(sqlmock.NewResult(1, 1))
		material := &models.Material{Name: "x", FileType: models.FileTypeImage, Kind: models.MaterialKindMaterial, Category: models.CategoryJEE}

		require.NoError(t, repo.Create(context.Background(), material))
		assert.False(t, material.CreatedAt.IsZero())
	})
}

func TestMaterialsRepository_DeleteRecord(t *testing.T) {
	tests := []struct {
		name             string
		id               int64
		setupMock        func(sqlmock.Sqlmock)
		expectedAffected int64
		expectedError    bool
	}{
		{
			name: "deleted",
			id:   3,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).
					WithArgs(int64(3)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectedAffected: 1,
		},
		{
			name: "nothing to delete",
			id:   4,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).
					WithArgs(int64(4)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedAffected: 0,
		},
		{
			name: "database error",
			id:   5,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).
					WithArgs(int64(5)).
					WillReturnError(errors.New("database error"))
			},
			expectedError: true,
		},
		{
			name: "rows affected error",
			id:   6,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`DELETE FROM materials WHERE id = \?`).
					WithArgs(int64(6)).
					WillReturnResult(sqlmock.NewErrorResult(errors.New("unsupported")))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupMaterialsTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			affected, err := repo.DeleteRecord(context.Background(), tt.id)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedAffected, affected)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMaterialsRepository_ListFileURLs(t *testing.T) {
	query := regexp.QuoteMeta("SELECT file_url FROM materials WHERE file_type IN (?, ?)")

	t.Run("success", func(t *testing.T) {
		repo, mock, cleanup := setupMaterialsTestRepository(t)
		defer cleanup()

		mock.ExpectQuery(query).
			WithArgs("img", "pdf").
			WillReturnRows(sqlmock.NewRows([]string{"file_url"}).AddRow("http://s/a.pdf").AddRow("http://s/b.png"))

		urls, err := repo.ListFileURLs(context.Background())

		require.NoError(t, err)
		assert.Equal(t, []string{"http://s/a.pdf", "http://s/b.png"}, urls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock, cleanup := setupMaterialsTestRepository(t)
		defer cleanup()

		mock.ExpectQuery(query).WillReturnError(errors.New("database error"))

		urls, err := repo.ListFileURLs(context.Background())

		assert.Error(t, err)
		assert.Nil(t, urls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
