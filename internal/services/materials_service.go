package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/storage"
	"github.com/studymaterials/backend/internal/youtube"
	"go.uber.org/zap"
)

// MaterialsRepository defines the persistence operations on material records
type MaterialsRepository interface {
	// Method QueryRecords returns materials matching the key, including classless records when the key has a class.
	QueryRecords(ctx context.Context, key models.FilterKey) ([]models.Material, error)

	// Method GetByID returns a single material. A missing record yields an error wrapping sql.ErrNoRows.
	GetByID(ctx context.Context, id int64) (*models.Material, error)

	// Method Create inserts the material and sets its ID.
	Create(ctx context.Context, material *models.Material) error

	// Method DeleteRecord deletes a material and returns the number of deleted rows.
	DeleteRecord(ctx context.Context, id int64) (int64, error)
}

// ObjectStorage stores uploaded binaries
type ObjectStorage interface {
	// Upload stores the content under path and returns its public URL
	Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (string, error)

	// Remove deletes the object stored under path
	Remove(ctx context.Context, path string) error
}

// UploadFile is a binary submitted together with a material
type UploadFile struct {
	Reader   io.Reader
	Filename string
}

type materialsService struct {
	repo        MaterialsRepository
	storage     ObjectStorage
	logger      *zap.Logger
	now         func() time.Time
	pageCounter func(data []byte) (int, error)
}

// NewMaterialsService creates the server side materials service
func NewMaterialsService(repo MaterialsRepository, storage ObjectStorage, logger *zap.Logger) *materialsService {
	return &materialsService{
		repo:        repo,
		storage:     storage,
		logger:      logger,
		now:         time.Now,
		pageCounter: pdfPageCount,
	}
}

// Categories returns every category with its title and class options
func (s *materialsService) Categories() []models.CategoryInfo {
	categories := make([]models.CategoryInfo, 0, len(models.Categories))
	for _, c := range models.Categories {
		categories = append(categories, models.CategoryInfo{
			ID:           c,
			Title:        c.Title(),
			ClassOptions: models.ClassOptions(c),
		})
	}
	return categories
}

// QueryRecords returns the materials visible under the key
func (s *materialsService) QueryRecords(ctx context.Context, key models.FilterKey) ([]models.Material, error) {
	if err := ValidateFilterKey(key); err != nil {
		return nil, err
	}

	materials, err := s.repo.QueryRecords(ctx, key)
	if err != nil {
		return nil, gatewayError("query", err)
	}
	return materials, nil
}

// GetMaterial returns a single material by id
func (s *materialsService) GetMaterial(ctx context.Context, id int64) (*models.Material, error) {
	if id <= 0 {
		return nil, newValidationError("id", "id must be positive")
	}

	material, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("material %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, gatewayError("get", err)
	}
	return material, nil
}

// DeleteRecord deletes a material on behalf of the session.
// Zero affected rows is reported to the caller and is not an error.
func (s *materialsService) DeleteRecord(ctx context.Context, session *models.Session, id int64) (int64, error) {
	if !session.Valid(s.now()) {
		return 0, ErrAuthRequired
	}
	if id <= 0 {
		return 0, newValidationError("id", "id must be positive")
	}

	affected, err := s.repo.DeleteRecord(ctx, id)
	if err != nil {
		return 0, gatewayError("delete", err)
	}

	s.logger.Info("material deleted",
		zap.Int64("id", id),
		zap.Int64("affected", affected),
		zap.Int64("user_id", session.UserID),
	)
	return affected, nil
}

// Upload validates a new material, stores its binary when it has one and inserts the record.
// The stored binary is removed again if the record cannot be inserted.
func (s *materialsService) Upload(ctx context.Context, session *models.Session, req models.CreateMaterialRequest, file *UploadFile) (*models.Material, error) {
	if !session.Valid(s.now()) {
		return nil, ErrAuthRequired
	}

	material, err := buildMaterial(req)
	if err != nil {
		return nil, err
	}

	var storedPath string
	switch {
	case !material.FileType.IsStored():
		url := strings.TrimSpace(req.YouTubeURL)
		if !youtube.LooksLikeVideoURL(url) {
			return nil, newValidationError("youtube_url", "please enter a valid YouTube URL")
		}
		if _, ok := youtube.VideoID(url); !ok {
			return nil, newValidationError("youtube_url", "could not find a video id in the URL")
		}
		material.FileURL = url

	default:
		if file == nil || file.Reader == nil {
			return nil, newValidationError("file", "a file is required for %s materials", material.FileType)
		}

		data, err := io.ReadAll(file.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file: %w", err)
		}
		if len(data) == 0 {
			return nil, newValidationError("file", "file is empty")
		}

		contentType, err := s.checkContent(material, data)
		if err != nil {
			return nil, err
		}

		storedPath = storage.GenerateObjectPath(string(material.Category), objectExtension(file.Filename, contentType), s.now())
		url, err := s.storage.Upload(ctx, storedPath, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			return nil, gatewayError("upload", err)
		}
		material.FileURL = url
	}

	material.CreatedAt = s.now().UTC()
	if err := s.repo.Create(ctx, material); err != nil {
		if storedPath != "" {
			if removeErr := s.storage.Remove(ctx, storedPath); removeErr != nil {
				s.logger.Warn("failed to remove object after insert failure",
					zap.String("path", storedPath),
					zap.Error(removeErr),
				)
			}
		}
		return nil, gatewayError("insert", err)
	}

	s.logger.Info("material uploaded",
		zap.Int64("id", material.ID),
		zap.String("category", string(material.Category)),
		zap.String("file_type", string(material.FileType)),
		zap.Int64("user_id", session.UserID),
	)
	return material, nil
}

// checkContent sniffs the binary and makes sure it matches the declared file type.
// PDFs must be readable; their page count is stored on the material.
func (s *materialsService) checkContent(material *models.Material, data []byte) (string, error) {
	contentType := http.DetectContentType(data)

	switch material.FileType {
	case models.FileTypeImage:
		if !strings.HasPrefix(contentType, "image/") {
			return "", newValidationError("file", "expected an image, got %s", contentType)
		}
	case models.FileTypePDF:
		if contentType != "application/pdf" {
			return "", newValidationError("file", "expected a PDF, got %s", contentType)
		}
		pages, err := s.pageCounter(data)
		if err != nil {
			return "", newValidationError("file", "file is not a readable PDF")
		}
		material.PageCount = &pages
	}
	return contentType, nil
}

// objectExtension keeps the extension of the uploaded file name unless it names a different
// content type than the sniffed one, in which case the extension follows the content.
func objectExtension(filename, contentType string) string {
	ext := storage.ExtensionFromFilename(filename, contentType)
	if storage.ContentTypeForExtension(ext) != contentType {
		return storage.ExtensionFromFilename("", contentType)
	}
	return ext
}

// buildMaterial validates the submitted fields
func buildMaterial(req models.CreateMaterialRequest) (*models.Material, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidationError("name", "name is required")
	}

	category := models.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	if !category.IsValid() {
		return nil, newValidationError("category", "unknown category %q", req.Category)
	}

	kind := models.MaterialKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if !kind.IsValid() {
		return nil, newValidationError("type", "unknown material type %q", req.Kind)
	}

	fileType := models.FileType(strings.ToLower(strings.TrimSpace(req.FileType)))
	if !fileType.IsValid() {
		return nil, newValidationError("file_type", "unknown file type %q", req.FileType)
	}

	chapter, err := parseOptionalPositive("chapter", req.Chapter)
	if err != nil {
		return nil, err
	}

	class, err := parseOptionalPositive("class", req.Class)
	if err != nil {
		return nil, err
	}
	if class != nil && !category.AllowsClass(*class) {
		if len(models.ClassOptions(category)) == 0 {
			return nil, newValidationError("class", "%s materials do not have classes", category)
		}
		return nil, newValidationError("class", "class %d is not available for %s", *class, category)
	}

	return &models.Material{
		Name:     name,
		FileType: fileType,
		Chapter:  chapter,
		Class:    class,
		Kind:     kind,
		Category: category,
	}, nil
}

var disablePDFConfigDir sync.Once

func pdfPageCount(data []byte) (int, error) {
	// the server never reads a pdfcpu config.yml from the user config dir
	disablePDFConfigDir.Do(api.DisableConfigDir)
	return api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
}
