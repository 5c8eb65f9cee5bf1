package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/studymaterials/backend/internal/auth"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/services"
	"go.uber.org/zap"
)

// multipartMemoryLimit is the part of an upload kept in memory while parsing; the rest spills to disk
const multipartMemoryLimit = 8 << 20

// MaterialsService is the interface that wraps methods for materials business logic.
type MaterialsService interface {
	// Method Categories returns every category with its title and class options.
	Categories() []models.CategoryInfo
	// Method QueryRecords retrieves the materials visible under the filter key.
	//
	// A malformed key yields a *services.ValidationError.
	QueryRecords(ctx context.Context, key models.FilterKey) ([]models.Material, error)
	// Method GetMaterial retrieves a material by its ID.
	//
	// If the material does not exist, the error wraps services.ErrNotFound.
	GetMaterial(ctx context.Context, id int64) (*models.Material, error)
	// Method DeleteRecord deletes a material on behalf of the session and returns the number of deleted records.
	//
	// Zero deleted records is not an error.
	DeleteRecord(ctx context.Context, session *models.Session, id int64) (int64, error)
	// Method Upload validates and stores a new material.
	//
	// "file" is nil for video materials, which carry a YouTube URL instead.
	Upload(ctx context.Context, session *models.Session, req models.CreateMaterialRequest, file *services.UploadFile) (*models.Material, error)
}

// MaterialsHandler handles HTTP requests for materials and categories
type MaterialsHandler struct {
	BaseHandler
	service MaterialsService
	authMw  func(http.Handler) http.Handler
}

// DeleteResponse reports how many records a delete removed
type DeleteResponse struct {
	Affected int64 `json:"affected"`
}

// NewMaterialsHandler creates a new materials handler
func NewMaterialsHandler(svc MaterialsService, logger *zap.Logger, authMw func(http.Handler) http.Handler) *MaterialsHandler {
	return &MaterialsHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     svc,
		authMw:      authMw,
	}
}

// RegisterRoutes registers all materials handler routes
func (h *MaterialsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.GetCategories)
	r.Route("/materials", func(r chi.Router) {
		r.Get("/", h.GetMaterials)
		r.Get("/{id}", h.GetMaterial)

		r.Group(func(r chi.Router) {
			r.Use(h.authMw)
			r.Post("/", h.UploadMaterial)
			r.Delete("/{id}", h.DeleteMaterial)
		})
	})
}

// GetCategories handles GET /api/v1/categories
// @Summary List categories
// @Description Get all categories with display titles and the class levels each one allows
// @Tags categories
// @Produce json
// @Success 200 {array} models.CategoryInfo
// @Router /categories [get]
func (h *MaterialsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	h.RespondJSON(w, http.StatusOK, h.service.Categories())
}

// GetMaterials handles GET /api/v1/materials
// @Summary List materials
// @Description Get materials of a category and type. With a class, materials without a class are included.
// @Tags materials
// @Produce json
// @Param category query string true "Category (jee, ncert, neet, olympiad, cuet, ntse)"
// @Param type query string true "Material type (material, pyq, solution)"
// @Param class query int false "Class level"
// @Success 200 {array} models.Material
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /materials [get]
func (h *MaterialsHandler) GetMaterials(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key, err := services.ParseFilterKey(query.Get("category"), query.Get("type"), query.Get("class"))
	if err != nil {
		h.RespondServiceError(w, err, "failed to get materials")
		return
	}

	materials, err := h.service.QueryRecords(r.Context(), key)
	if err != nil {
		h.RespondServiceError(w, err, "failed to get materials")
		return
	}

	h.RespondJSON(w, http.StatusOK, materials)
}

// GetMaterial handles GET /api/v1/materials/{id}
// @Summary Get material
// @Description Get a single material by ID
// @Tags materials
// @Produce json
// @Param id path int true "Material ID"
// @Success 200 {object} models.Material
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Failure 404 {object} ErrorResponse "Material not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /materials/{id} [get]
func (h *MaterialsHandler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	material, err := h.service.GetMaterial(r.Context(), id)
	if err != nil {
		h.RespondServiceError(w, err, "failed to get material")
		return
	}

	h.RespondJSON(w, http.StatusOK, material)
}

// DeleteMaterial handles DELETE /api/v1/materials/{id}
// @Summary Delete material
// @Description Delete a material record. Deleting a missing record succeeds with affected 0.
// @Tags materials
// @Produce json
// @Security BearerAuth
// @Param id path int true "Material ID"
// @Success 200 {object} DeleteResponse
// @Failure 400 {object} ErrorResponse "Invalid ID"
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /materials/{id} [delete]
func (h *MaterialsHandler) DeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	session, _ := auth.GetSession(r.Context())
	affected, err := h.service.DeleteRecord(r.Context(), session, id)
	if err != nil {
		h.RespondServiceError(w, err, "failed to delete material")
		return
	}

	h.RespondJSON(w, http.StatusOK, DeleteResponse{Affected: affected})
}

// UploadMaterial handles POST /api/v1/materials
// @Summary Upload material
// @Description Create a material. Videos carry a YouTube URL, images and PDFs carry a file.
// @Tags materials
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param name formData string true "Name"
// @Param category formData string true "Category"
// @Param type formData string true "Material type"
// @Param file_type formData string true "File type (img, video, pdf)"
// @Param chapter formData int false "Chapter"
// @Param class formData int false "Class level"
// @Param youtube_url formData string false "YouTube URL for videos"
// @Param file formData file false "Image or PDF"
// @Success 201 {object} models.Material
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Authentication required"
// @Failure 413 {object} ErrorResponse "Upload too large"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /materials [post]
func (h *MaterialsHandler) UploadMaterial(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.RespondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		h.Logger.Info("failed to parse multipart form", zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, "failed to parse request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := models.CreateMaterialRequest{
		Name:       r.FormValue("name"),
		Category:   r.FormValue("category"),
		Kind:       r.FormValue("type"),
		FileType:   r.FormValue("file_type"),
		Chapter:    r.FormValue("chapter"),
		Class:      r.FormValue("class"),
		YouTubeURL: r.FormValue("youtube_url"),
	}

	var upload *services.UploadFile
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		upload = &services.UploadFile{
			Reader:   file,
			Filename: header.Filename,
		}
	case !errors.Is(err, http.ErrMissingFile):
		h.RespondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	session, _ := auth.GetSession(r.Context())
	material, err := h.service.Upload(r.Context(), session, req, upload)
	if err != nil {
		h.RespondServiceError(w, err, "failed to upload material")
		return
	}

	h.RespondJSON(w, http.StatusCreated, material)
}

func (h *MaterialsHandler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.RespondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid id", Field: "id"})
		return 0, false
	}
	return id, true
}
