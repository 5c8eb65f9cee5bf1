package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "token-abc"

func validSession() *models.Session {
	return &models.Session{
		UserID:      1,
		Email:       "teacher@example.com",
		Role:        models.RoleTeacher,
		AccessToken: testToken,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			return
		}
		next(w, r)
	}
}

// requestRecorder keeps the URL and headers of the last request the server saw
type requestRecorder struct {
	mu     sync.Mutex
	url    *url.URL
	header http.Header
}

func (rr *requestRecorder) record(r *http.Request) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.url = r.URL
	rr.header = r.Header.Clone()
}

func (rr *requestRecorder) Query() url.Values {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.url.Query()
}

func (rr *requestRecorder) Header(key string) string {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.header.Get(key)
}

func setupTestServer(t *testing.T) (*Client, *requestRecorder) {
	t.Helper()

	last := &requestRecorder{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			last.record(req)
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/api/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.CategoryInfo{{ID: models.CategoryNTSE, Title: "NTSE", ClassOptions: []int{10}}})
	})
	r.Get("/api/v1/materials", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") == "gate" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown category", "field": "category"})
			return
		}
		class := 10
		writeJSON(w, http.StatusOK, []models.Material{{ID: 4, Name: "Mental Ability", Category: models.CategoryNTSE, Kind: models.MaterialKindPYQ, Class: &class}})
	})
	r.Get("/api/v1/materials/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "4" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, models.Material{ID: 4, Name: "Mental Ability"})
	})
	r.Delete("/api/v1/materials/{id}", requireToken(func(w http.ResponseWriter, r *http.Request) {
		affected := 1
		if chi.URLParam(r, "id") == "404" {
			affected = 0
		}
		writeJSON(w, http.StatusOK, map[string]int{"affected": affected})
	}))
	r.Post("/api/v1/materials", requireToken(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		m := models.Material{
			ID:       12,
			Name:     r.FormValue("name"),
			Category: models.Category(r.FormValue("category")),
			FileType: models.FileType(r.FormValue("file_type")),
		}
		if f, header, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			m.FileURL = "http://storage/" + header.Filename + "?" + string(data)
		}
		writeJSON(w, http.StatusCreated, m)
	}))
	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenResponse{AccessToken: testToken, TokenType: "Bearer"})
	})
	r.Get("/api/v1/auth/session", requireToken(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Session{UserID: 1, Email: "teacher@example.com", Role: models.RoleTeacher, ExpiresAt: time.Now().Add(time.Hour)})
	}))
	r.Post("/api/v1/auth/password-reset", func(w http.ResponseWriter, r *http.Request) {
		var req models.PasswordResetRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "smtp-off@example.com" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service unavailable"})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "sent"})
	})
	r.Post("/api/v1/auth/password-reset/confirm", func(w http.ResponseWriter, r *http.Request) {
		var req models.PasswordResetConfirmRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Token != "reset-token" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reset link is invalid or has expired", "field": "token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
	})
	r.Post("/api/v1/auth/register", requireToken(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already exists"})
	}))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return New(server.URL+"/api/v1/", zap.NewNop()), last
}

// countingTransport counts the requests sent through it
type countingTransport struct {
	mu    sync.Mutex
	calls int
}

func (ct *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ct.mu.Lock()
	ct.calls++
	ct.mu.Unlock()
	return http.DefaultTransport.RoundTrip(req)
}

func TestClient_WithHTTPClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.CategoryInfo{})
	}))
	defer server.Close()

	transport := &countingTransport{}
	c := New(server.URL, zap.NewNop(), WithHTTPClient(&http.Client{Transport: transport, Timeout: time.Second}))

	_, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, transport.calls)
}

func TestClient_Categories(t *testing.T) {
	c, _ := setupTestServer(t)

	categories, err := c.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, models.CategoryNTSE, categories[0].ID)
}

func TestClient_QueryRecords(t *testing.T) {
	c, last := setupTestServer(t)
	class := 10

	materials, err := c.QueryRecords(context.Background(), models.FilterKey{
		Category: models.CategoryNTSE,
		Kind:     models.MaterialKindPYQ,
		Class:    &class,
	})
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.Equal(t, int64(4), materials[0].ID)

	query := last.Query()
	assert.Equal(t, "ntse", query.Get("category"))
	assert.Equal(t, "pyq", query.Get("type"))
	assert.Equal(t, "10", query.Get("class"))
	assert.NotEmpty(t, last.Header("X-Request-ID"))

	t.Run("validation error carries the field", func(t *testing.T) {
		_, err := c.QueryRecords(context.Background(), models.FilterKey{Category: "gate", Kind: models.MaterialKindPYQ})
		var validationErr *services.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "category", validationErr.Field)
	})
}

func TestClient_GetRecord(t *testing.T) {
	c, _ := setupTestServer(t)

	material, err := c.GetRecord(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "Mental Ability", material.Name)

	_, err = c.GetRecord(context.Background(), 5)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestClient_DeleteRecord(t *testing.T) {
	c, last := setupTestServer(t)

	tests := []struct {
		name             string
		session          *models.Session
		id               int64
		expectedAffected int64
		expectedErr      error
	}{
		{name: "deleted", session: validSession(), id: 4, expectedAffected: 1},
		{name: "nothing matched", session: validSession(), id: 404, expectedAffected: 0},
		{name: "nil session", session: nil, id: 4, expectedErr: services.ErrAuthRequired},
		{
			name:        "expired session",
			session:     &models.Session{UserID: 1, AccessToken: testToken, ExpiresAt: time.Now().Add(-time.Minute)},
			id:          4,
			expectedErr: services.ErrAuthRequired,
		},
		{
			name:        "rejected token",
			session:     &models.Session{UserID: 1, AccessToken: "stale", ExpiresAt: time.Now().Add(time.Hour)},
			id:          4,
			expectedErr: services.ErrAuthRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			affected, err := c.DeleteRecord(context.Background(), tt.session, tt.id)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.True(t, IsUnauthorized(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAffected, affected)
			assert.Equal(t, "Bearer "+testToken, last.Header("Authorization"))
		})
	}
}

func TestClient_Login(t *testing.T) {
	c, _ := setupTestServer(t)

	session, err := c.Login(context.Background(), "teacher@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), session.UserID)
	assert.Equal(t, testToken, session.AccessToken)
	assert.True(t, session.Valid(time.Now()))

	_, err = c.Login(context.Background(), "teacher@example.com", "wrong")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "invalid email or password", apiErr.Message)
}

func TestClient_Register(t *testing.T) {
	c, _ := setupTestServer(t)

	_, err := c.Register(context.Background(), validSession(), models.RegisterRequest{Email: "taken@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, services.ErrAlreadyExists)
}

func TestClient_PasswordReset(t *testing.T) {
	c, last := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, c.RequestPasswordReset(ctx, "teacher@example.com"))
	assert.Empty(t, last.Header("Authorization"))

	err := c.RequestPasswordReset(ctx, "smtp-off@example.com")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	require.NoError(t, c.ConfirmPasswordReset(ctx, "reset-token", "new-secret"))

	err = c.ConfirmPasswordReset(ctx, "used-token", "new-secret")
	var validationErr *services.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "token", validationErr.Field)
}

func TestClient_Upload(t *testing.T) {
	c, last := setupTestServer(t)

	material, err := c.Upload(context.Background(), validSession(), models.CreateMaterialRequest{
		Name:     "Light",
		Category: "neet",
		Kind:     "material",
		FileType: "pdf",
	}, &services.UploadFile{Reader: strings.NewReader("content"), Filename: "light.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Light", material.Name)
	assert.Equal(t, "http://storage/light.pdf?content", material.FileURL)
	assert.True(t, strings.HasPrefix(last.Header("Content-Type"), "multipart/form-data"))

	_, err = c.Upload(context.Background(), nil, models.CreateMaterialRequest{Name: "Light"}, nil)
	assert.ErrorIs(t, err, services.ErrAuthRequired)
}

func TestClient_DrivesMaterialQuery(t *testing.T) {
	c, _ := setupTestServer(t)
	query := services.NewMaterialQuery(c, zap.NewNop())
	class := 10
	key := models.FilterKey{Category: models.CategoryNTSE, Kind: models.MaterialKindPYQ, Class: &class}

	require.NoError(t, query.Fetch(context.Background(), key))
	require.Len(t, query.Materials(), 1)

	result := query.DeleteMaterial(context.Background(), validSession(), 4)
	assert.True(t, result.Success)
	assert.True(t, result.Removed)
	assert.Empty(t, query.Materials())

	result = query.DeleteMaterial(context.Background(), &models.Session{UserID: 1, AccessToken: "stale"}, 4)
	assert.False(t, result.Success)
	assert.True(t, result.IsAuthRequired())
}
