package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studymaterials/backend/internal/middleware"
	"github.com/studymaterials/backend/internal/models"
	"github.com/studymaterials/backend/internal/services"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// APIError is a non 2xx response from the server
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Is maps response statuses onto the service sentinels
func (e *APIError) Is(target error) bool {
	switch target {
	case services.ErrAuthRequired:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case services.ErrNotFound:
		return e.Status == http.StatusNotFound
	case services.ErrAlreadyExists:
		return e.Status == http.StatusConflict
	}
	return false
}

// IsUnauthorized reports whether err means the session is missing, expired or lacks permission
func IsUnauthorized(err error) bool {
	return errors.Is(err, services.ErrAuthRequired)
}

// Client talks to the materials REST API. It satisfies services.Gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the API rooted at baseURL, e.g. http://localhost:8080/api/v1
func New(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categories returns every category with its class options
func (c *Client) Categories(ctx context.Context) ([]models.CategoryInfo, error) {
	var categories []models.CategoryInfo
	if err := c.do(ctx, http.MethodGet, "/categories", "", nil, "", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// QueryRecords returns the materials visible under the key
func (c *Client) QueryRecords(ctx context.Context, key models.FilterKey) ([]models.Material, error) {
	query := url.Values{}
	query.Set("category", string(key.Category))
	query.Set("type", string(key.Kind))
	if key.Class != nil {
		query.Set("class", strconv.Itoa(*key.Class))
	}

	materials := make([]models.Material, 0)
	if err := c.do(ctx, http.MethodGet, "/materials?"+query.Encode(), "", nil, "", &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

// GetRecord returns a single material
func (c *Client) GetRecord(ctx context.Context, id int64) (*models.Material, error) {
	var material models.Material
	if err := c.do(ctx, http.MethodGet, "/materials/"+strconv.FormatInt(id, 10), "", nil, "", &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// DeleteRecord deletes a material with the session's token and returns the number of deleted records
func (c *Client) DeleteRecord(ctx context.Context, session *models.Session, id int64) (int64, error) {
	token, err := tokenOf(session)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Affected int64 `json:"affected"`
	}
	if err := c.do(ctx, http.MethodDelete, "/materials/"+strconv.FormatInt(id, 10), token, nil, "", &resp); err != nil {
		return 0, err
	}
	return resp.Affected, nil
}

// Login signs in and returns the session behind the issued token
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	body, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}

	var token models.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", bytes.NewReader(body), "application/json", &token); err != nil {
		return nil, err
	}
	return c.Session(ctx, token.AccessToken)
}

// Session resolves an access token into its session
func (c *Client) Session(ctx context.Context, accessToken string) (*models.Session, error) {
	if accessToken == "" {
		return nil, services.ErrAuthRequired
	}

	var session models.Session
	if err := c.do(ctx, http.MethodGet, "/auth/session", accessToken, nil, "", &session); err != nil {
		return nil, err
	}
	session.AccessToken = accessToken
	return &session, nil
}

// Register creates another teacher account
func (c *Client) Register(ctx context.Context, session *models.Session, req models.RegisterRequest) (*models.User, error) {
	token, err := tokenOf(session)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode register request: %w", err)
	}

	var user models.User
	if err := c.do(ctx, http.MethodPost, "/auth/register", token, bytes.NewReader(body), "application/json", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset asks the server to email a reset token for the account
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body, err := json.Marshal(models.PasswordResetRequest{Email: email})
	if err != nil {
		return fmt.Errorf("failed to encode password reset request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/auth/password-reset", "", bytes.NewReader(body), "application/json", nil)
}

// ConfirmPasswordReset sets a new password with an emailed reset token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	body, err := json.Marshal(models.PasswordResetConfirmRequest{Token: token, Password: password})
	if err != nil {
		return fmt.Errorf("failed to encode password reset confirmation: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/auth/password-reset/confirm", "", bytes.NewReader(body), "application/json", nil)
}

// Upload creates a material. file is nil for videos.
func (c *Client) Upload(ctx context.Context, session *models.Session, req models.CreateMaterialRequest, file *services.UploadFile) (*models.Material, error) {
	token, err := tokenOf(session)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := []struct{ name, value string }{
		{"name", req.Name},
		{"category", req.Category},
		{"type", req.Kind},
		{"file_type", req.FileType},
		{"chapter", req.Chapter},
		{"class", req.Class},
		{"youtube_url", req.YouTubeURL},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if file != nil && file.Reader != nil {
		part, err := writer.CreateFormFile("file", file.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, fmt.Errorf("failed to copy file: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var material models.Material
	if err := c.do(ctx, http.MethodPost, "/materials", token, &body, writer.FormDataContentType(), &material); err != nil {
		return nil, err
	}
	return &material, nil
}

// do sends a request and decodes a JSON response into out
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.RequestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)

	if resp.StatusCode == http.StatusBadRequest && body.Field != "" {
		return &services.ValidationError{Field: body.Field, Message: body.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error, Field: body.Field}
}

func tokenOf(session *models.Session) (string, error) {
	if !session.Valid(time.Now()) || session.AccessToken == "" {
		return "", services.ErrAuthRequired
	}
	return session.AccessToken, nil
}
