// Package auth issues and validates teacher sessions
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/studymaterials/backend/internal/models"
)

const (
	accessTokenType = "access"
	resetTokenType  = "password_reset"
)

// TokenGenerator handles JWT access and password reset token generation and validation
type TokenGenerator struct {
	secret            string
	accessTokenExpiry time.Duration
	resetTokenExpiry  time.Duration
	now               func() time.Time
}

// ResetClaims is the content of a valid password reset token
type ResetClaims struct {
	UserID int64
	// Fingerprint is the PasswordFingerprint of the hash the token was issued for
	Fingerprint string
	ExpiresAt   time.Time
}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator(secret string, accessExpiry, resetExpiry time.Duration) *TokenGenerator {
	return &TokenGenerator{
		secret:            secret,
		accessTokenExpiry: accessExpiry,
		resetTokenExpiry:  resetExpiry,
		now:               time.Now,
	}
}

// PasswordFingerprint identifies a password hash without revealing it.
// A reset token stops working once the password it was issued for has changed.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

// Issue signs an access token for the user and returns the resulting session
func (tg *TokenGenerator) Issue(user *models.User) (*models.Session, error) {
	issuedAt := tg.now()
	expiresAt := issuedAt.Add(tg.accessTokenExpiry)

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     expiresAt.Unix(),
		"iat":     issuedAt.Unix(),
		"type":    accessTokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tg.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &models.Session{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		AccessToken: tokenString,
		ExpiresAt:   time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// IssueReset signs a short-lived password reset token for the user
func (tg *TokenGenerator) IssueReset(user *models.User) (string, time.Time, error) {
	issuedAt := tg.now()
	expiresAt := time.Unix(issuedAt.Add(tg.resetTokenExpiry).Unix(), 0).UTC()

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"pwd":     PasswordFingerprint(user.PasswordHash),
		"exp":     expiresAt.Unix(),
		"iat":     issuedAt.Unix(),
		"type":    resetTokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(tg.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign reset token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateReset parses a password reset token
func (tg *TokenGenerator) ValidateReset(tokenString string) (*ResetClaims, error) {
	claims, err := tg.parse(tokenString, resetTokenType)
	if err != nil {
		return nil, err
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("user_id not found in token")
	}

	fingerprint, ok := claims["pwd"].(string)
	if !ok || fingerprint == "" {
		return nil, fmt.Errorf("pwd not found in token")
	}

	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, fmt.Errorf("exp not found in token")
	}

	return &ResetClaims{
		UserID:      int64(userID),
		Fingerprint: fingerprint,
		ExpiresAt:   expiresAt.Time.UTC(),
	}, nil
}

// Validate parses an access token and returns the session it represents
func (tg *TokenGenerator) Validate(tokenString string) (*models.Session, error) {
	claims, err := tg.parse(tokenString, accessTokenType)
	if err != nil {
		return nil, err
	}

	// JWT claims decode numbers as float64
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return nil, fmt.Errorf("user_id not found in token")
	}

	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("role not found in token")
	}

	email, _ := claims["email"].(string)

	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return nil, fmt.Errorf("exp not found in token")
	}

	return &models.Session{
		UserID:      int64(userID),
		Email:       email,
		Role:        models.Role(role),
		AccessToken: tokenString,
		ExpiresAt:   expiresAt.Time.UTC(),
	}, nil
}

// parse verifies the signature and expiry of a token and checks its type
func (tg *TokenGenerator) parse(tokenString, tokenType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tg.secret), nil
	}, jwt.WithTimeFunc(tg.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if t, ok := claims["type"].(string); !ok || t != tokenType {
		return nil, fmt.Errorf("token type is not %q", tokenType)
	}
	return claims, nil
}
