package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/Iseelight/interview-backend/internal/config"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenType distinguishes candidate vs recruiter tokens.
type TokenType string

const (
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeRecruiter TokenType = "recruiter"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType    TokenType `json:"token_type"`
	UserID       int       `json:"user_id"`
	AssessmentID string    `json:"assessment_id,omitempty"` // Candidate only
	SessionID    string    `json:"session_id,omitempty"`    // Candidate only
}

// AuthService handles authentication, JWT, and bcrypt hashing.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateCandidateToken creates a JWT scoped to one assessment session and
// registers the candidate's active assessment in Redis so a second join from
// another tab can be detected.
func (s *AuthService) GenerateCandidateToken(ctx context.Context, candidateID int, assessmentID, sessionID uuid.UUID) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(candidateID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:    TokenTypeCandidate,
		UserID:       candidateID,
		AssessmentID: assessmentID.String(),
		SessionID:    sessionID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	activeKey := config.CacheKey.CandidateActiveAssessmentKey(candidateID)
	if err := s.rdb.Set(ctx, activeKey, assessmentID.String(), s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store active assessment: %w", err)
	}

	return signed, nil
}

// GenerateRecruiterToken creates a JWT for a recruiter.
func (s *AuthService) GenerateRecruiterToken(recruiterID int) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(recruiterID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeRecruiter,
		UserID:    recruiterID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ClearActiveAssessment removes a candidate's active assessment marker,
// allowing a fresh join after a session ends.
func (s *AuthService) ClearActiveAssessment(ctx context.Context, candidateID int) error {
	return s.rdb.Del(ctx, config.CacheKey.CandidateActiveAssessmentKey(candidateID)).Err()
}
