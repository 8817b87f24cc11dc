package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrDeviceAlreadyActive = errors.New("another device is already logged in, contact a proctor to reset")
)

// TokenType distinguishes candidate vs admin tokens.
type TokenType string

const (
	TokenTypeCandidate TokenType = "candidate"
	TokenTypeAdmin     TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
}

// AuthService handles authentication, JWT, and login-session management.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashPassword hashes a password with the configured bcrypt cost.
// Default cost is 6 for high-concurrency performance. Adjustable via BCRYPT_COST env.
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

// GenerateCandidateToken creates a JWT for a candidate and registers the login
// in Redis. A second login while the first is live is rejected; the candidate
// keeps exactly one device during an exam.
func (s *AuthService) GenerateCandidateToken(ctx context.Context, candidateID int) (string, error) {
	loginKey := config.CacheKey.CandidateLoginKey(candidateID)

	existing, err := s.rdb.Get(ctx, loginKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("check login: %w", err)
	}
	if existing != "" {
		return "", ErrDeviceAlreadyActive
	}

	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(candidateID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeCandidate,
		UserID:    candidateID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	// Store login in Redis with same expiry as JWT.
	if err := s.rdb.Set(ctx, loginKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store login: %w", err)
	}

	return signed, nil
}

// GenerateAdminToken creates a JWT for an admin.
func (s *AuthService) GenerateAdminToken(adminID int) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(adminID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeAdmin,
		UserID:    adminID,
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

// ValidateCandidateLogin checks that the token's JTI matches the active login in Redis.
func (s *AuthService) ValidateCandidateLogin(ctx context.Context, candidateID int, jti string) error {
	loginKey := config.CacheKey.CandidateLoginKey(candidateID)
	stored, err := s.rdb.Get(ctx, loginKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errors.New("no active login")
		}
		return fmt.Errorf("check login: %w", err)
	}
	if stored != jti {
		return errors.New("login invalidated")
	}
	return nil
}

// ResetCandidateLogin removes a candidate's login from Redis, allowing a new device.
func (s *AuthService) ResetCandidateLogin(ctx context.Context, candidateID int) error {
	loginKey := config.CacheKey.CandidateLoginKey(candidateID)
	return s.rdb.Del(ctx, loginKey).Err()
}
