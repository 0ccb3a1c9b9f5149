package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ratepro/backend/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims holds JWT claims for access and refresh tokens.
type Claims struct {
	UserID   uuid.UUID  `json:"user_id"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	Kind     string     `json:"kind"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// JWTService issues and validates access/refresh token pairs.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
}

// NewJWTService creates a JWT service.
func NewJWTService(secret, refreshSecret string, accessExpireHours, refreshExpireHours int) *JWTService {
	return &JWTService{
		accessSecret:  []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessExpire:  time.Duration(accessExpireHours) * time.Hour,
		refreshExpire: time.Duration(refreshExpireHours) * time.Hour,
	}
}

// GeneratePair creates an access and refresh token for the user.
func (s *JWTService) GeneratePair(u *models.User) (access, refresh string, err error) {
	access, err = s.generate(u, "access", s.accessSecret, s.accessExpire)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.generate(u, "refresh", s.refreshSecret, s.refreshExpire)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *JWTService) generate(u *models.User, kind string, secret []byte, expire time.Duration) (string, error) {
	claims := Claims{
		UserID:   u.ID,
		TenantID: u.TenantID,
		Email:    u.Email,
		Role:     string(u.Role),
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expire)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Validate parses and validates an access token.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	return s.validate(tokenString, "access", s.accessSecret)
}

// ValidateRefresh parses and validates a refresh token.
func (s *JWTService) ValidateRefresh(tokenString string) (*Claims, error) {
	return s.validate(tokenString, "refresh", s.refreshSecret)
}

func (s *JWTService) validate(tokenString, kind string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
