package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kosuke-kagatsume/construction-todo-system/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the identity the notification API trusts: who the caller is
// and which tenant every query is scoped to.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	jwt.RegisteredClaims
}

type AuthService interface {
	ValidateToken(tokenString string) (*Claims, error)
	GenerateToken(userID, tenantID uuid.UUID, email string, isSuperuser bool) (string, error)
}

type authService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthService(cfg *config.Config) AuthService {
	return &authService{
		jwtSecret: cfg.JWTSecret,
		jwtExpiry: cfg.JWTExpiry,
	}
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == uuid.Nil || claims.TenantID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) GenerateToken(userID, tenantID uuid.UUID, email string, isSuperuser bool) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		UserID:      userID,
		TenantID:    tenantID,
		Email:       email,
		IsSuperuser: isSuperuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}
