package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/san2804/finguard-go/internal/domain"
)

// AuthService validates bearer tokens issued by the identity provider.
// User management (sign-up, password reset) lives outside this service;
// all this core needs is a verified user id per request.
type AuthService struct {
	secret    []byte
	accessTTL time.Duration
	devAuth   bool
	logger    *zap.Logger
}

// NewAuthService creates the token validator. devAuth enables the local
// token minting used by development clients.
func NewAuthService(secret string, accessTTL time.Duration, devAuth bool, logger *zap.Logger) *AuthService {
	return &AuthService{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		devAuth:   devAuth,
		logger:    logger,
	}
}

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies a bearer token, returning its
// claims.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.Sub == "" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token claims"}
	}
	return claims, nil
}

// MintDevToken signs a short-lived token for the given user id. Only
// available with DEV_AUTH=true; the production identity provider issues
// real tokens.
func (s *AuthService) MintDevToken(userID string) (string, error) {
	if !s.devAuth {
		return "", &domain.ErrUnauthorized{Message: "dev auth disabled"}
	}
	if userID == "" {
		return "", &domain.ErrValidation{Field: "user_id", Message: "required"}
	}

	now := time.Now()
	claims := JWTClaims{
		Sub: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign dev token: %w", err)
	}

	s.logger.Debug("minted dev token", zap.String("user_id", userID))
	return signed, nil
}
