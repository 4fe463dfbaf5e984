package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akinalp/gatherly/models"
	"github.com/akinalp/gatherly/pkg"
)

// AuthService verifies the credential a client presents when it connects.
//
// Accounts and logins live in the external auth service; the chat core only
// checks the signature and reads {user_id, role} out of the token. IssueToken
// exists for development tooling and tests.
type AuthService interface {
	Authenticate(credential string) (*models.Identity, error)
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
	IssueToken(identity models.Identity, ttl time.Duration) (string, error)
}

type authService struct {
	jwtSecret []byte
}

// NewAuthService builds an AuthService for HS256 tokens signed with jwtSecret.
func NewAuthService(jwtSecret string) AuthService {
	return &authService{jwtSecret: []byte(jwtSecret)}
}

// Authenticate fails closed: any parse, signature, expiry or claim problem is an
// ErrUnauthorized.
func (s *authService) Authenticate(credential string) (*models.Identity, error) {
	claims, err := s.ValidateAccessToken(credential)
	if err != nil {
		return nil, err
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", pkg.ErrUnauthorized, role)
	}

	return &models.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     role,
	}, nil
}

func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user", pkg.ErrUnauthorized)
	}

	return claims, nil
}

func (s *authService) IssueToken(identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := models.TokenClaims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
