// Package auth turns bearer tokens into actors. Token issuance belongs to
// the identity service; GenerateToken exists for tooling and tests.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/models"
)

type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	DriverID *int64 `json:"driver_id,omitempty"`
}

func GenerateToken(actor models.Actor, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     actor.Role,
		DriverID: actor.DriverID,
	})
	return token.SignedString(secret)
}

// ParseToken validates an HS256 token and returns the actor it names.
func ParseToken(tokenString string, secret []byte) (models.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, fmt.Errorf("parse token: %v: %w", err, errs.ErrUnauthorized)
	}
	if !token.Valid || claims.Subject == "" || claims.Role == "" {
		return models.Actor{}, fmt.Errorf("incomplete token claims: %w", errs.ErrUnauthorized)
	}
	return models.Actor{ID: claims.Subject, Role: claims.Role, DriverID: claims.DriverID}, nil
}

// FromHeader extracts the token from an "Authorization: Bearer <token>" value.
func FromHeader(header string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("malformed authorization header: %w", errs.ErrUnauthorized)
	}
	return strings.TrimSpace(parts[1]), nil
}
