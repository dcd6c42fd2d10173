package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridianshop/reviews-service/pkg/middleware"
)

// TokenClaims is the JWT claim set issued by the identity service.
type TokenClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewValidator returns a TokenValidator that verifies HS256-signed tokens
// with the shared secret and extracts the user claims.
func NewValidator(secret string) middleware.TokenValidator {
	key := []byte(secret)

	return func(token string) (*middleware.Claims, error) {
		parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}

		claims, ok := parsed.Claims.(*TokenClaims)
		if !ok || !parsed.Valid {
			return nil, fmt.Errorf("invalid token claims")
		}
		if claims.UserID == "" {
			return nil, fmt.Errorf("token missing user_id claim")
		}

		return &middleware.Claims{
			UserID: claims.UserID,
			Name:   claims.Name,
			Role:   claims.Role,
		}, nil
	}
}
