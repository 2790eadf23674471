// Package auth provides bearer token extraction and JWT validation for the
// HTTP layer. Identity established here is passed into the upload pipeline
// as an already-validated value.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "clipstash"

// Static errors for authentication.
var (
	// ErrNoAuthHeader is returned when the Authorization header is missing.
	ErrNoAuthHeader = errors.New("auth: authorization header is missing")
	// ErrMalformedAuthHeader is returned when the Authorization header is not a bearer token.
	ErrMalformedAuthHeader = errors.New("auth: malformed authorization header")
	// ErrInvalidToken is returned when the JWT fails validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// GetBearerToken extracts the bearer token from the Authorization header.
func GetBearerToken(headers http.Header) (string, error) {
	authHeader := headers.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoAuthHeader
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedAuthHeader
	}

	return parts[1], nil
}

// MakeJWT creates a signed HS256 token for the given user, valid for expiresIn.
func MakeJWT(userID uuid.UUID, secret string, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateJWT verifies the token signature and claims and returns the user ID
// from the subject claim.
func ValidateJWT(tokenString, secret string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject: %w", ErrInvalidToken, err)
	}
	return userID, nil
}
