// Package auth issues and verifies the bearer tokens that resolve a caller
// identity before any pipeline operation is reached.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried in issued tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken mints a signed HS256 JWT for the user.
func IssueToken(secret string, userID uint, email string, expiry time.Duration) (token string, expiresAt time.Time, err error) {
	expiresAt = time.Now().UTC().Add(expiry)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken verifies a signed token and returns the user id it names.
func ParseToken(secret, token string) (uint, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", err)
	}
	return uint(userID), nil
}
