package auth

import (
	"time"

	"ats-scanner/internal/domain/users"

	"github.com/golang-jwt/jwt/v5"
)

const TokenTTL = 24 * time.Hour

// IssueToken signs the HS256 session token read back by the auth middleware.
func IssueToken(secret []byte, u users.User, now time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  u.ID,
		"email":    u.Email,
		"username": u.Username,
		"role":     u.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(TokenTTL).Unix(),
	})
	return t.SignedString(secret)
}
