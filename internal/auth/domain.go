package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents an operator account.
type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	PasswordHash       string    `json:"-"`
	Active             bool      `json:"active"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Claims carries the identity embedded in access tokens. The registered ID
// (jti) keys the revocation list.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the login response payload.
type Session struct {
	Token              string    `json:"token"`
	ExpiresAt          time.Time `json:"expires_at"`
	User               User      `json:"user"`
	MustChangePassword bool      `json:"must_change_password"`
}
