// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens.
const (
	RoleParent  = "parent"
	RoleDriver  = "driver"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
	RoleDisplay = "display"
)

// Identity là người dùng đã xác thực, lấy từ token.
type Identity struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	SchoolID string `json:"schoolId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// JWTClaims defines the payload for the JWT.
type JWTClaims struct {
	Identity
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid or expired token")

// GenerateJWT ký một token HS256. Việc cấp token thuộc hệ thống đăng nhập; hàm này dùng
// cho công cụ nội bộ và test.
func GenerateJWT(secret []byte, id Identity, ttl time.Duration) (string, error) {
	claims := &JWTClaims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseJWT verifies the token signature and expiry and returns the identity it carries.
func ParseJWT(secret []byte, tokenString string) (Identity, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.Role == "" {
		return Identity{}, fmt.Errorf("%w: missing userId or role", ErrInvalidToken)
	}
	return claims.Identity, nil
}
