package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("unit-test-secret")

func TestJWTRoundTrip(t *testing.T) {
	id := Identity{UserID: "staff1", Role: RoleStaff, SchoolID: "school-1", Name: "Front desk", Email: "desk@example.com"}
	tok, err := GenerateJWT(secret, id, time.Hour)
	require.NoError(t, err)

	got, err := ParseJWT(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseJWTRejects(t *testing.T) {
	valid, err := GenerateJWT(secret, Identity{UserID: "u1", Role: RoleParent}, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT(secret, Identity{UserID: "u1", Role: RoleParent}, -time.Minute)
	require.NoError(t, err)
	noRole, err := GenerateJWT(secret, Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{Identity: Identity{UserID: "u1", Role: RoleAdmin}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct {
		secret []byte
		token  string
	}{
		"wrong secret": {[]byte("other"), valid},
		"expired":      {secret, expired},
		"missing role": {secret, noRole},
		"alg none":     {secret, unsigned},
		"not a jwt":    {secret, "abc.def"},
		"empty":        {secret, ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJWT(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
