package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", 0, "casebook")
	assert.Equal(t, DefaultExpire, svc.Expire())

	token, expireAt, err := svc.GenerateToken(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expireAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "casebook", claims.Issuer)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _, err := NewJWTService("secret-a", time.Hour, "casebook").GenerateToken(1)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", time.Hour, "casebook").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, "casebook")
	claims := UserClaims{
		UserID: 7,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_SubjectMismatch(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, "casebook")
	claims := UserClaims{
		UserID: 7,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "8",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := NewJWTService("secret", time.Hour, "").ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
