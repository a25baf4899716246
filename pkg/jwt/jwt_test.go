package jwt

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/vorbi/pkg/errcode"
)

const testSecret = "test-secret-key"

func errCode(t *testing.T, err error) int {
	t.Helper()
	var e *errcode.Error
	require.True(t, errors.As(err, &e), "expected *errcode.Error, got %T", err)
	return e.Code
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("m___42", 1, testSecret, 24)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "m___42", claims.UserId)
	assert.Equal(t, 1, claims.PlatformId)
	assert.Equal(t, "vorbi-chat", claims.Issuer)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("m___42", 1, testSecret, 24)
	require.NoError(t, err)

	_, err = ParseToken(token, "another-secret")
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, errCode(t, err))
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("m___42", 1, testSecret, -1)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, errCode(t, err))
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not-a-token", testSecret)
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, errCode(t, err))
}

func TestValidateToken(t *testing.T) {
	token, err := GenerateToken("m___42", 1, testSecret, 24)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret, "m___42", 1)
	require.NoError(t, err)
	assert.Equal(t, "m___42", claims.UserId)

	_, err = ValidateToken(token, testSecret, "m___99", 1)
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenMismatch.Code, errCode(t, err))

	_, err = ValidateToken(token, testSecret, "m___42", 2)
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenMismatch.Code, errCode(t, err))
}

func signExternalToken(t *testing.T, claims ExternalClaims) string {
	t.Helper()
	claims.ExpiresAt = jwtlib.NewNumericDate(time.Now().Add(time.Hour))
	claims.IssuedAt = jwtlib.NewNumericDate(time.Now())
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestParseExternalToken(t *testing.T) {
	token := signExternalToken(t, ExternalClaims{AccountId: 42, Role: "member"})

	claims, err := ParseExternalToken(token, testSecret, "member", 3)
	require.NoError(t, err)
	assert.Equal(t, "m___42", claims.UserId)
	assert.Equal(t, 3, claims.PlatformId)
}

func TestParseExternalTokenStaff(t *testing.T) {
	token := signExternalToken(t, ExternalClaims{AccountId: 7, Role: "staff"})

	claims, err := ParseExternalToken(token, testSecret, "member", 3)
	require.NoError(t, err)
	assert.Equal(t, "st__7", claims.UserId)
}

func TestParseExternalTokenDefaultRole(t *testing.T) {
	token := signExternalToken(t, ExternalClaims{AccountId: 42})

	claims, err := ParseExternalToken(token, testSecret, "member", 3)
	require.NoError(t, err)
	assert.Equal(t, "m___42", claims.UserId)
}

func TestParseExternalTokenUnknownRole(t *testing.T) {
	token := signExternalToken(t, ExternalClaims{AccountId: 42, Role: "robot"})

	_, err := ParseExternalToken(token, testSecret, "member", 3)
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, errCode(t, err))
}

func TestParseExternalTokenWrongSecret(t *testing.T) {
	token := signExternalToken(t, ExternalClaims{AccountId: 42, Role: "member"})

	_, err := ParseExternalToken(token, "another-secret", "member", 3)
	require.Error(t, err)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, errCode(t, err))
}
