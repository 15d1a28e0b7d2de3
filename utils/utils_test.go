package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "", RedactToken(""))
	assert.Equal(t, "****", RedactToken("short-token"))
	assert.Equal(t, "****", RedactToken("exactly12chr"))
	assert.Equal(t, "IGQWRP…wxyz", RedactToken("IGQWRPabcdefghijklmnopwxyz"))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("65f1c0ffee", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT("Bearer "+token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "65f1c0ffee", claims.TenantID())

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateJWT("65f1c0ffee", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired, "secret")
	assert.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromHeader(""))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetClientIP(r))
}
