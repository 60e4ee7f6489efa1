package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	m := NewJWTManager("secret", 1)
	tok, err := m.GenerateToken("session-1", "BT hospital")
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, "BT hospital", claims.HospitalID)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tok, err := NewJWTManager("secret", 1).GenerateToken("session-1", "h")
	require.NoError(t, err)

	_, err = NewJWTManager("other", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyTokenExpired(t *testing.T) {
	m := NewJWTManager("secret", -1)
	tok, err := m.GenerateToken("session-1", "h")
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	a := GenerateRandomString(16)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, GenerateRandomString(16))
}
