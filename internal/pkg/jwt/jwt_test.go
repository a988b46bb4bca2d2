package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	token, err := Sign("user-1", "session-1", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "session-1", claims.SessionID)
}

func TestParseRejectsExpiredAndTampered(t *testing.T) {
	expired, err := Sign("user-1", "s", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	valid, err := Sign("user-1", "s", time.Hour)
	require.NoError(t, err)
	_, err = Parse(valid + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
