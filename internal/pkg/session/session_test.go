package session

import (
	"testing"
	"time"

	jwtpkg "github.com/ideaflow/server/internal/pkg/jwt"
	"github.com/ideaflow/server/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIssueAndRevoke(t *testing.T) {
	db := testdb.Open(t)

	token, s, err := Issue(db, "user-1", " 127.0.0.1 ", "ua", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", s.IP)

	claims, err := jwtpkg.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, s.ID, claims.SessionID)

	active, err := IsActive(db, "user-1", s.ID)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = IsActive(db, "user-2", s.ID)
	require.NoError(t, err)
	assert.False(t, active)

	list, err := ListActive(db, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, Revoke(db, "user-1", s.ID))
	active, err = IsActive(db, "user-1", s.ID)
	require.NoError(t, err)
	assert.False(t, active)

	assert.ErrorIs(t, Revoke(db, "user-1", s.ID), gorm.ErrRecordNotFound)
}

func TestIsActiveRequiresSession(t *testing.T) {
	db := testdb.Open(t)
	_, err := IsActive(db, "user-1", "")
	assert.ErrorIs(t, err, ErrSessionRequired)
}
