package app

import (
	"context"
	"testing"
	"time"

	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/pkg/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"app.example.com", "*.ideaflow.dev", "localhost:*"}

	assert.True(t, originAllowed(patterns, "https://app.example.com"))
	assert.True(t, originAllowed(patterns, "https://beta.ideaflow.dev"))
	assert.True(t, originAllowed(patterns, "http://localhost:5173"))
	assert.False(t, originAllowed(patterns, "https://evil.example.com"))
	assert.False(t, originAllowed(patterns, "https://ideaflow.dev.evil.io"))
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("+08:00")
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*3600, offset)

	loc, err = parseTimezoneLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = parseTimezoneLocation("Mars/Base")
	assert.Error(t, err)
}

func TestPurgeJobs(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	old := now.Add(-10 * 24 * time.Hour)

	require.NoError(t, db.Create(&models.UserSession{UserID: "u1", ExpiresAt: old}).Error)
	require.NoError(t, db.Create(&models.UserSession{UserID: "u1", ExpiresAt: now.Add(time.Hour)}).Error)
	require.NoError(t, db.Create(&models.UserSession{UserID: "u1", ExpiresAt: now.Add(time.Hour), RevokedAt: &old}).Error)

	n, err := purgeSessions(ctx, db, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, db.Create(&models.UserUsage{UserID: "u1", LastResetDate: "2024-03-01"}).Error)
	require.NoError(t, db.Create(&models.UserUsage{UserID: "u2", LastResetDate: "2024-05-19"}).Error)
	n, err = purgeUsage(ctx, db, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
