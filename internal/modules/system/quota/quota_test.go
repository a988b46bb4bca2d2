package quota

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/models"
	"github.com/ideaflow/server/internal/pkg/metrics"
	redispkg "github.com/ideaflow/server/internal/pkg/redis"
	"github.com/ideaflow/server/internal/pkg/testdb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClock() *clock { return &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)} }

func stores(t *testing.T) map[string]Store {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]Store{
		"database": NewDBStore(testdb.Open(t)),
		"redis":    NewRedisStore(redispkg.Wrap(rdb)),
	}
}

func TestGovernorLimitAndRollover(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := newClock()
			gov := NewGovernor(store, 3, "UTC", nil, nil)
			gov.SetClock(clk.now)

			for i := 0; i < 3; i++ {
				require.True(t, gov.Allow(ctx, "u1"), "request %d", i)
				gov.Record(ctx, "u1", 10)
			}
			assert.False(t, gov.Allow(ctx, "u1"))
			assert.Zero(t, gov.Remaining(ctx, "u1"))
			assert.True(t, gov.Allow(ctx, "u2"), "limits are per user")

			usage, err := gov.Usage(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, Usage{Date: "2024-05-01", RequestsToday: 3, TokensUsed: 30}, usage)

			clk.t = clk.t.Add(24 * time.Hour)
			assert.True(t, gov.Allow(ctx, "u1"))
			assert.Equal(t, 3, gov.Remaining(ctx, "u1"))

			gov.Record(ctx, "u1", 5)
			usage, err = gov.Usage(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, Usage{Date: "2024-05-02", RequestsToday: 1, TokensUsed: 5}, usage)
		})
	}
}

func TestDBStoreResetsStoredRow(t *testing.T) {
	db := testdb.Open(t)
	store := NewDBStore(db)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "u1", "2024-05-01", 1, 100))
	require.NoError(t, store.Add(ctx, "u1", "2024-05-01", 1, 50))
	require.NoError(t, store.Add(ctx, "u1", "2024-05-02", 1, 7))

	var row models.UserUsage
	require.NoError(t, db.First(&row, "user_id = ?", "u1").Error)
	assert.Equal(t, "2024-05-02", row.LastResetDate)
	assert.Equal(t, 1, row.RequestsToday)
	assert.EqualValues(t, 7, row.TokensUsed)
}

func TestRedisStoreKeysExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(redispkg.Wrap(rdb))

	require.NoError(t, store.Add(context.Background(), "u1", "2024-05-01", 1, 12))
	reqKey, tokKey := redisKeys("u1", "2024-05-01")
	assert.Equal(t, redisKeyTTL, mr.TTL(reqKey))
	assert.Equal(t, redisKeyTTL, mr.TTL(tokKey))

	usage, err := store.Load(context.Background(), "u1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, Usage{Date: "2024-05-01", RequestsToday: 1, TokensUsed: 12}, usage)

	mr.FastForward(redisKeyTTL + time.Second)
	usage, err = store.Load(context.Background(), "u1", "2024-05-01")
	require.NoError(t, err)
	assert.Zero(t, usage.RequestsToday)
	assert.Zero(t, usage.TokensUsed)
}

func TestRedisStoreLoadDoesNotWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := NewRedisStore(redispkg.Wrap(rdb))

	usage, err := store.Load(context.Background(), "u2", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, Usage{Date: "2024-05-01"}, usage)
	reqKey, tokKey := redisKeys("u2", "2024-05-01")
	assert.False(t, mr.Exists(reqKey))
	assert.False(t, mr.Exists(tokKey))
}

type brokenStore struct{}

func (brokenStore) Load(context.Context, string, string) (Usage, error) {
	return Usage{}, errors.New("db down")
}

func (brokenStore) Add(context.Context, string, string, int, int64) error {
	return errors.New("db down")
}

func TestGovernorFailsOpen(t *testing.T) {
	collector := metrics.NewCollector()
	gov := NewGovernor(brokenStore{}, 1, "", collector, nil)
	ctx := context.Background()

	assert.True(t, gov.Allow(ctx, "u1"))
	gov.Record(ctx, "u1", 10)
	assert.True(t, gov.Allow(ctx, "u1"))
	assert.Equal(t, 1, gov.Remaining(ctx, "u1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.QuotaDecisions.WithLabelValues("fail_open")))
}

func TestQuotaEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gov := NewGovernor(NewDBStore(testdb.Open(t)), 50, "UTC", nil, nil)
	clk := newClock()
	gov.SetClock(clk.now)
	gov.Record(context.Background(), "u1", 120)

	r := gin.New()
	NewHandler(gov).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, "u1")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 50, body["limit"])
	assert.EqualValues(t, 49, body["remaining"])
	assert.EqualValues(t, 1, body["requests_today"])
	assert.EqualValues(t, 120, body["tokens_used"])
	assert.Equal(t, "2024-05-01", body["date"])
}
