// Package quota meters AI requests per user per day.
package quota

import (
	"context"
	"time"

	"github.com/ideaflow/server/internal/pkg/metrics"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Usage is one user's counters for Date (YYYY-MM-DD).
type Usage struct {
	Date          string `json:"date"`
	RequestsToday int    `json:"requests_today"`
	TokensUsed    int64  `json:"tokens_used"`
}

// Governor enforces the daily request limit. Store errors fail open: the
// request is allowed and the error is logged.
type Governor struct {
	store   Store
	limit   int
	loc     *time.Location
	now     func() time.Time
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewGovernor(store Store, limit int, timezone string, collector *metrics.Collector, logger *zap.Logger) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := time.Local
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		} else {
			logger.Warn("unknown timezone, using local time", zap.String("timezone", timezone), zap.Error(err))
		}
	}
	return &Governor{store: store, limit: limit, loc: loc, now: time.Now, metrics: collector, logger: logger}
}

// SetClock replaces the time source.
func (g *Governor) SetClock(now func() time.Time) { g.now = now }

func (g *Governor) Limit() int { return g.limit }

func (g *Governor) today() string { return g.now().In(g.loc).Format(dateLayout) }

// Allow reports whether the user still has requests left today.
func (g *Governor) Allow(ctx context.Context, userID string) bool {
	usage, err := g.store.Load(ctx, userID, g.today())
	if err != nil {
		g.logger.Warn("quota check failed, allowing request", zap.String("user_id", userID), zap.Error(err))
		g.metrics.ObserveQuota("fail_open")
		return true
	}
	if usage.RequestsToday >= g.limit {
		g.metrics.ObserveQuota("deny")
		return false
	}
	g.metrics.ObserveQuota("allow")
	return true
}

// Record counts one request and its tokens against today.
func (g *Governor) Record(ctx context.Context, userID string, tokens int) {
	if err := g.store.Add(ctx, userID, g.today(), 1, int64(tokens)); err != nil {
		g.logger.Warn("quota record failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (g *Governor) Usage(ctx context.Context, userID string) (Usage, error) {
	return g.store.Load(ctx, userID, g.today())
}

// Remaining is the number of requests left today; a store error reports the
// full limit.
func (g *Governor) Remaining(ctx context.Context, userID string) int {
	usage, err := g.Usage(ctx, userID)
	if err != nil {
		return g.limit
	}
	if left := g.limit - usage.RequestsToday; left > 0 {
		return left
	}
	return 0
}
