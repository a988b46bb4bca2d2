package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ideaflow/server/internal/models"
	redispkg "github.com/ideaflow/server/internal/pkg/redis"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists per-user daily counters. Counters for any date other than
// the one asked for read as zero.
type Store interface {
	Load(ctx context.Context, userID, date string) (Usage, error)
	Add(ctx context.Context, userID, date string, requests int, tokens int64) error
}

// DBStore keeps one user_usage row per user and resets it when the date
// changes.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore { return &DBStore{db: db} }

func (s *DBStore) Load(ctx context.Context, userID, date string) (Usage, error) {
	var row models.UserUsage
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Usage{Date: date}, nil
	}
	if err != nil {
		return Usage{}, err
	}
	if row.LastResetDate != date {
		return Usage{Date: date}, nil
	}
	return Usage{Date: date, RequestsToday: row.RequestsToday, TokensUsed: row.TokensUsed}, nil
}

// Add upserts the row in one statement. The date column is assigned last so
// the CASE expressions still see the stored date on MySQL.
func (s *DBStore) Add(ctx context.Context, userID, date string, requests int, tokens int64) error {
	row := models.UserUsage{
		UserID:        userID,
		RequestsToday: requests,
		TokensUsed:    tokens,
		LastResetDate: date,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: []clause.Assignment{
			{
				Column: clause.Column{Name: "requests_today"},
				Value:  gorm.Expr("CASE WHEN last_reset_date = ? THEN requests_today + ? ELSE ? END", date, requests, requests),
			},
			{
				Column: clause.Column{Name: "tokens_used"},
				Value:  gorm.Expr("CASE WHEN last_reset_date = ? THEN tokens_used + ? ELSE ? END", date, tokens, tokens),
			},
			{Column: clause.Column{Name: "last_reset_date"}, Value: date},
			{Column: clause.Column{Name: "updated_at"}, Value: time.Now()},
		},
	}).Create(&row).Error
}

const (
	redisKeyPrefix = "ideaflow:quota:"
	redisKeyTTL    = 48 * time.Hour
)

// RedisStore keeps two counters per user per day; stale days expire.
type RedisStore struct {
	rc *redispkg.Client
}

func NewRedisStore(rc *redispkg.Client) *RedisStore { return &RedisStore{rc: rc} }

func redisKeys(userID, date string) (requests, tokens string) {
	base := redisKeyPrefix + userID + ":" + date
	return base + ":requests", base + ":tokens"
}

func (s *RedisStore) Load(ctx context.Context, userID, date string) (Usage, error) {
	reqKey, tokKey := redisKeys(userID, date)
	requests, err := s.counter(ctx, reqKey)
	if err != nil {
		return Usage{}, fmt.Errorf("load quota requests: %w", err)
	}
	tokens, err := s.counter(ctx, tokKey)
	if err != nil {
		return Usage{}, fmt.Errorf("load quota tokens: %w", err)
	}
	return Usage{Date: date, RequestsToday: int(requests), TokensUsed: tokens}, nil
}

// counter reads an INCR counter; a missing key is zero.
func (s *RedisStore) counter(ctx context.Context, key string) (int64, error) {
	raw, err := s.rc.Get(ctx, key)
	if err != nil || raw == "" {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *RedisStore) Add(ctx context.Context, userID, date string, requests int, tokens int64) error {
	reqKey, tokKey := redisKeys(userID, date)
	if _, err := s.rc.IncrWithTTL(ctx, reqKey, int64(requests), redisKeyTTL); err != nil {
		return err
	}
	if tokens > 0 {
		if _, err := s.rc.IncrWithTTL(ctx, tokKey, tokens, redisKeyTTL); err != nil {
			return err
		}
	}
	return nil
}
