package app

import (
	"context"
	"time"

	"github.com/ideaflow/server/internal/models"
	pkgcron "github.com/ideaflow/server/internal/pkg/cron"
	"gorm.io/gorm"
)

const (
	sessionRetention = 7 * 24 * time.Hour
	usageRetention   = 30 * 24 * time.Hour
)

func registerCronJobs(sched *pkgcron.Scheduler, db *gorm.DB) {
	sched.Register(pkgcron.Job{
		Name:        "purge_sessions",
		Description: "删除过期或已注销一周以上的会话",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			_, err := purgeSessions(ctx, db, time.Now())
			return err
		},
	})
	sched.Register(pkgcron.Job{
		Name:        "purge_usage",
		Description: "删除 30 天未使用的额度记录",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			_, err := purgeUsage(ctx, db, time.Now())
			return err
		},
	})
}

func purgeSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	cutoff := now.Add(-sessionRetention)
	res := db.WithContext(ctx).Unscoped().
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&models.UserSession{})
	return res.RowsAffected, res.Error
}

func purgeUsage(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	cutoff := now.Add(-usageRetention).Format("2006-01-02")
	res := db.WithContext(ctx).Where("last_reset_date < ?", cutoff).Delete(&models.UserUsage{})
	return res.RowsAffected, res.Error
}
