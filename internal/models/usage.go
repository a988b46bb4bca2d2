package models

import "time"

// UserUsage holds a user's AI counters for LastResetDate (YYYY-MM-DD).
type UserUsage struct {
	UserID        string    `json:"user_id"         gorm:"type:char(36);primaryKey"`
	RequestsToday int       `json:"requests_today"  gorm:"not null;default:0"`
	TokensUsed    int64     `json:"tokens_used"     gorm:"not null;default:0"`
	LastResetDate string    `json:"last_reset_date" gorm:"size:10;not null"`
	UpdatedAt     time.Time `json:"modified"`
}

func (UserUsage) TableName() string { return "user_usage" }
