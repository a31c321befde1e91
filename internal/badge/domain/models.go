package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type RuleKind string

const (
	// RuleActivityCount awards when the user reaches a number of recorded
	// activities, optionally filtered to one kind.
	RuleActivityCount RuleKind = "ACTIVITY_COUNT"
	// RuleTotalPoints awards when the running points total crosses the
	// threshold.
	RuleTotalPoints RuleKind = "TOTAL_POINTS"
)

type Badge struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Code         string       `gorm:"size:64;uniqueIndex;not null"`
	Name         string       `gorm:"size:120;not null"`
	Description  string       `gorm:"size:500"`
	RuleKind     RuleKind     `gorm:"size:30;not null"`
	Threshold    int64        `gorm:"not null"`
	ActivityKind string       `gorm:"size:40"`
	Enabled      bool         `gorm:"not null;default:true"`
	CreatedAt    time.Time    `gorm:"autoCreateTime"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime"`
}

func (Badge) TableName() string { return "badges" }

type UserBadge struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    int64        `gorm:"not null;uniqueIndex:idx_user_badges_dedup"`
	BadgeID   snowflake.ID `gorm:"not null;uniqueIndex:idx_user_badges_dedup"`
	AwardedAt time.Time    `gorm:"not null"`
}

func (UserBadge) TableName() string { return "user_badges" }

type Repository interface {
	EnabledBadges(ctx context.Context, db *gorm.DB) ([]Badge, error)
	OwnedBadgeIDs(ctx context.Context, db *gorm.DB, userID int64) ([]snowflake.ID, error)
	// Award reports false when the user already owns the badge.
	Award(ctx context.Context, db *gorm.DB, userBadge *UserBadge) (bool, error)
	ListForUser(ctx context.Context, db *gorm.DB, userID int64) ([]Badge, error)
}

type Service interface {
	// EvaluateAndAward grants every enabled badge whose rule the user now
	// satisfies and returns the names of newly granted badges.
	EvaluateAndAward(ctx context.Context, userID int64) ([]string, error)
	ListForUser(ctx context.Context, userID int64) ([]Badge, error)
}
