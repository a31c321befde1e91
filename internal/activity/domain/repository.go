package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// OutboxRepository persists and transitions outbox events.
type OutboxRepository interface {
	Insert(ctx context.Context, db *gorm.DB, event *OutboxEvent) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OutboxEvent, error)
	// ClaimPending returns PENDING events with retry budget left, oldest
	// first, locking claimed rows for the enclosing transaction.
	ClaimPending(ctx context.Context, db *gorm.DB, maxRetries, limit int) ([]OutboxEvent, error)
	// MarkProcessing transitions PENDING -> PROCESSING and reports whether
	// this caller won the transition.
	MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkDone(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	// MarkRetry returns the event to PENDING with an incremented retry count.
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error
	// RevertStuck returns PROCESSING rows older than cutoff to PENDING.
	RevertStuck(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
	// DeleteDoneBefore removes DONE rows processed before cutoff.
	DeleteDoneBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB) (map[OutboxStatus]int64, error)
}

// FailedEventRepository persists and transitions quarantined events.
type FailedEventRepository interface {
	Insert(ctx context.Context, db *gorm.DB, event *FailedEvent) error
	ClaimPending(ctx context.Context, db *gorm.DB, maxRetries, limit int) ([]FailedEvent, error)
	MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkResolved(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error
	MarkAbandoned(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error
	RevertStuck(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB) (map[FailedEventStatus]int64, error)
}

// UserActivityCount pairs a user with an aggregate count.
type UserActivityCount struct {
	UserID int64
	Count  int64
}

// ActivityRepository persists the dedup records.
type ActivityRepository interface {
	// Insert reports false when the (user, kind, target) row already exists.
	Insert(ctx context.Context, db *gorm.DB, activity *UserActivity) (bool, error)
	// Delete reports whether a matching row was removed.
	Delete(ctx context.Context, db *gorm.DB, userID int64, kind ActivityKind, targetID int64) (*UserActivity, error)
	CountByUser(ctx context.Context, db *gorm.DB, userID int64) (int64, error)
	CountByUserAndKind(ctx context.Context, db *gorm.DB, userID int64, kind ActivityKind) (int64, error)
	RecentlyActiveUserIDs(ctx context.Context, db *gorm.DB, since time.Time) ([]int64, error)
	// PageActivityCounts returns per-user total activity counts ordered by
	// user id, for full sync paging.
	PageActivityCounts(ctx context.Context, db *gorm.DB, limit, offset int) ([]UserActivityCount, error)
	CountsForUsers(ctx context.Context, db *gorm.DB, userIDs []int64) ([]UserActivityCount, error)
}

// PointsRepository maintains the per-user totals.
type PointsRepository interface {
	// AddPoints upserts the row and adds delta atomically.
	AddPoints(ctx context.Context, db *gorm.DB, userID, delta int64, now time.Time) error
	// SubtractPointsFloorZero decrements, clamping the total at zero.
	SubtractPointsFloorZero(ctx context.Context, db *gorm.DB, userID, delta int64, now time.Time) error
	TotalPoints(ctx context.Context, db *gorm.DB, userID int64) (int64, error)
	// PageTotals returns rows ordered by user id for full sync paging.
	PageTotals(ctx context.Context, db *gorm.DB, limit, offset int) ([]UserPoints, error)
	TotalsForUsers(ctx context.Context, db *gorm.DB, userIDs []int64) ([]UserPoints, error)
}
