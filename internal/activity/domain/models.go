package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// errorMessageLimit bounds stored failure causes so an unbounded driver error
// cannot blow up the row.
const errorMessageLimit = 1000

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusDone       OutboxStatus = "DONE"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// OutboxEvent is the durable record appended in the same transaction as the
// domain write it describes.
type OutboxEvent struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	IdempotencyKey string       `gorm:"size:128;uniqueIndex;not null"`
	UserID         int64        `gorm:"not null;index"`
	Kind           ActivityKind `gorm:"size:40;not null"`
	Operation      Operation    `gorm:"size:10;not null"`
	TargetID       int64        `gorm:"not null"`
	Status         OutboxStatus `gorm:"size:20;not null;index:idx_activity_outbox_status_created"`
	RetryCount     int          `gorm:"not null;default:0"`
	ErrorMessage   string       `gorm:"size:1000"`
	ProcessedAt    *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_activity_outbox_status_created"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (OutboxEvent) TableName() string { return "activity_outbox" }

type FailedEventStatus string

const (
	FailedEventStatusPending    FailedEventStatus = "PENDING"
	FailedEventStatusProcessing FailedEventStatus = "PROCESSING"
	FailedEventStatusResolved   FailedEventStatus = "RESOLVED"
	FailedEventStatusAbandoned  FailedEventStatus = "ABANDONED"
)

// FailedEvent is the quarantine copy of an outbox event whose relay budget
// was exhausted. It carries its own, slower retry budget.
type FailedEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	SourceEventID snowflake.ID      `gorm:"not null;index"`
	UserID        int64             `gorm:"not null;index"`
	Kind          ActivityKind      `gorm:"size:40;not null"`
	Operation     Operation         `gorm:"size:10;not null"`
	TargetID      int64             `gorm:"not null"`
	Status        FailedEventStatus `gorm:"size:20;not null;index"`
	RetryCount    int               `gorm:"not null;default:0"`
	ErrorMessage  string            `gorm:"size:1000"`
	FailedAt      time.Time         `gorm:"not null"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (FailedEvent) TableName() string { return "failed_activity_events" }

// UserActivity is the dedup record: at most one row per (user, kind, target).
type UserActivity struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	UserID       int64        `gorm:"not null;uniqueIndex:idx_user_activities_dedup;index:idx_user_activities_user_created"`
	Kind         ActivityKind `gorm:"size:40;not null;uniqueIndex:idx_user_activities_dedup"`
	TargetID     int64        `gorm:"not null;uniqueIndex:idx_user_activities_dedup"`
	PointsEarned int64        `gorm:"not null"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index:idx_user_activities_user_created"`
}

func (UserActivity) TableName() string { return "user_activities" }

// UserPoints is the per-user running total. TotalPoints never goes below zero.
type UserPoints struct {
	UserID      int64     `gorm:"primaryKey"`
	TotalPoints int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (UserPoints) TableName() string { return "user_points" }

// TruncateError bounds an error message for storage.
func TruncateError(message string) string {
	if len(message) <= errorMessageLimit {
		return message
	}
	return message[:errorMessageLimit]
}
