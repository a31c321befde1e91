package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUnknownKind      = errors.New("unknown_activity_kind")
	ErrUnknownOperation = errors.New("unknown_operation")
	ErrInvalidConfig    = errors.New("invalid_config")
	ErrEventNotFound    = errors.New("event_not_found")
)

// Writer appends an outbox event inside the caller's transaction so the
// event commits or rolls back with the domain write.
type Writer interface {
	Write(ctx context.Context, tx *gorm.DB, userID int64, kind ActivityKind, op Operation, targetID int64) (*OutboxEvent, error)
}

// Processor applies one activity operation to the relational aggregate and
// fans out best-effort side effects.
type Processor interface {
	Process(ctx context.Context, userID int64, kind ActivityKind, op Operation, targetID int64) error
}

// RelayService drains the outbox.
type RelayService interface {
	ProcessOne(ctx context.Context, id snowflake.ID) error
	// RelayBatch claims and processes one batch; returns done and failed
	// attempt counts.
	RelayBatch(ctx context.Context) (done, failed int, err error)
	RecoverStuck(ctx context.Context) (int64, error)
	Cleanup(ctx context.Context) (int64, error)
}

// FailedEventService owns the quarantine table and its retry loop.
type FailedEventService interface {
	Quarantine(ctx context.Context, db *gorm.DB, event *OutboxEvent, cause string) error
	RetryBatch(ctx context.Context) (resolved, failed int, err error)
	RecoverStuck(ctx context.Context) (int64, error)
	LogStatistics(ctx context.Context)
}

// BadgeAwarder is the badge hook invoked after a RECORD is applied.
type BadgeAwarder interface {
	EvaluateAndAward(ctx context.Context, userID int64) ([]string, error)
}

// RankingUpdater pushes a single user's scores to the ranked-set store.
type RankingUpdater interface {
	SyncUser(ctx context.Context, userID int64) error
}
