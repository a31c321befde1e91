package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type writer struct {
	outbox domain.OutboxRepository
	genID  *snowflake.Node
	clock  clock.Clock
}

func NewWriter(outbox domain.OutboxRepository, genID *snowflake.Node, clk clock.Clock) domain.Writer {
	return &writer{
		outbox: outbox,
		genID:  genID,
		clock:  clk,
	}
}

// Write appends the event inside the caller's transaction: the event commits
// with the domain write or not at all.
func (w *writer) Write(ctx context.Context, tx *gorm.DB, userID int64, kind domain.ActivityKind, op domain.Operation, targetID int64) (*domain.OutboxEvent, error) {
	if !kind.Valid() {
		return nil, domain.ErrUnknownKind
	}
	if !op.Valid() {
		return nil, domain.ErrUnknownOperation
	}

	now := w.clock.Now()
	event := &domain.OutboxEvent{
		ID:             w.genID.Generate(),
		IdempotencyKey: idempotencyKey(userID, kind, op, targetID),
		UserID:         userID,
		Kind:           kind,
		Operation:      op,
		TargetID:       targetID,
		Status:         domain.OutboxStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := w.outbox.Insert(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("append outbox event: %w", err)
	}
	return event, nil
}

func idempotencyKey(userID int64, kind domain.ActivityKind, op domain.Operation, targetID int64) string {
	return fmt.Sprintf("%s:%d:%s:%d:%s", op, userID, kind, targetID, uuid.NewString()[:8])
}
