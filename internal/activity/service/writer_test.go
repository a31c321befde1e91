package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gatherly/gatherly/internal/activity/domain"
	activityrepo "github.com/gatherly/gatherly/internal/activity/repository"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteCommitsWithEnclosingTransaction(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	outbox := activityrepo.ProvideOutbox()
	writer := NewWriter(outbox, testNode, clock.NewFakeClock(testTime()))

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := writer.Write(ctx, tx, 1, domain.KindCreatePost, domain.OperationRecord, 100)
		return err
	})
	require.NoError(t, err)

	events, err := outbox.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.OutboxStatusPending, events[0].Status)
	require.NotEmpty(t, events[0].IdempotencyKey)
}

func TestWriteRollsBackWithEnclosingTransaction(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	outbox := activityrepo.ProvideOutbox()
	writer := NewWriter(outbox, testNode, clock.NewFakeClock(testTime()))

	rollback := errors.New("domain write failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := writer.Write(ctx, tx, 1, domain.KindCreatePost, domain.OperationRecord, 100); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	// The event must vanish with the aborted domain write.
	events, err := outbox.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestWriteRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	writer := NewWriter(activityrepo.ProvideOutbox(), testNode, clock.NewFakeClock(testTime()))

	_, err := writer.Write(ctx, db, 1, domain.ActivityKind("DANCE"), domain.OperationRecord, 1)
	require.ErrorIs(t, err, domain.ErrUnknownKind)

	_, err = writer.Write(ctx, db, 1, domain.KindCreatePost, domain.Operation("UPSERT"), 1)
	require.ErrorIs(t, err, domain.ErrUnknownOperation)
}
