package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertOutboxEvent(t *testing.T, db *gorm.DB, event domain.OutboxEvent) domain.OutboxEvent {
	t.Helper()
	repo := ProvideOutbox()
	if event.ID == 0 {
		event.ID = newTestNode(t).Generate()
	}
	if event.IdempotencyKey == "" {
		event.IdempotencyKey = "key:" + event.ID.String()
	}
	if event.Status == "" {
		event.Status = domain.OutboxStatusPending
	}
	require.NoError(t, repo.Insert(context.Background(), db, &event))
	return event
}

func TestClaimPendingOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	newer := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute),
	})
	older := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 2, Kind: domain.KindLikePost, Operation: domain.OperationRecord,
		TargetID: 2, CreatedAt: base, UpdatedAt: base,
	})

	events, err := repo.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, older.ID, events[0].ID)
	require.Equal(t, newer.ID, events[1].ID)
}

func TestClaimPendingSkipsExhaustedAndNonPending(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	claimable := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: base, UpdatedAt: base,
	})
	insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 2, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 2, RetryCount: 5, CreatedAt: base, UpdatedAt: base,
	})
	insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 3, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 3, Status: domain.OutboxStatusDone, CreatedAt: base, UpdatedAt: base,
	})

	events, err := repo.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, claimable.ID, events[0].ID)
}

func TestMarkProcessingIsGuarded(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	event := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: now, UpdatedAt: now,
	})

	claimed, err := repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)

	// Second claim loses: the row is no longer PENDING.
	claimed, err = repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestMarkDoneClearsErrorAndSetsProcessedAt(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	event := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, ErrorMessage: "transient", CreatedAt: now, UpdatedAt: now,
	})

	claimed, err := repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.MarkDone(ctx, db, event.ID, now))

	stored, err := repo.FindByID(ctx, db, event.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, domain.OutboxStatusDone, stored.Status)
	require.Empty(t, stored.ErrorMessage)
	require.NotNil(t, stored.ProcessedAt)
}

func TestMarkRetryRequeuesWithIncrementedCount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	event := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: now, UpdatedAt: now,
	})

	claimed, err := repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.MarkRetry(ctx, db, event.ID, "db timeout", now))

	stored, err := repo.FindByID(ctx, db, event.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OutboxStatusPending, stored.Status)
	require.Equal(t, 1, stored.RetryCount)
	require.Equal(t, "db timeout", stored.ErrorMessage)

	events, err := repo.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestRevertStuckOnlyTouchesOldProcessingRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	stuck := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour),
	})
	fresh := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 2, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 2, CreatedAt: now, UpdatedAt: now,
	})

	claimed, err := repo.MarkProcessing(ctx, db, stuck.ID, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = repo.MarkProcessing(ctx, db, fresh.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)

	recovered, err := repo.RevertStuck(ctx, db, now.Add(-5*time.Minute), now)
	require.NoError(t, err)
	require.Equal(t, int64(1), recovered)

	stored, err := repo.FindByID(ctx, db, stuck.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OutboxStatusPending, stored.Status)

	stored, err = repo.FindByID(ctx, db, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OutboxStatusProcessing, stored.Status)
}

func TestDeleteDoneBeforeNeverTouchesOtherStatuses(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	old := now.Add(-8 * 24 * time.Hour)

	done := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: old, UpdatedAt: old,
	})
	claimed, err := repo.MarkProcessing(ctx, db, done.ID, old)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.MarkDone(ctx, db, done.ID, old))

	pending := insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 2, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 2, CreatedAt: old, UpdatedAt: old,
	})

	deleted, err := repo.DeleteDoneBefore(ctx, db, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	stored, err := repo.FindByID(ctx, db, done.ID)
	require.NoError(t, err)
	require.Nil(t, stored)

	stored, err = repo.FindByID(ctx, db, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestOutboxCountByStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideOutbox()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, CreatedAt: now, UpdatedAt: now,
	})
	insertOutboxEvent(t, db, domain.OutboxEvent{
		UserID: 2, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 2, Status: domain.OutboxStatusFailed, CreatedAt: now, UpdatedAt: now,
	})

	counts, err := repo.CountByStatus(ctx, db)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[domain.OutboxStatusPending])
	require.Equal(t, int64(1), counts[domain.OutboxStatusFailed])
}
