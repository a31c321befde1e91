package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func insertFailedEvent(t *testing.T, db *gorm.DB, event domain.FailedEvent) domain.FailedEvent {
	t.Helper()
	repo := ProvideFailed()
	if event.ID == 0 {
		event.ID = newTestNode(t).Generate()
	}
	if event.SourceEventID == 0 {
		event.SourceEventID = newTestNode(t).Generate()
	}
	if event.Status == "" {
		event.Status = domain.FailedEventStatusPending
	}
	require.NoError(t, repo.Insert(context.Background(), db, &event))
	return event
}

func findFailedEvent(t *testing.T, db *gorm.DB, id interface{ String() string }) domain.FailedEvent {
	t.Helper()
	var event domain.FailedEvent
	require.NoError(t, db.Raw(
		`SELECT id, source_event_id, user_id, kind, operation, target_id,
		        status, retry_count, error_message, failed_at, processed_at, created_at, updated_at
		 FROM failed_activity_events WHERE id = ?`,
		id.String(),
	).Scan(&event).Error)
	return event
}

func TestFailedClaimPendingOrdersByFailureTime(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideFailed()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	newer := insertFailedEvent(t, db, domain.FailedEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, FailedAt: base.Add(time.Minute), CreatedAt: base, UpdatedAt: base,
	})
	older := insertFailedEvent(t, db, domain.FailedEvent{
		UserID: 2, Kind: domain.KindLikePost, Operation: domain.OperationRecord,
		TargetID: 2, FailedAt: base, CreatedAt: base, UpdatedAt: base,
	})
	insertFailedEvent(t, db, domain.FailedEvent{
		UserID: 3, Kind: domain.KindLikePost, Operation: domain.OperationRecord,
		TargetID: 3, RetryCount: 5, FailedAt: base, CreatedAt: base, UpdatedAt: base,
	})

	events, err := repo.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, older.ID, events[0].ID)
	require.Equal(t, newer.ID, events[1].ID)
}

func TestFailedEventTransitions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideFailed()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	event := insertFailedEvent(t, db, domain.FailedEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, FailedAt: now, CreatedAt: now, UpdatedAt: now,
	})

	claimed, err := repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.False(t, claimed)

	require.NoError(t, repo.MarkRetry(ctx, db, event.ID, "still failing", now))
	stored := findFailedEvent(t, db, event.ID)
	require.Equal(t, domain.FailedEventStatusPending, stored.Status)
	require.Equal(t, 1, stored.RetryCount)

	claimed, err = repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.MarkResolved(ctx, db, event.ID, now))
	stored = findFailedEvent(t, db, event.ID)
	require.Equal(t, domain.FailedEventStatusResolved, stored.Status)
	require.NotNil(t, stored.ProcessedAt)
}

func TestFailedMarkAbandonedIsTerminal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideFailed()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	event := insertFailedEvent(t, db, domain.FailedEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, RetryCount: 4, FailedAt: now, CreatedAt: now, UpdatedAt: now,
	})

	claimed, err := repo.MarkProcessing(ctx, db, event.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.MarkAbandoned(ctx, db, event.ID, "permanent failure", now))

	stored := findFailedEvent(t, db, event.ID)
	require.Equal(t, domain.FailedEventStatusAbandoned, stored.Status)
	require.Equal(t, 5, stored.RetryCount)

	events, err := repo.ClaimPending(ctx, db, 5, 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestFailedInsertTruncatesLongCause(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	longCause := strings.Repeat("x", 5000)
	event := insertFailedEvent(t, db, domain.FailedEvent{
		UserID: 1, Kind: domain.KindCreatePost, Operation: domain.OperationRecord,
		TargetID: 1, ErrorMessage: domain.TruncateError(longCause),
		FailedAt: now, CreatedAt: now, UpdatedAt: now,
	})

	stored := findFailedEvent(t, db, event.ID)
	require.Len(t, stored.ErrorMessage, 1000)
}
