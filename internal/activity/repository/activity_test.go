package repository

import (
	"context"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/stretchr/testify/require"
)

func TestActivityInsertDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideActivity()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	inserted, err := repo.Insert(ctx, db, &domain.UserActivity{
		ID: newTestNode(t).Generate(), UserID: 1, Kind: domain.KindCreatePost,
		TargetID: 100, PointsEarned: 10, CreatedAt: now,
	})
	require.NoError(t, err)
	require.True(t, inserted)

	// Same (user, kind, target): insert is silently skipped.
	inserted, err = repo.Insert(ctx, db, &domain.UserActivity{
		ID: newTestNode(t).Generate(), UserID: 1, Kind: domain.KindCreatePost,
		TargetID: 100, PointsEarned: 10, CreatedAt: now,
	})
	require.NoError(t, err)
	require.False(t, inserted)

	count, err := repo.CountByUser(ctx, db, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestActivityDeleteReturnsRemovedRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideActivity()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, db, &domain.UserActivity{
		ID: newTestNode(t).Generate(), UserID: 1, Kind: domain.KindCreatePost,
		TargetID: 100, PointsEarned: 10, CreatedAt: now,
	})
	require.NoError(t, err)

	removed, err := repo.Delete(ctx, db, 1, domain.KindCreatePost, 100)
	require.NoError(t, err)
	require.NotNil(t, removed)
	require.Equal(t, int64(10), removed.PointsEarned)

	// Already gone: delete reports nothing removed.
	removed, err = repo.Delete(ctx, db, 1, domain.KindCreatePost, 100)
	require.NoError(t, err)
	require.Nil(t, removed)
}

func TestRecentlyActiveUserIDs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideActivity()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, db, &domain.UserActivity{
		ID: newTestNode(t).Generate(), UserID: 1, Kind: domain.KindCreatePost,
		TargetID: 1, PointsEarned: 10, CreatedAt: now.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, db, &domain.UserActivity{
		ID: newTestNode(t).Generate(), UserID: 2, Kind: domain.KindCreatePost,
		TargetID: 2, PointsEarned: 10, CreatedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	userIDs, err := repo.RecentlyActiveUserIDs(ctx, db, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, userIDs)
}

func TestPageActivityCountsPagesByUserID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvideActivity()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	for userID := int64(1); userID <= 3; userID++ {
		for target := int64(0); target < userID; target++ {
			_, err := repo.Insert(ctx, db, &domain.UserActivity{
				ID: newTestNode(t).Generate(), UserID: userID, Kind: domain.KindCreatePost,
				TargetID: target, PointsEarned: 10, CreatedAt: now,
			})
			require.NoError(t, err)
		}
	}

	page, err := repo.PageActivityCounts(ctx, db, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, domain.UserActivityCount{UserID: 1, Count: 1}, page[0])
	require.Equal(t, domain.UserActivityCount{UserID: 2, Count: 2}, page[1])

	page, err = repo.PageActivityCounts(ctx, db, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, domain.UserActivityCount{UserID: 3, Count: 3}, page[0])
}
