package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddPointsUpsertsAndAccumulates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvidePoints()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AddPoints(ctx, db, 1, 10, now))
	require.NoError(t, repo.AddPoints(ctx, db, 1, 5, now))

	total, err := repo.TotalPoints(ctx, db, 1)
	require.NoError(t, err)
	require.Equal(t, int64(15), total)
}

func TestSubtractPointsFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvidePoints()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AddPoints(ctx, db, 1, 5, now))
	require.NoError(t, repo.SubtractPointsFloorZero(ctx, db, 1, 3, now))

	total, err := repo.TotalPoints(ctx, db, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	// Deducting more than the balance clamps at zero, never negative.
	require.NoError(t, repo.SubtractPointsFloorZero(ctx, db, 1, 10, now))
	total, err = repo.TotalPoints(ctx, db, 1)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestTotalPointsForUnknownUserIsZero(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvidePoints()

	total, err := repo.TotalPoints(ctx, db, 42)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestPageTotalsOrdersByUserID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvidePoints()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AddPoints(ctx, db, 3, 30, now))
	require.NoError(t, repo.AddPoints(ctx, db, 1, 10, now))
	require.NoError(t, repo.AddPoints(ctx, db, 2, 20, now))

	page, err := repo.PageTotals(ctx, db, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(1), page[0].UserID)
	require.Equal(t, int64(2), page[1].UserID)

	page, err = repo.PageTotals(ctx, db, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, int64(3), page[0].UserID)
	require.Equal(t, int64(30), page[0].TotalPoints)
}

func TestTotalsForUsersFiltersToRequested(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := ProvidePoints()
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AddPoints(ctx, db, 1, 10, now))
	require.NoError(t, repo.AddPoints(ctx, db, 2, 20, now))

	rows, err := repo.TotalsForUsers(ctx, db, []int64{2, 99})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].UserID)
	require.Equal(t, int64(20), rows[0].TotalPoints)
}
