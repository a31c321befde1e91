package repository

import (
	"context"
	"time"

	"github.com/gatherly/gatherly/internal/activity/domain"
	"gorm.io/gorm"
)

type pointsRepo struct{}

func ProvidePoints() domain.PointsRepository {
	return &pointsRepo{}
}

func (r *pointsRepo) AddPoints(ctx context.Context, tx *gorm.DB, userID, delta int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO user_points (user_id, total_points, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE
		 SET total_points = user_points.total_points + excluded.total_points,
		     updated_at = excluded.updated_at`,
		userID,
		delta,
		now,
		now,
	).Error
}

func (r *pointsRepo) SubtractPointsFloorZero(ctx context.Context, tx *gorm.DB, userID, delta int64, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE user_points
		 SET total_points = CASE WHEN total_points >= ? THEN total_points - ? ELSE 0 END,
		     updated_at = ?
		 WHERE user_id = ?`,
		delta,
		delta,
		now,
		userID,
	).Error
}

func (r *pointsRepo) TotalPoints(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_points), 0) FROM user_points WHERE user_id = ?`,
		userID,
	).Scan(&total).Error
	return total, err
}

func (r *pointsRepo) PageTotals(ctx context.Context, tx *gorm.DB, limit, offset int) ([]domain.UserPoints, error) {
	var rows []domain.UserPoints
	err := tx.WithContext(ctx).Raw(
		`SELECT user_id, total_points, created_at, updated_at
		 FROM user_points
		 ORDER BY user_id
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *pointsRepo) TotalsForUsers(ctx context.Context, tx *gorm.DB, userIDs []int64) ([]domain.UserPoints, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []domain.UserPoints
	err := tx.WithContext(ctx).Raw(
		`SELECT user_id, total_points, created_at, updated_at
		 FROM user_points
		 WHERE user_id IN ?`,
		userIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
