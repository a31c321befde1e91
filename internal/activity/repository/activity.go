package repository

import (
	"context"
	"time"

	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/pkg/db"
	"gorm.io/gorm"
)

type activityRepo struct{}

func ProvideActivity() domain.ActivityRepository {
	return &activityRepo{}
}

func (r *activityRepo) Insert(ctx context.Context, tx *gorm.DB, activity *domain.UserActivity) (bool, error) {
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO user_activities (id, user_id, kind, target_id, points_earned, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.UserID,
		activity.Kind,
		activity.TargetID,
		activity.PointsEarned,
		activity.CreatedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *activityRepo) Delete(ctx context.Context, tx *gorm.DB, userID int64, kind domain.ActivityKind, targetID int64) (*domain.UserActivity, error) {
	var activity domain.UserActivity
	err := tx.WithContext(ctx).Raw(
		`SELECT id, user_id, kind, target_id, points_earned, created_at
		 FROM user_activities
		 WHERE user_id = ? AND kind = ? AND target_id = ?`,
		userID,
		kind,
		targetID,
	).Scan(&activity).Error
	if err != nil {
		return nil, err
	}
	if activity.ID == 0 {
		return nil, nil
	}

	result := tx.WithContext(ctx).Exec(
		`DELETE FROM user_activities WHERE id = ?`,
		activity.ID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &activity, nil
}

func (r *activityRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM user_activities WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	return count, err
}

func (r *activityRepo) CountByUserAndKind(ctx context.Context, tx *gorm.DB, userID int64, kind domain.ActivityKind) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM user_activities WHERE user_id = ? AND kind = ?`,
		userID,
		kind,
	).Scan(&count).Error
	return count, err
}

func (r *activityRepo) RecentlyActiveUserIDs(ctx context.Context, tx *gorm.DB, since time.Time) ([]int64, error) {
	var userIDs []int64
	err := tx.WithContext(ctx).Raw(
		`SELECT DISTINCT user_id FROM user_activities
		 WHERE created_at >= ?
		 ORDER BY user_id`,
		since,
	).Scan(&userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (r *activityRepo) PageActivityCounts(ctx context.Context, tx *gorm.DB, limit, offset int) ([]domain.UserActivityCount, error) {
	var rows []domain.UserActivityCount
	err := tx.WithContext(ctx).Raw(
		`SELECT user_id, COUNT(*) AS count
		 FROM user_activities
		 GROUP BY user_id
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

func (r *activityRepo) CountsForUsers(ctx context.Context, tx *gorm.DB, userIDs []int64) ([]domain.UserActivityCount, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []domain.UserActivityCount
	err := tx.WithContext(ctx).Raw(
		`SELECT user_id, COUNT(*) AS count
		 FROM user_activities
		 WHERE user_id IN ?
		 GROUP BY user_id`,
		userIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
