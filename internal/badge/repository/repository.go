package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/badge/domain"
	"github.com/gatherly/gatherly/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnabledBadges(ctx context.Context, tx *gorm.DB) ([]domain.Badge, error) {
	var badges []domain.Badge
	err := tx.WithContext(ctx).Raw(
		`SELECT id, code, name, description, rule_kind, threshold, activity_kind, enabled, created_at, updated_at
		 FROM badges
		 WHERE enabled = ?
		 ORDER BY id`,
		true,
	).Scan(&badges).Error
	if err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *repo) OwnedBadgeIDs(ctx context.Context, tx *gorm.DB, userID int64) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := tx.WithContext(ctx).Raw(
		`SELECT badge_id FROM user_badges WHERE user_id = ?`,
		userID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) Award(ctx context.Context, tx *gorm.DB, userBadge *domain.UserBadge) (bool, error) {
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO user_badges (id, user_id, badge_id, awarded_at)
		 VALUES (?, ?, ?, ?)`,
		userBadge.ID,
		userBadge.UserID,
		userBadge.BadgeID,
		userBadge.AwardedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) ListForUser(ctx context.Context, tx *gorm.DB, userID int64) ([]domain.Badge, error) {
	var badges []domain.Badge
	err := tx.WithContext(ctx).Raw(
		`SELECT b.id, b.code, b.name, b.description, b.rule_kind, b.threshold, b.activity_kind, b.enabled, b.created_at, b.updated_at
		 FROM badges b
		 JOIN user_badges ub ON ub.badge_id = b.id
		 WHERE ub.user_id = ?
		 ORDER BY ub.awarded_at`,
		userID,
	).Scan(&badges).Error
	if err != nil {
		return nil, err
	}
	return badges, nil
}
