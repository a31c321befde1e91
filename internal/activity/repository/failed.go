package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/activity/domain"
	"gorm.io/gorm"
)

type failedRepo struct{}

func ProvideFailed() domain.FailedEventRepository {
	return &failedRepo{}
}

func (r *failedRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.FailedEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO failed_activity_events (
			id, source_event_id, user_id, kind, operation, target_id,
			status, retry_count, error_message, failed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SourceEventID,
		event.UserID,
		event.Kind,
		event.Operation,
		event.TargetID,
		event.Status,
		event.RetryCount,
		event.ErrorMessage,
		event.FailedAt,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *failedRepo) ClaimPending(ctx context.Context, db *gorm.DB, maxRetries, limit int) ([]domain.FailedEvent, error) {
	var events []domain.FailedEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, source_event_id, user_id, kind, operation, target_id,
		        status, retry_count, error_message, failed_at, processed_at, created_at, updated_at
		 FROM failed_activity_events
		 WHERE status = ? AND retry_count < ?
		 ORDER BY failed_at ASC, id ASC
		 FOR UPDATE SKIP LOCKED
		 LIMIT ?`,
		domain.FailedEventStatusPending,
		maxRetries,
		limit,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *failedRepo) MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE failed_activity_events
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.FailedEventStatusProcessing,
		now,
		id,
		domain.FailedEventStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *failedRepo) MarkResolved(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE failed_activity_events
		 SET status = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.FailedEventStatusResolved,
		now,
		now,
		id,
		domain.FailedEventStatusProcessing,
	).Error
}

func (r *failedRepo) MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE failed_activity_events
		 SET status = ?, retry_count = retry_count + 1, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.FailedEventStatusPending,
		domain.TruncateError(cause),
		now,
		id,
		domain.FailedEventStatusProcessing,
	).Error
}

func (r *failedRepo) MarkAbandoned(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE failed_activity_events
		 SET status = ?, retry_count = retry_count + 1, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.FailedEventStatusAbandoned,
		domain.TruncateError(cause),
		now,
		id,
		domain.FailedEventStatusProcessing,
	).Error
}

func (r *failedRepo) RevertStuck(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE failed_activity_events
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		domain.FailedEventStatusPending,
		now,
		domain.FailedEventStatusProcessing,
		cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *failedRepo) CountByStatus(ctx context.Context, db *gorm.DB) (map[domain.FailedEventStatus]int64, error) {
	var rows []struct {
		Status domain.FailedEventStatus
		Total  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS total
		 FROM failed_activity_events
		 GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.FailedEventStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
