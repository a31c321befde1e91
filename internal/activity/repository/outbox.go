package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/activity/domain"
	"gorm.io/gorm"
)

type outboxRepo struct{}

func ProvideOutbox() domain.OutboxRepository {
	return &outboxRepo{}
}

func (r *outboxRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO activity_outbox (
			id, idempotency_key, user_id, kind, operation, target_id,
			status, retry_count, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.IdempotencyKey,
		event.UserID,
		event.Kind,
		event.Operation,
		event.TargetID,
		event.Status,
		event.RetryCount,
		event.ErrorMessage,
		event.CreatedAt,
		event.UpdatedAt,
	).Error
}

func (r *outboxRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, idempotency_key, user_id, kind, operation, target_id,
		        status, retry_count, error_message, processed_at, created_at, updated_at
		 FROM activity_outbox WHERE id = ?`,
		id,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *outboxRepo) ClaimPending(ctx context.Context, db *gorm.DB, maxRetries, limit int) ([]domain.OutboxEvent, error) {
	var events []domain.OutboxEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, idempotency_key, user_id, kind, operation, target_id,
		        status, retry_count, error_message, processed_at, created_at, updated_at
		 FROM activity_outbox
		 WHERE status = ? AND retry_count < ?
		 ORDER BY created_at ASC, id ASC
		 FOR UPDATE SKIP LOCKED
		 LIMIT ?`,
		domain.OutboxStatusPending,
		maxRetries,
		limit,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepo) MarkProcessing(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE activity_outbox
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OutboxStatusProcessing,
		now,
		id,
		domain.OutboxStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *outboxRepo) MarkDone(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE activity_outbox
		 SET status = ?, processed_at = ?, error_message = '', updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OutboxStatusDone,
		now,
		now,
		id,
		domain.OutboxStatusProcessing,
	).Error
}

func (r *outboxRepo) MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE activity_outbox
		 SET status = ?, retry_count = retry_count + 1, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OutboxStatusPending,
		domain.TruncateError(cause),
		now,
		id,
		domain.OutboxStatusProcessing,
	).Error
}

func (r *outboxRepo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, cause string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE activity_outbox
		 SET status = ?, retry_count = retry_count + 1, error_message = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OutboxStatusFailed,
		domain.TruncateError(cause),
		now,
		id,
		domain.OutboxStatusProcessing,
	).Error
}

func (r *outboxRepo) RevertStuck(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE activity_outbox
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		domain.OutboxStatusPending,
		now,
		domain.OutboxStatusProcessing,
		cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *outboxRepo) DeleteDoneBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM activity_outbox
		 WHERE status = ? AND processed_at < ?`,
		domain.OutboxStatusDone,
		cutoff,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *outboxRepo) CountByStatus(ctx context.Context, db *gorm.DB) (map[domain.OutboxStatus]int64, error) {
	var rows []struct {
		Status domain.OutboxStatus
		Total  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS total
		 FROM activity_outbox
		 GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
