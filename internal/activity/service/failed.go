package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/alert"
	"github.com/gatherly/gatherly/internal/clock"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FailedEventsParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Failed    domain.FailedEventRepository
	Processor domain.Processor
	Alerts    alert.Notifier
	Config    Config `optional:"true"`
}

type failedEvents struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	cfg       Config
	failed    domain.FailedEventRepository
	processor domain.Processor
	alerts    alert.Notifier
}

func NewFailedEvents(p FailedEventsParams) (domain.FailedEventService, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Failed == nil || p.Processor == nil || p.Alerts == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &failedEvents{
		db:        p.DB,
		log:       p.Log.Named("outbox.quarantine"),
		genID:     p.GenID,
		clock:     p.Clock,
		cfg:       p.Config.withDefaults(),
		failed:    p.Failed,
		processor: p.Processor,
		alerts:    p.Alerts,
	}, nil
}

// Quarantine mirrors an exhausted outbox event into the failed-event table
// with a fresh retry budget.
func (s *failedEvents) Quarantine(ctx context.Context, db *gorm.DB, event *domain.OutboxEvent, cause string) error {
	now := s.clock.Now()
	return s.failed.Insert(ctx, db, &domain.FailedEvent{
		ID:            s.genID.Generate(),
		SourceEventID: event.ID,
		UserID:        event.UserID,
		Kind:          event.Kind,
		Operation:     event.Operation,
		TargetID:      event.TargetID,
		Status:        domain.FailedEventStatusPending,
		ErrorMessage:  domain.TruncateError(cause),
		FailedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (s *failedEvents) RetryBatch(ctx context.Context) (int, int, error) {
	var events []domain.FailedEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		events, err = s.failed.ClaimPending(ctx, tx, s.cfg.MaxFailedRetries, s.cfg.FailedBatchSize)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("claim failed events: %w", err)
	}
	if len(events) == 0 {
		return 0, 0, nil
	}

	resolved := 0
	failed := 0
	for i := range events {
		if ctx.Err() != nil {
			return resolved, failed, ctx.Err()
		}
		ok, err := s.retryOne(ctx, &events[i])
		if err != nil {
			failed++
			s.log.Error("outbox.quarantine.event_error",
				zap.String("event_id", events[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			resolved++
		} else {
			failed++
		}
	}

	s.log.Info("outbox.quarantine.batch",
		zap.Int("claimed", len(events)),
		zap.Int("resolved", resolved),
		zap.Int("failed", failed),
	)
	return resolved, failed, nil
}

func (s *failedEvents) retryOne(ctx context.Context, event *domain.FailedEvent) (bool, error) {
	now := s.clock.Now()
	pipeMetrics := obsmetrics.Pipeline()

	claimed, err := s.failed.MarkProcessing(ctx, s.db, event.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	if !claimed {
		return false, nil
	}

	procErr := s.processor.Process(ctx, event.UserID, event.Kind, event.Operation, event.TargetID)
	now = s.clock.Now()
	if procErr == nil {
		if err := s.failed.MarkResolved(ctx, s.db, event.ID, now); err != nil {
			return false, fmt.Errorf("mark resolved: %w", err)
		}
		pipeMetrics.IncFailedEvent(obsmetrics.FailedEventResultResolved)
		s.log.Info("outbox.quarantine.resolved",
			zap.String("event_id", event.ID.String()),
			zap.Int64("user_id", event.UserID),
		)
		return true, nil
	}

	cause := procErr.Error()
	if event.RetryCount+1 < s.cfg.MaxFailedRetries {
		if err := s.failed.MarkRetry(ctx, s.db, event.ID, cause, now); err != nil {
			return false, fmt.Errorf("mark retry: %w", err)
		}
		pipeMetrics.IncFailedEvent(obsmetrics.FailedEventResultRequeued)
		return false, nil
	}

	if err := s.failed.MarkAbandoned(ctx, s.db, event.ID, cause, now); err != nil {
		return false, fmt.Errorf("mark abandoned: %w", err)
	}
	pipeMetrics.IncFailedEvent(obsmetrics.FailedEventResultAbandoned)
	s.alerts.Send(ctx, alert.LevelHigh, alert.CodeFailedEventAbandoned,
		"quarantined event abandoned after exhausting retries",
		fmt.Sprintf("event_id=%s user_id=%d kind=%s", event.ID, event.UserID, event.Kind),
		procErr,
	)
	return false, nil
}

func (s *failedEvents) RecoverStuck(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.StuckTimeout)
	recovered, err := s.failed.RevertStuck(ctx, s.db, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("revert stuck failed events: %w", err)
	}
	if recovered > 0 {
		s.log.Warn("outbox.quarantine.stuck_recovered", zap.Int64("count", recovered))
	}
	return recovered, nil
}

func (s *failedEvents) LogStatistics(ctx context.Context) {
	counts, err := s.failed.CountByStatus(ctx, s.db)
	if err != nil {
		s.log.Warn("outbox.quarantine.stats_failed", zap.Error(err))
		return
	}
	s.log.Info("outbox.quarantine.stats",
		zap.Int64("pending", counts[domain.FailedEventStatusPending]),
		zap.Int64("processing", counts[domain.FailedEventStatusProcessing]),
		zap.Int64("resolved", counts[domain.FailedEventStatusResolved]),
		zap.Int64("abandoned", counts[domain.FailedEventStatusAbandoned]),
	)
}
