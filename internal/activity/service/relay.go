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

type RelayParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Outbox    domain.OutboxRepository
	Failed    domain.FailedEventService
	Processor domain.Processor
	Alerts    alert.Notifier
	Config    Config `optional:"true"`
}

type relay struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	cfg       Config
	outbox    domain.OutboxRepository
	failed    domain.FailedEventService
	processor domain.Processor
	alerts    alert.Notifier
}

func NewRelay(p RelayParams) (domain.RelayService, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Outbox == nil || p.Failed == nil || p.Processor == nil || p.Alerts == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &relay{
		db:        p.DB,
		log:       p.Log.Named("outbox.relay"),
		clock:     p.Clock,
		cfg:       p.Config.withDefaults(),
		outbox:    p.Outbox,
		failed:    p.Failed,
		processor: p.Processor,
		alerts:    p.Alerts,
	}, nil
}

// RelayBatch claims one batch of pending events and processes each one
// independently: a failing event never blocks its neighbours.
func (r *relay) RelayBatch(ctx context.Context) (int, int, error) {
	var events []domain.OutboxEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		events, err = r.outbox.ClaimPending(ctx, tx, r.cfg.MaxRelayRetries, r.cfg.RelayBatchSize)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("claim pending events: %w", err)
	}
	if len(events) == 0 {
		return 0, 0, nil
	}

	done := 0
	failed := 0
	for i := range events {
		if ctx.Err() != nil {
			return done, failed, ctx.Err()
		}
		ok, err := r.processOne(ctx, &events[i])
		if err != nil {
			failed++
			r.log.Error("outbox.relay.event_error",
				zap.String("event_id", events[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			done++
		} else {
			failed++
		}
	}

	r.log.Info("outbox.relay.batch",
		zap.Int("claimed", len(events)),
		zap.Int("done", done),
		zap.Int("failed", failed),
	)
	return done, failed, nil
}

func (r *relay) ProcessOne(ctx context.Context, id snowflake.ID) error {
	event, err := r.outbox.FindByID(ctx, r.db, id)
	if err != nil {
		return err
	}
	if event == nil {
		return domain.ErrEventNotFound
	}
	_, err = r.processOne(ctx, event)
	return err
}

// processOne runs a single delivery attempt. The returned bool reports
// whether the event reached DONE; a false with nil error means the attempt
// failed and the outcome is captured on the row.
func (r *relay) processOne(ctx context.Context, event *domain.OutboxEvent) (bool, error) {
	now := r.clock.Now()
	pipeMetrics := obsmetrics.Pipeline()

	claimed, err := r.outbox.MarkProcessing(ctx, r.db, event.ID, now)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	if !claimed {
		// Another worker got here first, or the event is no longer pending.
		return false, nil
	}

	procErr := r.processor.Process(ctx, event.UserID, event.Kind, event.Operation, event.TargetID)
	now = r.clock.Now()
	if procErr == nil {
		if err := r.outbox.MarkDone(ctx, r.db, event.ID, now); err != nil {
			return false, fmt.Errorf("mark done: %w", err)
		}
		pipeMetrics.IncOutboxRelayed(obsmetrics.OutboxResultDone)
		return true, nil
	}

	cause := procErr.Error()
	if event.RetryCount+1 < r.cfg.MaxRelayRetries {
		if err := r.outbox.MarkRetry(ctx, r.db, event.ID, cause, now); err != nil {
			return false, fmt.Errorf("mark retry: %w", err)
		}
		pipeMetrics.IncOutboxRelayed(obsmetrics.OutboxResultRetried)
		r.log.Warn("outbox.relay.retry",
			zap.String("event_id", event.ID.String()),
			zap.Int("retry_count", event.RetryCount+1),
			zap.Error(procErr),
		)
		return false, nil
	}

	// Budget exhausted: the terminal FAILED transition and its quarantine
	// mirror commit together. A FAILED row without a mirror would be
	// unreachable by both the relay and the retry loop.
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.outbox.MarkFailed(ctx, tx, event.ID, cause, now); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		if err := r.failed.Quarantine(ctx, tx, event, cause); err != nil {
			return fmt.Errorf("quarantine: %w", err)
		}
		return nil
	})
	if txErr != nil {
		// The row stays PROCESSING; stuck recovery requeues it for another
		// terminal attempt.
		r.alerts.Send(ctx, alert.LevelCritical, alert.CodeOutboxMirrorFailed,
			"failed to quarantine exhausted outbox event",
			fmt.Sprintf("event_id=%s user_id=%d", event.ID, event.UserID),
			txErr,
		)
		return false, txErr
	}
	pipeMetrics.IncOutboxRelayed(obsmetrics.OutboxResultFailed)

	r.alerts.Send(ctx, alert.LevelCritical, alert.CodeOutboxRelayFailed,
		"outbox event exhausted its retry budget",
		fmt.Sprintf("event_id=%s user_id=%d kind=%s", event.ID, event.UserID, event.Kind),
		procErr,
	)
	r.log.Error("outbox.relay.exhausted",
		zap.String("event_id", event.ID.String()),
		zap.Int64("user_id", event.UserID),
		zap.Error(procErr),
	)
	return false, nil
}

func (r *relay) RecoverStuck(ctx context.Context) (int64, error) {
	now := r.clock.Now()
	cutoff := now.Add(-r.cfg.StuckTimeout)
	recovered, err := r.outbox.RevertStuck(ctx, r.db, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("revert stuck events: %w", err)
	}
	if recovered > 0 {
		obsmetrics.Pipeline().AddOutboxRecovered(recovered)
		r.log.Warn("outbox.stuck.recovered", zap.Int64("count", recovered))
	}
	return recovered, nil
}

func (r *relay) Cleanup(ctx context.Context) (int64, error) {
	cutoff := r.clock.Now().Add(-r.cfg.DoneRetention)
	deleted, err := r.outbox.DeleteDoneBefore(ctx, r.db, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete completed events: %w", err)
	}
	if deleted > 0 {
		obsmetrics.Pipeline().AddOutboxCleaned(deleted)
		r.log.Info("outbox.cleanup", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
