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

type ProcessorParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Activities domain.ActivityRepository
	Points     domain.PointsRepository
	Alerts     alert.Notifier
	Badges     domain.BadgeAwarder   `optional:"true"`
	Ranking    domain.RankingUpdater `optional:"true"`
}

type processor struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	activities domain.ActivityRepository
	points     domain.PointsRepository
	alerts     alert.Notifier
	badges     domain.BadgeAwarder
	ranking    domain.RankingUpdater
}

func NewProcessor(p ProcessorParams) (domain.Processor, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Activities == nil || p.Points == nil || p.Alerts == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &processor{
		db:         p.DB,
		log:        p.Log.Named("activity.processor"),
		genID:      p.GenID,
		clock:      p.Clock,
		activities: p.Activities,
		points:     p.Points,
		alerts:     p.Alerts,
		badges:     p.Badges,
		ranking:    p.Ranking,
	}, nil
}

// Process applies a single activity operation. Re-running it with the same
// arguments has no additional effect on points.
func (p *processor) Process(ctx context.Context, userID int64, kind domain.ActivityKind, op domain.Operation, targetID int64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnknownKind, kind)
	}
	switch op {
	case domain.OperationRecord:
		return p.record(ctx, userID, kind, targetID)
	case domain.OperationRevoke:
		return p.revoke(ctx, userID, kind, targetID)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownOperation, op)
	}
}

func (p *processor) record(ctx context.Context, userID int64, kind domain.ActivityKind, targetID int64) error {
	now := p.clock.Now()

	// Logins are deduplicated per UTC day: the dedup key is the day itself,
	// so a second login (or a replayed event) inserts nothing.
	if kind == domain.KindUserLogin {
		targetID = int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	}

	applied := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := p.activities.Insert(ctx, tx, &domain.UserActivity{
			ID:           p.genID.Generate(),
			UserID:       userID,
			Kind:         kind,
			TargetID:     targetID,
			PointsEarned: kind.Points(),
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		applied = true
		return p.points.AddPoints(ctx, tx, userID, kind.Points(), now)
	})
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	if !applied {
		p.log.Debug("activity.already_applied",
			zap.Int64("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Int64("target_id", targetID),
		)
		return nil
	}

	obsmetrics.Pipeline().IncActivityApplied(string(domain.OperationRecord))
	p.log.Info("activity.recorded",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Int64("target_id", targetID),
		zap.Int64("points", kind.Points()),
	)

	p.fanOut(ctx, userID, true)
	return nil
}

func (p *processor) revoke(ctx context.Context, userID int64, kind domain.ActivityKind, targetID int64) error {
	now := p.clock.Now()

	var removed *domain.UserActivity
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = p.activities.Delete(ctx, tx, userID, kind, targetID)
		if err != nil {
			return err
		}
		if removed == nil {
			return nil
		}
		return p.points.SubtractPointsFloorZero(ctx, tx, userID, removed.PointsEarned, now)
	})
	if err != nil {
		return fmt.Errorf("revoke activity: %w", err)
	}
	if removed == nil {
		p.log.Debug("activity.revoke_noop",
			zap.Int64("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Int64("target_id", targetID),
		)
		return nil
	}

	obsmetrics.Pipeline().IncActivityApplied(string(domain.OperationRevoke))
	p.log.Info("activity.revoked",
		zap.Int64("user_id", userID),
		zap.String("kind", string(kind)),
		zap.Int64("target_id", targetID),
		zap.Int64("points", removed.PointsEarned),
	)

	p.fanOut(ctx, userID, false)
	return nil
}

// fanOut runs the best-effort side effects. Failures here are alerted and
// absorbed: the committed points write is the source of truth and the
// periodic sync repairs the ranked-set store.
func (p *processor) fanOut(ctx context.Context, userID int64, checkBadges bool) {
	if checkBadges && p.badges != nil {
		awarded, err := p.badges.EvaluateAndAward(ctx, userID)
		if err != nil {
			p.alerts.Send(ctx, alert.LevelHigh, alert.CodeBadgeCheckFailed,
				"badge evaluation failed",
				fmt.Sprintf("user_id=%d", userID),
				err,
			)
		} else if len(awarded) > 0 {
			obsmetrics.Pipeline().IncBadgesAwarded(len(awarded))
			p.log.Info("badge.awarded",
				zap.Int64("user_id", userID),
				zap.Strings("badges", awarded),
			)
		}
	}

	if p.ranking != nil {
		if err := p.ranking.SyncUser(ctx, userID); err != nil {
			p.alerts.Send(ctx, alert.LevelMedium, alert.CodeRankingUpdateFailed,
				"per-user ranking update failed",
				fmt.Sprintf("user_id=%d", userID),
				err,
			)
		}
	}
}
