package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/badge/domain"
	"github.com/gatherly/gatherly/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Badges     domain.Repository
	Activities activitydomain.ActivityRepository
	Points     activitydomain.PointsRepository
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	badges     domain.Repository
	activities activitydomain.ActivityRepository
	points     activitydomain.PointsRepository
}

func New(p Params) (domain.Service, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Badges == nil || p.Activities == nil || p.Points == nil {
		return nil, activitydomain.ErrInvalidConfig
	}
	return &service{
		db:         p.DB,
		log:        p.Log.Named("badge"),
		genID:      p.GenID,
		clock:      p.Clock,
		badges:     p.Badges,
		activities: p.Activities,
		points:     p.Points,
	}, nil
}

func (s *service) EvaluateAndAward(ctx context.Context, userID int64) ([]string, error) {
	badges, err := s.badges.EnabledBadges(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("load badges: %w", err)
	}
	if len(badges) == 0 {
		return nil, nil
	}

	ownedIDs, err := s.badges.OwnedBadgeIDs(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("load owned badges: %w", err)
	}
	owned := make(map[snowflake.ID]struct{}, len(ownedIDs))
	for _, id := range ownedIDs {
		owned[id] = struct{}{}
	}

	var awarded []string
	now := s.clock.Now()
	for _, badge := range badges {
		if _, ok := owned[badge.ID]; ok {
			continue
		}
		satisfied, err := s.satisfies(ctx, userID, badge)
		if err != nil {
			return awarded, err
		}
		if !satisfied {
			continue
		}
		granted, err := s.badges.Award(ctx, s.db, &domain.UserBadge{
			ID:        s.genID.Generate(),
			UserID:    userID,
			BadgeID:   badge.ID,
			AwardedAt: now,
		})
		if err != nil {
			return awarded, fmt.Errorf("award badge %s: %w", badge.Code, err)
		}
		if granted {
			awarded = append(awarded, badge.Name)
		}
	}
	return awarded, nil
}

func (s *service) satisfies(ctx context.Context, userID int64, badge domain.Badge) (bool, error) {
	switch badge.RuleKind {
	case domain.RuleActivityCount:
		var count int64
		var err error
		if badge.ActivityKind != "" {
			count, err = s.activities.CountByUserAndKind(ctx, s.db, userID, activitydomain.ActivityKind(badge.ActivityKind))
		} else {
			count, err = s.activities.CountByUser(ctx, s.db, userID)
		}
		if err != nil {
			return false, err
		}
		return count >= badge.Threshold, nil
	case domain.RuleTotalPoints:
		total, err := s.points.TotalPoints(ctx, s.db, userID)
		if err != nil {
			return false, err
		}
		return total >= badge.Threshold, nil
	default:
		s.log.Warn("badge.unknown_rule",
			zap.String("badge", badge.Code),
			zap.String("rule_kind", string(badge.RuleKind)),
		)
		return false, nil
	}
}

func (s *service) ListForUser(ctx context.Context, userID int64) ([]domain.Badge, error) {
	return s.badges.ListForUser(ctx, s.db, userID)
}
