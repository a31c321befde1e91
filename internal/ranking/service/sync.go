package service

import (
	"context"
	"errors"
	"fmt"

	activitydomain "github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/observability/metrics"
	"github.com/gatherly/gatherly/internal/ranking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SyncParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Store      domain.Store
	Activities activitydomain.ActivityRepository
	Points     activitydomain.PointsRepository
	Config     *Config `optional:"true"`
}

type syncer struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	cfg        Config
	store      domain.Store
	activities activitydomain.ActivityRepository
	points     activitydomain.PointsRepository
	metrics    *metrics.PipelineMetrics
}

func NewSync(p SyncParams) (domain.SyncService, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Store == nil || p.Activities == nil || p.Points == nil {
		return nil, errors.New("db, log, clock, store and repositories are required")
	}
	cfg := DefaultConfig()
	if p.Config != nil {
		cfg = p.Config.withDefaults()
	}
	return &syncer{
		db:         p.DB,
		log:        p.Log.Named("ranking.sync"),
		clock:      p.Clock,
		cfg:        cfg,
		store:      p.Store,
		activities: p.Activities,
		points:     p.Points,
		metrics:    metrics.Pipeline(),
	}, nil
}

// FullSync rebuilds both rankings from the relational totals, paging by user
// id so memory stays bounded regardless of population size.
func (s *syncer) FullSync(ctx context.Context) error {
	synced, err := s.fullSyncPoints(ctx)
	if err != nil {
		return err
	}
	counted, err := s.fullSyncActivityCounts(ctx)
	if err != nil {
		return err
	}
	s.log.Info("ranking.sync.full",
		zap.Int("points_members", synced),
		zap.Int("activity_members", counted),
	)
	return nil
}

func (s *syncer) fullSyncPoints(ctx context.Context) (int, error) {
	var total int
	for offset := 0; ; offset += s.cfg.SyncBatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rows, err := s.points.PageTotals(ctx, s.db, s.cfg.SyncBatchSize, offset)
		if err != nil {
			return total, fmt.Errorf("page point totals: %w", err)
		}
		if len(rows) == 0 {
			return total, nil
		}
		members := make([]domain.Member, 0, len(rows))
		for _, row := range rows {
			members = append(members, domain.Member{UserID: row.UserID, Score: row.TotalPoints})
		}
		if err := s.pushMembers(ctx, domain.TypePoints, members); err != nil {
			return total, fmt.Errorf("push point scores: %w", err)
		}
		total += len(members)
		s.metrics.AddRankingSynced("full", len(members))
		if len(rows) < s.cfg.SyncBatchSize {
			return total, nil
		}
	}
}

func (s *syncer) fullSyncActivityCounts(ctx context.Context) (int, error) {
	var total int
	for offset := 0; ; offset += s.cfg.SyncBatchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rows, err := s.activities.PageActivityCounts(ctx, s.db, s.cfg.SyncBatchSize, offset)
		if err != nil {
			return total, fmt.Errorf("page activity counts: %w", err)
		}
		if len(rows) == 0 {
			return total, nil
		}
		members := make([]domain.Member, 0, len(rows))
		for _, row := range rows {
			members = append(members, domain.Member{UserID: row.UserID, Score: row.Count})
		}
		if err := s.pushMembers(ctx, domain.TypeActivityCount, members); err != nil {
			return total, fmt.Errorf("push activity counts: %w", err)
		}
		total += len(members)
		s.metrics.AddRankingSynced("full", len(members))
		if len(rows) < s.cfg.SyncBatchSize {
			return total, nil
		}
	}
}

// IncrementalSync refreshes only users active inside the lookback window.
func (s *syncer) IncrementalSync(ctx context.Context) error {
	since := s.clock.Now().Add(-s.cfg.IncrementalLookback)
	userIDs, err := s.activities.RecentlyActiveUserIDs(ctx, s.db, since)
	if err != nil {
		return fmt.Errorf("load recently active users: %w", err)
	}
	if len(userIDs) == 0 {
		s.log.Debug("ranking.sync.incremental.empty")
		return nil
	}

	var synced int
	for start := 0; start < len(userIDs); start += s.cfg.SyncBatchSize {
		end := start + s.cfg.SyncBatchSize
		if end > len(userIDs) {
			end = len(userIDs)
		}
		batch := userIDs[start:end]

		totals, err := s.points.TotalsForUsers(ctx, s.db, batch)
		if err != nil {
			return fmt.Errorf("load point totals: %w", err)
		}
		pointMembers := make([]domain.Member, 0, len(totals))
		for _, row := range totals {
			pointMembers = append(pointMembers, domain.Member{UserID: row.UserID, Score: row.TotalPoints})
		}
		if err := s.pushMembers(ctx, domain.TypePoints, pointMembers); err != nil {
			return fmt.Errorf("push point scores: %w", err)
		}

		counts, err := s.activities.CountsForUsers(ctx, s.db, batch)
		if err != nil {
			return fmt.Errorf("load activity counts: %w", err)
		}
		countMembers := make([]domain.Member, 0, len(counts))
		for _, row := range counts {
			countMembers = append(countMembers, domain.Member{UserID: row.UserID, Score: row.Count})
		}
		if err := s.pushMembers(ctx, domain.TypeActivityCount, countMembers); err != nil {
			return fmt.Errorf("push activity counts: %w", err)
		}

		synced += len(batch)
		s.metrics.AddRankingSynced("incremental", len(batch))
	}
	s.log.Info("ranking.sync.incremental", zap.Int("users", synced))
	return nil
}

// SyncUser pushes one user's current totals right after an activity is
// applied. Periodic syncs repair anything this best-effort push misses.
func (s *syncer) SyncUser(ctx context.Context, userID int64) error {
	total, err := s.points.TotalPoints(ctx, s.db, userID)
	if err != nil {
		return fmt.Errorf("load point total: %w", err)
	}
	if err := s.pushScore(ctx, domain.TypePoints, userID, total); err != nil {
		return fmt.Errorf("push point score: %w", err)
	}

	count, err := s.activities.CountByUser(ctx, s.db, userID)
	if err != nil {
		return fmt.Errorf("load activity count: %w", err)
	}
	if err := s.pushScore(ctx, domain.TypeActivityCount, userID, count); err != nil {
		return fmt.Errorf("push activity count: %w", err)
	}
	s.metrics.AddRankingSynced("user", 1)
	return nil
}

// pushScore upserts a member, or removes it once its score has dropped to
// zero. A fully revoked user must leave the ranking, not sit at score 0.
func (s *syncer) pushScore(ctx context.Context, t domain.Type, userID, score int64) error {
	if score <= 0 {
		return s.store.Remove(ctx, t, userID)
	}
	return s.store.UpsertScore(ctx, t, userID, score)
}

// pushMembers is the batch form of pushScore.
func (s *syncer) pushMembers(ctx context.Context, t domain.Type, members []domain.Member) error {
	upserts := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.Score <= 0 {
			if err := s.store.Remove(ctx, t, m.UserID); err != nil {
				return err
			}
			continue
		}
		upserts = append(upserts, m)
	}
	if len(upserts) == 0 {
		return nil
	}
	return s.store.UpsertScores(ctx, t, upserts)
}
