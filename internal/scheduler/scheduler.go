package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/lock"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	rankingdomain "github.com/gatherly/gatherly/internal/ranking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Guard  *lock.Guard
	Relay  activitydomain.RelayService
	Failed activitydomain.FailedEventService
	Sync   rankingdomain.SyncService
	Config Config `optional:"true"`
}

// job is one scheduled unit of work. lease and minHold shape the distributed
// lock: lease bounds how long a crashed holder blocks others, minHold keeps
// fast jobs from re-firing on every instance inside one interval.
type job struct {
	name     string
	interval time.Duration
	lease    time.Duration
	minHold  time.Duration
	timeout  time.Duration
	next     time.Time
	run      func(ctx context.Context) error
}

type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	genID  *snowflake.Node
	clock  clock.Clock
	guard  *lock.Guard
	relay  activitydomain.RelayService
	failed activitydomain.FailedEventService
	sync   rankingdomain.SyncService
	jobs   []*job
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Guard == nil || p.Relay == nil || p.Failed == nil || p.Sync == nil {
		return nil, activitydomain.ErrInvalidConfig
	}
	s := &Scheduler{
		log:    p.Log.Named("scheduler"),
		cfg:    p.Config.withDefaults(),
		genID:  p.GenID,
		clock:  p.Clock,
		guard:  p.Guard,
		relay:  p.Relay,
		failed: p.Failed,
		sync:   p.Sync,
	}
	s.jobs = s.buildJobs()
	return s, nil
}

func (s *Scheduler) buildJobs() []*job {
	now := s.clock.Now()
	jobs := []*job{
		{
			name:     "outbox_relay",
			interval: s.cfg.RelayInterval,
			lease:    4 * time.Second,
			minHold:  time.Second,
			timeout:  30 * time.Second,
			run: func(ctx context.Context) error {
				// The relay logs its own batch summary.
				_, _, err := s.relay.RelayBatch(ctx)
				return err
			},
		},
		{
			name:     "outbox_stuck_recovery",
			interval: s.cfg.StuckRecoveryInterval,
			lease:    4 * time.Minute,
			minHold:  30 * time.Second,
			timeout:  5 * time.Minute,
			run: func(ctx context.Context) error {
				_, err := s.relay.RecoverStuck(ctx)
				return err
			},
		},
		{
			name:     "outbox_cleanup",
			interval: s.cfg.CleanupInterval,
			lease:    10 * time.Minute,
			minHold:  0,
			timeout:  10 * time.Minute,
			run: func(ctx context.Context) error {
				_, err := s.relay.Cleanup(ctx)
				return err
			},
		},
		{
			name:     "failed_event_retry",
			interval: s.cfg.FailedRetryInterval,
			lease:    55 * time.Second,
			minHold:  5 * time.Second,
			timeout:  time.Minute,
			run: func(ctx context.Context) error {
				resolved, failed, err := s.failed.RetryBatch(ctx)
				if resolved > 0 || failed > 0 {
					s.failed.LogStatistics(ctx)
				}
				return err
			},
		},
		{
			name:     "failed_event_stuck_recovery",
			interval: s.cfg.FailedStuckRecoveryInterval,
			lease:    4 * time.Minute,
			minHold:  30 * time.Second,
			timeout:  5 * time.Minute,
			run: func(ctx context.Context) error {
				_, err := s.failed.RecoverStuck(ctx)
				return err
			},
		},
		{
			name:     "ranking_incremental_sync",
			interval: s.cfg.IncrementalSyncInterval,
			lease:    10 * time.Minute,
			minHold:  time.Minute,
			timeout:  10 * time.Minute,
			run:      s.sync.IncrementalSync,
		},
		{
			name:     "ranking_full_sync",
			interval: s.cfg.FullSyncInterval,
			lease:    time.Hour,
			minHold:  5 * time.Minute,
			timeout:  time.Hour,
			run:      s.sync.FullSync,
		},
	}
	for _, j := range jobs {
		// Work-draining jobs fire on the first tick. Recovery, cleanup and
		// the daily rebuild wait a full interval: there is nothing stuck or
		// stale right after boot, and Start already primed the cache.
		switch j.name {
		case "outbox_stuck_recovery", "failed_event_stuck_recovery", "outbox_cleanup", "ranking_full_sync":
			j.next = now.Add(j.interval)
		default:
			j.next = now
		}
	}
	return jobs
}

// RunDue executes every job whose fire time has passed, then advances its
// fire time. Exposed for deterministic fake-clock tests.
func (s *Scheduler) RunDue(ctx context.Context) {
	now := s.clock.Now()
	for _, j := range s.jobs {
		if now.Before(j.next) {
			continue
		}
		s.runJob(ctx, j)
		j.next = now.Add(j.interval)
	}
}

func (s *Scheduler) runJob(parent context.Context, j *job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, j.timeout)
	defer cancel()

	run := newJobRun(s.genID, j.name)
	pipeMetrics := obsmetrics.Pipeline()
	pipeMetrics.IncJobRun(j.name)
	s.logJobStart(run)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			pipeMetrics.IncJobError(j.name, err)
			s.logJobError(run, err)
		}
	}()

	ran, err := s.guard.Run(ctx, j.name, j.lease, j.minHold, j.run)
	pipeMetrics.ObserveJobDuration(j.name, time.Since(start))
	if !ran {
		pipeMetrics.IncJobSkipped(j.name)
		s.log.Debug("scheduler.job.skipped",
			zap.String("job", j.name),
			zap.String("run_id", run.runID),
		)
		return
	}
	if err != nil {
		pipeMetrics.IncJobError(j.name, err)
		s.logJobError(run, err)
		return
	}
	s.logJobFinish(run)
}

// RunForever polls at the tick interval until the context is canceled. A job
// failure never stops the loop.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	nextTick := s.clock.Now().Add(s.cfg.TickInterval)
	pipeMetrics := obsmetrics.Pipeline()

	for {
		tickLag := time.Since(nextTick)
		if tickLag > 0 {
			pipeMetrics.ObserveRunLoopLag(tickLag)
		}
		s.RunDue(ctx)
		nextTick = nextTick.Add(s.cfg.TickInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start primes the ranked-set store before the polling loop begins. A failed
// startup sync is logged and left to the scheduled syncs to repair.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.StartupFullSync {
		if err := s.sync.FullSync(ctx); err != nil {
			s.log.Warn("ranking.sync.startup.failed", zap.Error(err))
		}
	}
	s.RunForever(ctx)
}
