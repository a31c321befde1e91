package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Config carries the constant labels attached to every metric.
type Config struct {
	ServiceName string
	Environment string
}

const (
	OutboxResultDone    = "done"
	OutboxResultRetried = "retried"
	OutboxResultFailed  = "failed"

	FailedEventResultResolved  = "resolved"
	FailedEventResultRequeued  = "requeued"
	FailedEventResultAbandoned = "abandoned"
)

const (
	JobErrorTypeDeadlineExceeded = "deadline_exceeded"
	JobErrorTypeDB               = "db"
	JobErrorTypeUnknown          = "unknown"
)

// PipelineMetrics captures relay, quarantine and ranking sync health signals.
type PipelineMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobErrors   *prometheus.CounterVec
	jobSkipped  *prometheus.CounterVec
	runLoopLag  prometheus.Observer

	outboxRelayed     *prometheus.CounterVec
	outboxRecovered   prometheus.Counter
	outboxCleaned     prometheus.Counter
	failedEvents      *prometheus.CounterVec
	rankingSynced     *prometheus.CounterVec
	alertsSent        *prometheus.CounterVec
	alertsSuppressed  *prometheus.CounterVec
	badgesAwarded     prometheus.Counter
	activitiesApplied *prometheus.CounterVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	if m := pipelineMetrics; m != nil {
		collectors := []interface{}{
			m.jobRuns,
			m.jobDuration,
			m.jobErrors,
			m.jobSkipped,
			m.runLoopLag,
			m.outboxRelayed,
			m.outboxRecovered,
			m.outboxCleaned,
			m.failedEvents,
			m.rankingSynced,
			m.alertsSent,
			m.alertsSuppressed,
			m.badgesAwarded,
			m.activitiesApplied,
		}
		for _, c := range collectors {
			if collector, ok := c.(prometheus.Collector); ok {
				prometheus.DefaultRegisterer.Unregister(collector)
			}
		}
	}
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "gatherly"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "gatherly_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency to keep outbox relay freshness within budget.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality type.",
		ConstLabels: constLabels,
	}, []string{"job", "error_type"})
	jobSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_scheduler_job_skipped_total",
		Help:        "Scheduler job runs skipped because another instance held the lock.",
		ConstLabels: constLabels,
	}, []string{"job"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "gatherly_scheduler_runloop_lag_seconds",
		Help:        "Scheduler run loop lag beyond the configured tick.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	outboxRelayed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_outbox_events_total",
		Help:        "Outbox events relayed by result of the attempt.",
		ConstLabels: constLabels,
	}, []string{"result"})
	outboxRecovered := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "gatherly_outbox_stuck_recovered_total",
		Help:        "Outbox events reverted from PROCESSING back to PENDING.",
		ConstLabels: constLabels,
	})
	outboxCleaned := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "gatherly_outbox_cleaned_total",
		Help:        "Completed outbox events removed past the retention window.",
		ConstLabels: constLabels,
	})
	failedEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_failed_events_total",
		Help:        "Quarantined event retry outcomes.",
		ConstLabels: constLabels,
	}, []string{"result"})
	rankingSynced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_ranking_synced_total",
		Help:        "Ranking members written to the ranked-set store by sync mode.",
		ConstLabels: constLabels,
	}, []string{"mode"})
	alertsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_alerts_sent_total",
		Help:        "Operational alerts delivered by level.",
		ConstLabels: constLabels,
	}, []string{"level"})
	alertsSuppressed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_alerts_suppressed_total",
		Help:        "Operational alerts suppressed by the per-code rate limit.",
		ConstLabels: constLabels,
	}, []string{"level"})
	badgesAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "gatherly_badges_awarded_total",
		Help:        "Badges granted by the evaluation pass.",
		ConstLabels: constLabels,
	})
	activitiesApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gatherly_activities_applied_total",
		Help:        "Activity operations applied to the relational aggregate.",
		ConstLabels: constLabels,
	}, []string{"operation"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobErrors,
		jobSkipped,
		runLoopLag,
		outboxRelayed,
		outboxRecovered,
		outboxCleaned,
		failedEvents,
		rankingSynced,
		alertsSent,
		alertsSuppressed,
		badgesAwarded,
		activitiesApplied,
	)

	return &PipelineMetrics{
		jobRuns:           jobRuns,
		jobDuration:       jobDuration,
		jobErrors:         jobErrors,
		jobSkipped:        jobSkipped,
		runLoopLag:        runLoopLag,
		outboxRelayed:     outboxRelayed,
		outboxRecovered:   outboxRecovered,
		outboxCleaned:     outboxCleaned,
		failedEvents:      failedEvents,
		rankingSynced:     rankingSynced,
		alertsSent:        alertsSent,
		alertsSuppressed:  alertsSuppressed,
		badgesAwarded:     badgesAwarded,
		activitiesApplied: activitiesApplied,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *PipelineMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *PipelineMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobError increments the scheduler job error counter with classification.
func (m *PipelineMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobErrorType(err)).Inc()
}

// IncJobSkipped increments the lock-held skip counter for a scheduler job.
func (m *PipelineMetrics) IncJobSkipped(job string) {
	if m == nil || m.jobSkipped == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *PipelineMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// IncOutboxRelayed counts a relay attempt by result (done, retried, failed).
func (m *PipelineMetrics) IncOutboxRelayed(result string) {
	if m == nil || m.outboxRelayed == nil {
		return
	}
	m.outboxRelayed.WithLabelValues(result).Inc()
}

// AddOutboxRecovered counts events reverted back to PENDING by the stuck sweep.
func (m *PipelineMetrics) AddOutboxRecovered(count int64) {
	if m == nil || m.outboxRecovered == nil || count <= 0 {
		return
	}
	m.outboxRecovered.Add(float64(count))
}

// AddOutboxCleaned counts DONE events deleted past retention.
func (m *PipelineMetrics) AddOutboxCleaned(count int64) {
	if m == nil || m.outboxCleaned == nil || count <= 0 {
		return
	}
	m.outboxCleaned.Add(float64(count))
}

// IncFailedEvent counts a quarantine retry outcome.
func (m *PipelineMetrics) IncFailedEvent(result string) {
	if m == nil || m.failedEvents == nil {
		return
	}
	m.failedEvents.WithLabelValues(result).Inc()
}

// AddRankingSynced counts members written by a sync pass.
func (m *PipelineMetrics) AddRankingSynced(mode string, count int) {
	if m == nil || m.rankingSynced == nil || count <= 0 {
		return
	}
	m.rankingSynced.WithLabelValues(mode).Add(float64(count))
}

// IncAlertSent counts a delivered alert by level.
func (m *PipelineMetrics) IncAlertSent(level string) {
	if m == nil || m.alertsSent == nil {
		return
	}
	m.alertsSent.WithLabelValues(level).Inc()
}

// IncAlertSuppressed counts an alert dropped by the rate limit.
func (m *PipelineMetrics) IncAlertSuppressed(level string) {
	if m == nil || m.alertsSuppressed == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(level).Inc()
}

// IncBadgesAwarded counts granted badges.
func (m *PipelineMetrics) IncBadgesAwarded(count int) {
	if m == nil || m.badgesAwarded == nil || count <= 0 {
		return
	}
	m.badgesAwarded.Add(float64(count))
}

// IncActivityApplied counts an applied RECORD or REVOKE operation.
func (m *PipelineMetrics) IncActivityApplied(operation string) {
	if m == nil || m.activitiesApplied == nil {
		return
	}
	m.activitiesApplied.WithLabelValues(operation).Inc()
}

// ClassifyJobErrorType returns a low-cardinality error type for logging and metrics.
func ClassifyJobErrorType(err error) string {
	if err == nil {
		return JobErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobErrorTypeDeadlineExceeded
	}
	if isDBError(err) {
		return JobErrorTypeDB
	}
	return JobErrorTypeUnknown
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrMissingWhereClause)
}
