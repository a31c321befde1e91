package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gatherly/gatherly/internal/clock"
	obsmetrics "github.com/gatherly/gatherly/internal/observability/metrics"
	"github.com/gatherly/gatherly/internal/providers/slack"
	"go.uber.org/zap"
)

type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelInfo     Level = "INFO"
)

// Error codes attached to operational alerts.
const (
	CodeOutboxRelayFailed    = "OUTBOX_RELAY_FAILED"
	CodeOutboxMirrorFailed   = "OUTBOX_MIRROR_FAILED"
	CodeFailedEventAbandoned = "FAILED_EVENT_ABANDONED"
	CodeBadgeCheckFailed     = "BADGE_CHECK_FAILED"
	CodeRankingUpdateFailed  = "RANKING_UPDATE_FAILED"
	CodeRankingSyncFailed    = "RANKING_SYNC_FAILED"
)

// Notifier delivers operational alerts. Implementations must never propagate
// delivery failures to callers.
type Notifier interface {
	Send(ctx context.Context, level Level, code, message, detail string, err error)
}

const suppressionWindow = 5 * time.Minute

// Service posts alerts to slack with a fixed-window per-code rate limit.
type Service struct {
	provider slack.Provider
	channel  string
	clock    clock.Clock
	log      *zap.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func New(provider slack.Provider, channel string, clk clock.Clock, log *zap.Logger) *Service {
	if provider == nil {
		provider = &slack.NoOpProvider{}
	}
	return &Service{
		provider: provider,
		channel:  channel,
		clock:    clk,
		log:      log.Named("alert"),
		lastSent: make(map[string]time.Time),
	}
}

func (s *Service) Send(ctx context.Context, level Level, code, message, detail string, err error) {
	pipeMetrics := obsmetrics.Pipeline()

	if !s.allow(level, code) {
		pipeMetrics.IncAlertSuppressed(string(level))
		s.log.Debug("alert.suppressed",
			zap.String("level", string(level)),
			zap.String("code", code),
		)
		return
	}

	text := fmt.Sprintf("[%s] %s: %s", level, code, message)
	if detail != "" {
		text += "\n" + detail
	}
	if err != nil {
		text += "\nerror: " + err.Error()
	}

	fields := []zap.Field{
		zap.String("level", string(level)),
		zap.String("code", code),
		zap.String("message", message),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.log.Warn("alert.send", fields...)

	if sendErr := s.provider.PostMessage(ctx, s.channel, text); sendErr != nil {
		// Alert delivery is best-effort; a broken webhook must not take the
		// pipeline down with it.
		s.log.Error("alert.send_failed",
			zap.String("code", code),
			zap.Error(sendErr),
		)
		return
	}
	pipeMetrics.IncAlertSent(string(level))
}

func (s *Service) allow(level Level, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(level) + ":" + code
	now := s.clock.Now()
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < suppressionWindow {
		return false
	}
	s.lastSent[key] = now
	return true
}
