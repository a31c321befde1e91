package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gatherly/gatherly/internal/activity"
	activitydomain "github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/alert"
	"github.com/gatherly/gatherly/internal/badge"
	badgedomain "github.com/gatherly/gatherly/internal/badge/domain"
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/lock"
	"github.com/gatherly/gatherly/internal/observability/logger"
	"github.com/gatherly/gatherly/internal/observability/metrics"
	"github.com/gatherly/gatherly/internal/ranking"
	"github.com/gatherly/gatherly/internal/scheduler"
	"github.com/gatherly/gatherly/pkg/db"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		fx.Provide(LoggerConfig),
		fx.Provide(logger.New),
		fx.Provide(RegisterSnowflake),
		fx.Provide(OpenDatabase),
		fx.Provide(NewRedisClient),
		clock.Module,

		lock.Module,
		alert.Module,
		activity.Module,
		badge.Module,
		ranking.Module,
		scheduler.Module,

		fx.Invoke(InitMetrics),
		fx.Invoke(Migrate),
		fx.Invoke(StartHTTPServer),
	)
	app.Run()
}

func LoggerConfig(cfg config.Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
		Version:     cfg.AppVersion,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,

		IncludeCaller:       true,
		IncludeStackOnError: true,
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func OpenDatabase(cfg config.Config) (*gorm.DB, error) {
	return db.Open(cfg)
}

func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func InitMetrics(cfg config.Config) {
	metrics.PipelineWithConfig(metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&activitydomain.OutboxEvent{},
		&activitydomain.FailedEvent{},
		&activitydomain.UserActivity{},
		&activitydomain.UserPoints{},
		&badgedomain.Badge{},
		&badgedomain.UserBadge{},
	)
}

// StartHTTPServer exposes metrics and a liveness probe. The worker has no
// other HTTP surface.
func StartHTTPServer(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
