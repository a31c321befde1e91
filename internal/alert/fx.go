package alert

import (
	"github.com/gatherly/gatherly/internal/clock"
	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("alert",
	fx.Provide(ProvideNotifier),
)

func ProvideNotifier(cfg config.Config, clk clock.Clock, log *zap.Logger) Notifier {
	var provider slack.Provider
	if cfg.SlackWebhookURL != "" {
		provider = slack.NewWebhookProvider(cfg.SlackWebhookURL)
	} else {
		provider = &slack.NoOpProvider{}
	}
	return New(provider, cfg.SlackChannel, clk, log)
}
