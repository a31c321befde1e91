package activity

import (
	"github.com/gatherly/gatherly/internal/activity/repository"
	"github.com/gatherly/gatherly/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.ProvideOutbox),
	fx.Provide(repository.ProvideFailed),
	fx.Provide(repository.ProvideActivity),
	fx.Provide(repository.ProvidePoints),
	fx.Provide(service.NewWriter),
	fx.Provide(service.NewProcessor),
	fx.Provide(service.NewFailedEvents),
	fx.Provide(service.NewRelay),
)
