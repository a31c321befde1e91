package badge

import (
	activitydomain "github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/badge/domain"
	"github.com/gatherly/gatherly/internal/badge/repository"
	"github.com/gatherly/gatherly/internal/badge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("badge.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(svc domain.Service) activitydomain.BadgeAwarder { return svc }),
)
