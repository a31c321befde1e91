package ranking

import (
	activitydomain "github.com/gatherly/gatherly/internal/activity/domain"
	"github.com/gatherly/gatherly/internal/ranking/domain"
	"github.com/gatherly/gatherly/internal/ranking/service"
	"github.com/gatherly/gatherly/internal/ranking/store"
	"go.uber.org/fx"
)

var Module = fx.Module("ranking.service",
	fx.Provide(store.NewRedisStore),
	fx.Provide(func(s *store.RedisStore) domain.Store { return s }),
	fx.Provide(service.NewReader),
	fx.Provide(service.NewSync),
	fx.Provide(func(svc domain.SyncService) activitydomain.RankingUpdater { return svc }),
)
