package app

import (
	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/config"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/modules/auth/user"
	"github.com/ideaflow/server/internal/modules/content/conversation"
	"github.com/ideaflow/server/internal/modules/content/idea"
	"github.com/ideaflow/server/internal/modules/content/note"
	"github.com/ideaflow/server/internal/modules/gateway/events"
	"github.com/ideaflow/server/internal/modules/processing/ai"
	"github.com/ideaflow/server/internal/modules/processing/completion"
	"github.com/ideaflow/server/internal/modules/processing/organize"
	"github.com/ideaflow/server/internal/modules/system/health"
	"github.com/ideaflow/server/internal/modules/system/quota"
	"github.com/redis/go-redis/v9"
)

func (a *App) registerRoutes() {
	authMW := middleware.Auth(a.db)

	var rdb *redis.Client
	if a.rc != nil {
		rdb = a.rc.Raw()
	}
	idempotence := middleware.Idempotence(rdb)

	var store quota.Store = quota.NewDBStore(a.db)
	if a.cfg.Quota.Store == config.QuotaStoreRedis && a.rc != nil {
		store = quota.NewRedisStore(a.rc)
	}
	governor := quota.NewGovernor(store, a.cfg.Quota.DailyRequests, a.cfg.Timezone, a.metrics, a.logger.Named("quota"))

	gateways := completion.NewSet(a.cfg.AI, a.metrics, a.logger.Named("completion"))
	aiSvc := ai.NewService(
		ai.CompletersFromSet(gateways),
		governor,
		ai.NewSaveIntentDetector(a.cfg.AI.SaveIntent),
		a.metrics,
		a.logger.Named("ai"),
	)

	ideaSvc := idea.NewService(a.db, aiSvc, a.hub, a.logger)
	turnSvc := conversation.NewService(a.db, ideaSvc, a.hub, a.logger)
	noteSvc := note.NewService(a.db, ideaSvc, a.hub, a.logger)
	organizeSvc := organize.NewService(ideaSvc, turnSvc, noteSvc, aiSvc, a.logger.Named("organize"))

	a.router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	api := a.router.Group("/api/v1")
	health.RegisterRoutes(api, health.Deps{
		DB:        a.db,
		Redis:     a.rc,
		Scheduler: a.sched,
		LogDir:    a.cfg.LogDir(),
	}, authMW)

	user.NewHandler(user.NewService(a.db, a.logger)).
		RegisterRoutes(api, authMW, middleware.RateLimit(rdb, middleware.LoginRateLimit, a.logger))
	idea.NewHandler(ideaSvc).RegisterRoutes(api, authMW)
	conversation.NewHandler(turnSvc).RegisterRoutes(api, authMW)
	note.NewHandler(noteSvc).RegisterRoutes(api, authMW, idempotence)
	ai.NewHandler(aiSvc).RegisterRoutes(api, authMW)
	organize.NewHandler(organizeSvc).RegisterRoutes(api, authMW, middleware.HeaderIdempotence(rdb))
	quota.NewHandler(governor).RegisterRoutes(api, authMW)
	events.NewHandler(a.hub).RegisterRoutes(api, authMW)
}
