package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/config"
	"github.com/ideaflow/server/internal/database"
	"github.com/ideaflow/server/internal/middleware"
	"github.com/ideaflow/server/internal/modules/gateway/events"
	pkgcron "github.com/ideaflow/server/internal/pkg/cron"
	"github.com/ideaflow/server/internal/pkg/metrics"
	pkgredis "github.com/ideaflow/server/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	rc      *pkgredis.Client
	hub     *events.Hub
	metrics *metrics.Collector
	sched   *pkgcron.Scheduler
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// New initializes the application: config → DB → Redis → metrics → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		if cfg.Quota.Store == config.QuotaStoreRedis {
			return nil, fmt.Errorf("redis: %w", err)
		}
		logger.Warn("redis unavailable; events stay in-process, rate limits are off", zap.Error(err))
		rc = nil
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	collector := metrics.NewCollector()

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(collector))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	hub := events.NewHub(rc, logger.Named("events"))
	go hub.Run(ctx)

	sched := pkgcron.New(logger)
	registerCronJobs(sched, db)
	sched.Start(ctx)

	app := &App{
		cfg:     cfg,
		router:  router,
		db:      db,
		rc:      rc,
		hub:     hub,
		metrics: collector,
		sched:   sched,
		logger:  logger,
		cancel:  cancel,
	}
	app.registerRoutes()
	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		c.AllowOriginFunc = func(origin string) bool { return originAllowed(patterns, origin) }
	} else {
		c.AllowOriginFunc = func(string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background goroutines and closes connections.
func (a *App) Shutdown() {
	a.cancel()
	if a.rc != nil {
		_ = a.rc.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
