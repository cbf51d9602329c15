package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogGorm "github.com/orandin/slog-gorm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/watchtower-eng/watchtower/automod/allowlist"
	"github.com/watchtower-eng/watchtower/automod/blocklist"
	"github.com/watchtower-eng/watchtower/automod/classify"
	"github.com/watchtower-eng/watchtower/automod/engine"
	"github.com/watchtower-eng/watchtower/automod/escalation"
	"github.com/watchtower-eng/watchtower/automod/ratelimit"
	"github.com/watchtower-eng/watchtower/automod/repeat"
	"github.com/watchtower-eng/watchtower/automod/scheduler"
	"github.com/watchtower-eng/watchtower/automod/verdictcache"
	"github.com/watchtower-eng/watchtower/util"
)

type Config struct {
	Logger               *slog.Logger
	DatabaseURL          string
	RedisURL             string
	OmniEndpoint         string
	OmniToken            string
	PerspectiveEndpoint  string
	PerspectiveKey       string
	FlagThreshold        float64
	PerspectiveThreshold float64
	ProviderRateLimit    int
	VerdictTTL           time.Duration
	AllowlistTTL         time.Duration
	BucketSize           int
	BucketRefillPerSec   float64
	BaseTimeout          time.Duration
	MaxTimeout           time.Duration
	EscalationWindow     time.Duration
	Workers              int
	DefaultAllowedActors []string
	DryRun               bool
}

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	scheduler  *scheduler.Scheduler
	allowStore *allowlist.GormStore
	allowCache *allowlist.Cache
	echo       *echo.Echo
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if config.DatabaseURL != ":memory:" {
		os.MkdirAll(filepath.Dir(config.DatabaseURL), os.ModePerm)
	}
	db, err := gorm.Open(sqlite.Open(config.DatabaseURL), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening allow-list database: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
		return nil, err
	}

	allowStore, err := allowlist.NewGormStore(db)
	if err != nil {
		return nil, err
	}
	allowCache := allowlist.NewCache(allowStore, 10_000, config.AllowlistTTL, logger)

	var cache verdictcache.CacheStore
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		csh, err := verdictcache.NewRedisCacheStore(config.RedisURL, config.VerdictTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis verdict cache: %v", err)
		}
		cache = csh
	} else {
		cache = verdictcache.NewMemCacheStore(20_000, config.VerdictTTL)
	}

	limiterCfg := ratelimit.DefaultConfig()
	if config.BucketSize > 0 {
		limiterCfg.MaxTokens = float64(config.BucketSize)
	}
	if config.BucketRefillPerSec > 0 {
		limiterCfg.RefillPerSecond = config.BucketRefillPerSec
	}

	escCfg := escalation.DefaultConfig()
	escCfg.FlagThreshold = config.FlagThreshold
	if config.BaseTimeout > 0 {
		escCfg.BaseTimeout = config.BaseTimeout
	}
	if config.MaxTimeout > 0 {
		escCfg.MaxTimeout = config.MaxTimeout
	}
	if config.EscalationWindow > 0 {
		escCfg.CalculationWindow = config.EscalationWindow
	}

	engCfg := engine.DefaultConfig()
	engCfg.FlagThreshold = config.FlagThreshold
	engCfg.DefaultAllowedActors = config.DefaultAllowedActors

	var act engine.Actuator = engine.NewLoggingActuator(logger)
	if !config.DryRun {
		// TODO: wire a platform REST actuator once the gateway service lands
		logger.Warn("no platform actuator configured, running in log-only mode")
	}

	eng := &engine.Engine{
		Logger:     logger,
		Config:     engCfg,
		AllowList:  allowCache,
		Blocklist:  blocklist.DefaultRegistry(),
		Repeats:    repeat.NewTracker(repeat.DefaultConfig(), logger),
		Limiter:    ratelimit.NewLimiter(limiterCfg, logger),
		Cache:      cache,
		Moderation: classifyOmni(config, logger),
		Attributes: classifyPerspective(config, logger),
		Escalation: escalation.NewCalculator(escCfg, logger),
		Actuator:   act,
	}

	workers := config.Workers
	if workers < 1 {
		workers = 8
	}
	sched := scheduler.NewScheduler(workers, "ingest", func(ctx context.Context, task *scheduler.Task) error {
		switch {
		case task.Message != nil:
			eng.ProcessMessage(ctx, task.Message.(*engine.ContentEvent))
		case task.Nickname != nil:
			eng.ProcessNickname(ctx, task.Nickname.(*engine.NicknameEvent))
		case task.Thread != nil:
			eng.ProcessThreadTitle(ctx, task.Thread.(*engine.ThreadEvent))
		}
		return nil
	})

	srv := &Server{
		logger:     logger,
		engine:     eng,
		scheduler:  sched,
		allowStore: allowStore,
		allowCache: allowCache,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/events", srv.HandleMessageEvent)
	e.POST("/nicknames", srv.HandleNicknameEvent)
	e.POST("/threads", srv.HandleThreadEvent)
	e.POST("/allowlist/:guild/toggle", srv.HandleAllowlistToggle)
	srv.echo = e

	return srv, nil
}

type GenericStatus struct {
	Status  string `json:"status"`
	Daemon  string `json:"daemon"`
	Version string `json:"version,omitempty"`
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "watchtower"})
}

func (srv *Server) HandleMessageEvent(c echo.Context) error {
	var evt engine.ContentEvent
	if err := c.Bind(&evt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event body")
	}
	if evt.ActorID == "" || evt.Ref.GuildID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actorId and ref.guildId are required")
	}
	if err := srv.scheduler.AddWork(c.Request().Context(), evt.ActorID, &scheduler.Task{Message: &evt}); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event queue unavailable")
	}
	return c.NoContent(http.StatusAccepted)
}

func (srv *Server) HandleNicknameEvent(c echo.Context) error {
	var evt engine.NicknameEvent
	if err := c.Bind(&evt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event body")
	}
	if evt.ActorID == "" || evt.GuildID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "actorId and guildId are required")
	}
	if err := srv.scheduler.AddWork(c.Request().Context(), evt.ActorID, &scheduler.Task{Nickname: &evt}); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event queue unavailable")
	}
	return c.NoContent(http.StatusAccepted)
}

func (srv *Server) HandleThreadEvent(c echo.Context) error {
	var evt engine.ThreadEvent
	if err := c.Bind(&evt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event body")
	}
	if evt.ThreadID == "" || evt.GuildID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "threadId and guildId are required")
	}
	key := evt.OwnerID
	if key == "" {
		key = evt.ThreadID
	}
	if err := srv.scheduler.AddWork(c.Request().Context(), key, &scheduler.Task{Thread: &evt}); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event queue unavailable")
	}
	return c.NoContent(http.StatusAccepted)
}

type allowlistToggleRequest struct {
	Type      string `json:"type"`
	Snowflake string `json:"snowflake"`
}

type allowlistToggleResponse struct {
	Allowed bool `json:"allowed"`
}

func (srv *Server) HandleAllowlistToggle(c echo.Context) error {
	guildID := c.Param("guild")
	var req allowlistToggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	switch req.Type {
	case allowlist.TypeUser, allowlist.TypeChannel, allowlist.TypeRole:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "type must be user, channel, or role")
	}
	if req.Snowflake == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "snowflake is required")
	}

	allowed, err := srv.allowStore.Toggle(c.Request().Context(), guildID, req.Type, req.Snowflake)
	if err != nil {
		srv.logger.Error("allow-list toggle failed", "guild", guildID, "err", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "allow-list update failed")
	}
	srv.allowCache.Invalidate(guildID)
	return c.JSON(200, allowlistToggleResponse{Allowed: allowed})
}

// Run serves the event API until SIGINT/SIGTERM, then drains the scheduler
// so queued events finish before exit.
func (srv *Server) Run(ctx context.Context, bind string) error {
	go srv.engine.Repeats.RunJanitor(ctx)
	go srv.engine.Limiter.RunJanitor(ctx)
	go srv.engine.Escalation.RunJanitor(ctx)

	go func() {
		srv.logger.Info("starting event API", "bind", bind)
		if err := srv.echo.Start(bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("event API shutting down unexpectedly", "err", err)
		}
	}()

	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exitSignals
	srv.logger.Info("received OS exit signal", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		srv.logger.Error("event API shutdown error", "err", err)
	}

	srv.scheduler.Shutdown()
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func classifyOmni(config Config, logger *slog.Logger) engine.ModerationProvider {
	rps := config.ProviderRateLimit
	if rps < 1 {
		rps = 5
	}
	if config.OmniToken == "" {
		logger.Warn("no moderation provider token configured, provider disabled")
	}
	return classify.NewOmniClient(util.RobustHTTPClient(), config.OmniEndpoint, config.OmniToken, rps)
}

func classifyPerspective(config Config, logger *slog.Logger) engine.AttributeProvider {
	rps := config.ProviderRateLimit
	if rps < 1 {
		rps = 5
	}
	if config.PerspectiveKey == "" {
		logger.Warn("no attribute provider key configured, provider disabled")
	}
	return classify.NewPerspectiveClient(util.RobustHTTPClient(), config.PerspectiveEndpoint, config.PerspectiveKey, config.PerspectiveThreshold, rps)
}
