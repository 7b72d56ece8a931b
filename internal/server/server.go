package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"quester/config"
	"quester/internal/agent"
	"quester/internal/memory"
	"quester/internal/store"
	"quester/internal/telemetry"
	"quester/internal/workflow"
	"quester/provider"
	"quester/tools/webfetch"
	"quester/tools/websearch"
)

// Run assembles every dependency from config and serves the HTTP API until
// the process exits.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}

	origins := cfg.Server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	// Storage: snapshot store per driver, episodes in Postgres when it is
	// available and in a process-local bleve index otherwise.
	var (
		snapshots workflow.SnapshotStore
		episodes  memory.EpisodeStore
		pg        *store.Store
		rdb       *redis.Client
	)
	switch cfg.Storage.Driver {
	case "postgres":
		if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrating: %w", err)
		}
		st, err := store.New(ctx, cfg.Storage.Postgres)
		if err != nil {
			return err
		}
		pg = st
		snapshots = st
		episodes = st
	case "redis":
		rs, err := store.NewRedis(ctx, cfg.Storage.Redis)
		if err != nil {
			return err
		}
		rdb = rs.Client()
		snapshots = rs
		episodes = memory.NewBleveStore()
	default:
		snapshots = workflow.NewMemoryStore()
		episodes = memory.NewBleveStore()
	}

	tele := telemetry.New(cfg.Telemetry)

	llm, err := provider.New(cfg.LLM)
	if err != nil {
		return err
	}
	searcher, err := websearch.New(websearch.Provider(cfg.Search.Provider), cfg.Search.APIKey(), cfg.Search.Timeout)
	if err != nil {
		return err
	}

	var advisor memory.Advisor = memory.NoopAdvisor{}
	if cfg.Memory.Episodic.Enabled {
		model := cfg.LLM.Routing.Memory
		if model == "" {
			model = cfg.LLM.Routing.Fallback
		}
		advisor = memory.NewEpisodicAdvisor(episodes, llm, model,
			memory.WithThresholds(cfg.Memory.Episodic.MinEpisodes, cfg.Memory.Episodic.ConfidenceThreshold),
			memory.WithTopK(cfg.Memory.Episodic.SearchTopK))
	}

	agentOpts := []agent.Option{
		agent.WithTelemetry(tele),
		agent.WithLogger(log.New(log.Writer(), "[AGENT] ", log.LstdFlags)),
	}
	if cfg.Search.FetchContent {
		fetchers := webfetch.Chain{webfetch.Static{Timeout: cfg.Search.Timeout, MaxChars: cfg.Search.FetchMaxChars}}
		if cfg.Search.RenderFallback {
			fetchers = append(fetchers, webfetch.Rendered{Timeout: cfg.Search.Timeout, MaxChars: cfg.Search.FetchMaxChars})
		}
		agentOpts = append(agentOpts, agent.WithFetcher(fetchers))
	}
	ag := agent.New(cfg, llm, searcher, advisor, snapshots, agentOpts...)

	api := e.Group("/api")
	if cfg.Server.JWTSecret != "" {
		if pg == nil {
			return fmt.Errorf("auth requires storage.driver=postgres")
		}
		auth := &AuthHandler{Store: pg, Secret: []byte(cfg.Server.JWTSecret)}
		auth.Register(api.Group("/auth"))
		api.Use(authExcept(auth.Secret, "/api/auth/"))
	}

	(&AgentHandler{Agent: ag, Logger: baseLogger}).Register(api)
	(&ThreadsHandler{Agent: ag}).Register(api)

	if p, ok := snapshots.(pruner); ok && cfg.Server.SuspendedRetention > 0 {
		janitor, err := NewJanitor(p, cfg.Server.JanitorSchedule, cfg.Server.SuspendedRetention, rdb,
			log.New(log.Writer(), "[JANITOR] ", log.LstdFlags))
		if err != nil {
			return fmt.Errorf("janitor schedule: %w", err)
		}
		janitor.Start()
		defer janitor.Stop()
	}

	return e.Start(cfg.Server.Address)
}

// authExcept applies JWT validation to every route except the given prefix,
// so login and signup stay reachable.
func authExcept(secret []byte, skipPrefix string) echo.MiddlewareFunc {
	authed := withAuth(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := authed(next)
		return func(c echo.Context) error {
			if len(c.Path()) >= len(skipPrefix) && c.Path()[:len(skipPrefix)] == skipPrefix {
				return next(c)
			}
			return guarded(c)
		}
	}
}
