package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/events"
	"Wulin-Chronicle/server/internal/faction"
	"Wulin-Chronicle/server/internal/game"
	"Wulin-Chronicle/server/internal/infra"
	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/llm"
	"Wulin-Chronicle/server/internal/narrative"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/rng"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/storage"
	"Wulin-Chronicle/server/internal/store"
	"Wulin-Chronicle/server/internal/triggers"
	"Wulin-Chronicle/server/internal/web"
)

type repositories struct {
	factions  interfaces.FactionRepository
	chronicle interfaces.Chronicle
	archive   interfaces.WorldArchive
	saves     interfaces.SaveStore
	closers   []func() error
}

func main() {
	configPath := os.Getenv("JIANGHU_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.Env, cfg.Logging)

	repos := openRepositories(cfg, logger)
	defer func() {
		for _, closeFn := range repos.closers {
			if err := closeFn(); err != nil {
				logger.Warn().Err(err).Msg("failed to close storage")
			}
		}
	}()

	publisher := infra.NewNoopPublisher()
	if cfg.Messaging.NATSURL != "" {
		nc, err := infra.NewNATSPublisher(cfg.Messaging.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.Messaging.NATSURL).Msg("nats unavailable, events will not be published")
		} else {
			publisher = nc
			logger.Info().Str("url", cfg.Messaging.NATSURL).Msg("nats connected")
		}
	}
	defer publisher.Close()

	templates := prompts.NewTemplateEngine()
	if err := templates.InitializeDefaultTemplates(); err != nil {
		logger.Fatal().Err(err).Msg("failed to load prompt templates")
	}
	overrides, err := templates.LoadOverrides(cfg.Narrative.TemplatesDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.Narrative.TemplatesDir).Msg("failed to load template overrides")
	}
	if len(overrides) > 0 {
		logger.Info().Strs("templates", overrides).Msg("template overrides loaded")
	}

	llmClient := llm.NewClient(cfg.AI.LLM, logger)
	monitor := narrative.NewCostMonitor(logger, publisher, cfg.Messaging.CostSubject)
	rules := narrative.LoadRules(cfg.Narrative.RulesFile, logger)
	narrator := narrative.NewDispatcher(logger, llmClient, templates, rules, monitor, llmClient.DefaultModel())

	world := state.GenerateWorld(rng.New(cfg.World.Seed))
	gameStore := store.New(logger, state.New(state.NewPlayer(cfg.World.PlayerName), world))

	src := rng.NewTimeSeeded()
	factions := faction.NewSystem(logger, repos.factions, repos.chronicle, src, cfg.Faction, func() string {
		return gameStore.GetState().Time.Format()
	})
	engine := events.NewEngine(logger, events.Deps{
		Registry:       triggers.NewRegistry(logger),
		Catalog:        events.FileCatalog{Paths: cfg.Events.CatalogFiles, Logger: logger},
		Backend:        narrator,
		Templates:      templates,
		Dispatcher:     gameStore,
		Helpers:        triggers.Helpers{IsFactionWarHappening: factions.IsFactionWarHappening},
		RNG:            src,
		FactionContext: factions.WarReport,
	})

	session := game.NewSession(logger, *cfg, game.Deps{
		Store:     gameStore,
		Events:    engine,
		Factions:  factions,
		Narrator:  narrator,
		Chronicle: repos.chronicle,
		Archive:   repos.archive,
		Saves:     repos.saves,
		Publisher: publisher,
		RNG:       src,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Initialize(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session")
	}

	hub := web.NewStateHub(logger)
	go hub.Run(ctx)
	detach := hub.Attach(gameStore)
	defer detach()

	handler := web.NewHandler(logger, session, factions, templates, hub)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(cfg.AI.LLM.Timeout * 2),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdown(shutdownCtx, logger, srv, session)
	calls, tokens := monitor.Totals()
	logger.Info().Int64("llm_calls", calls).Int64("llm_tokens", tokens).Msg("server exited")
}

// shutdown drains HTTP requests before archiving, so the archive sees the
// final state.
func shutdown(ctx context.Context, logger zerolog.Logger, srv interface{ Shutdown(context.Context) error }, archiver interface{ ArchiveWorld(context.Context) error }) {
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := archiver.ArchiveWorld(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to archive world on shutdown")
	}
}

// openRepositories prefers MySQL for the world and Redis for save slots, and
// falls back to process memory for whichever is disabled or unreachable.
func openRepositories(cfg *config.Config, logger zerolog.Logger) repositories {
	mem := storage.NewMemoryStore()
	repos := repositories{factions: mem, chronicle: mem, archive: mem, saves: mem}

	if cfg.Database.MySQL.Enabled {
		mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
		if err != nil {
			logger.Warn().Err(err).Msg("mysql unavailable, using in-memory world store")
		} else {
			repos.factions, repos.chronicle, repos.archive = mysqlStore, mysqlStore, mysqlStore
			repos.closers = append(repos.closers, mysqlStore.Close)
			logger.Info().Str("host", cfg.Database.MySQL.Host).Msg("mysql connected")
		}
	}

	if cfg.Database.Redis.Enabled {
		redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, using in-memory save slots")
		} else {
			repos.saves = redisStore
			repos.closers = append(repos.closers, redisStore.Close)
			logger.Info().Str("host", cfg.Database.Redis.Host).Msg("redis connected")
		}
	}
	return repos
}
