package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/devicelink/modules/linkerapi"
	"github.com/dmitrymomot/devicelink/pkg/config"
	"github.com/dmitrymomot/devicelink/pkg/fanout"
	"github.com/dmitrymomot/devicelink/pkg/httpserver"
	"github.com/dmitrymomot/devicelink/pkg/linker"
	"github.com/dmitrymomot/devicelink/pkg/logger"
	"github.com/dmitrymomot/devicelink/pkg/mongo"
	"github.com/dmitrymomot/devicelink/pkg/pg"
	"github.com/dmitrymomot/devicelink/pkg/protocol"
	"github.com/dmitrymomot/devicelink/pkg/redis"
)

const serviceName = "devicelink"

type appConfig struct {
	AppEnv string `env:"APP_ENV" envDefault:"development"`

	// StoreDriver selects the credential store: memory, mongo or postgres.
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	// BusDriver selects the event fanout: memory or redis.
	BusDriver string `env:"BUS_DRIVER" envDefault:"memory"`

	HTTP   httpserver.Config
	Linker linker.Config
	Sim    protocol.SimConfig
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(logger.WithEnvironment(cfg.AppEnv, serviceName))
	logger.SetAsDefault(log)

	ctx := context.Background()

	bus, readiness, cleanupBus := newBus(ctx, cfg, log)
	defer cleanupBus()

	store, storeChecks, cleanupStore := newStore(ctx, cfg, log)
	defer cleanupStore()
	readiness = append(readiness, storeChecks...)

	// Session-scoped log records also reach that session's stream observers.
	appLog := slog.New(fanout.NewLogHandler(log.Handler(), bus))

	mgr := linker.NewManager(store, bus, protocol.SimDialer(cfg.Sim),
		linker.WithConfig(cfg.Linker),
		linker.WithLogger(appLog),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			log.Error("session manager shutdown incomplete", logger.Error(err))
		}
	}()

	api := linkerapi.NewService(mgr, bus, appLog)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log, readiness...))
	r.Mount("/api/sessions", api.Handle())

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("http server started", slog.String("addr", cfg.HTTP.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("http server stopped")
		}),
	)
	if err := srv.Run(ctx, r); err != nil {
		log.Error("http server failed", logger.Error(err))
		os.Exit(1)
	}
}

func newBus(ctx context.Context, cfg appConfig, log *slog.Logger) (fanout.Bus, []func(context.Context) error, func()) {
	switch cfg.BusDriver {
	case "redis":
		var rcfg redis.Config
		config.MustLoad(&rcfg)
		client, err := redis.Connect(ctx, rcfg)
		if err != nil {
			fatal(log, "redis connection failed", err)
		}
		bus := fanout.NewRedisBus(client)
		cleanup := func() {
			_ = bus.Close()
			_ = client.Close()
		}
		return bus, []func(context.Context) error{redis.Healthcheck(client)}, cleanup
	default:
		bus := fanout.NewMemoryBus()
		return bus, nil, func() { _ = bus.Close() }
	}
}

func newStore(ctx context.Context, cfg appConfig, log *slog.Logger) (linker.Store, []func(context.Context) error, func()) {
	switch cfg.StoreDriver {
	case "mongo":
		var mcfg mongo.Config
		config.MustLoad(&mcfg)
		client, err := mongo.New(ctx, mcfg)
		if err != nil {
			fatal(log, "mongo connection failed", err)
		}
		store := linker.NewMongoStore(client.Database(mcfg.DatabaseName))
		cleanup := func() { _ = client.Disconnect(context.Background()) }
		return store, []func(context.Context) error{mongo.Healthcheck(client)}, cleanup
	case "postgres":
		var pcfg pg.Config
		config.MustLoad(&pcfg)
		pool, err := pg.Connect(ctx, pcfg)
		if err != nil {
			fatal(log, "postgres connection failed", err)
		}
		if err := pg.Migrate(ctx, pool, pcfg, log); err != nil {
			pool.Close()
			fatal(log, "postgres migrations failed", err)
		}
		return linker.NewPostgresStore(pool), []func(context.Context) error{pg.Healthcheck(pool)}, pool.Close
	default:
		return linker.NewMemoryStore(), nil, func() {}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, logger.Error(err))
	os.Exit(1)
}
