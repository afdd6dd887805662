// @title                       Fleet API
// @version                     1.0
// @description                 Account sessions and vehicle fleet management.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/api"
	"github.com/fleetwise/fleet-api/internal/api/handler"
	"github.com/fleetwise/fleet-api/internal/core/cache"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/core/security"
	"github.com/fleetwise/fleet-api/internal/core/service"
	"github.com/fleetwise/fleet-api/internal/infrastructure/db/memory"
	"github.com/fleetwise/fleet-api/internal/infrastructure/db/mongo"
	"github.com/fleetwise/fleet-api/internal/infrastructure/db/redis"
	"github.com/fleetwise/fleet-api/internal/infrastructure/queue"
	"github.com/fleetwise/fleet-api/internal/pkg/config"
	"github.com/fleetwise/fleet-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is not configured yet; fall back to a bare zerolog logger.
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "fleet-api",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()
	if err := mongo.EnsureIndexes(ctx, db, cfg.Audit.Retention); err != nil {
		return err
	}

	checks := map[string]handler.Check{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}

	var store ports.Cache
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return err
		}
		defer closeRedis(rdb, log)
		store = redis.NewCache(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		log.Warn().Msg("using in-process cache; entries are not shared between instances")
		store = memory.NewCache()
	}
	layer := cache.NewLayer(store, logger.Component("cache"))

	// --- Security ---
	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	}, nil)
	if err != nil {
		return err
	}

	// --- Repositories and audit trail ---
	accounts := mongo.NewAccountRepository(db)
	vehicles := mongo.NewVehicleRepository(db)

	audit := queue.NewDispatcher(cfg.Audit.Workers, mongo.NewSessionEventRepository(db), logger.Component("audit"))
	audit.Start(ctx)

	// --- Services ---
	authService := service.NewAuthService(service.AuthDeps{
		Accounts: accounts,
		Sessions: accounts,
		Hasher:   security.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:   tokens,
		Cache:    layer,
		Audit:    audit,
		Log:      logger.Component("auth"),
	})
	profileService := service.NewProfileService(accounts, vehicles, layer, logger.Component("profile"))
	vehicleService := service.NewVehicleService(vehicles, accounts, layer, logger.Component("vehicle"))

	e := api.NewRouter(api.Deps{
		Auth:     authService,
		Profiles: profileService,
		Vehicles: vehicleService,
		Tokens:   tokens,
		Checks:   checks,
		Log:      logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("cache", cfg.Cache.Driver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := audit.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("audit queue not drained")
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}

func closeRedis(rdb *goredis.Client, log zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
}
