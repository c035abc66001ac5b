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

	"github.com/File-Sharing-BondBridg/Link-Service/cmd/middleware"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/api"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/configuration"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/logger"
	natsroutes "github.com/File-Sharing-BondBridg/Link-Service/internal/nats"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/sharing"
	"github.com/File-Sharing-BondBridg/Link-Service/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

const serviceName = "link-service"

func main() {
	cfg, err := configuration.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *configuration.Config) error {
	log := logger.With("main")

	if cfg.Tracing {
		tracer.Start(tracer.WithService(serviceName))
		defer tracer.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("close failed")
			}
		}
	}()

	var db *sqlx.DB
	if cfg.Registry == "postgres" || cfg.Links.Store == "postgres" {
		conn, err := storage.Connect(ctx, cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		db = conn
		closers = append(closers, db.Close)
	}

	registry, err := openRegistry(ctx, cfg, db)
	if err != nil {
		return err
	}

	links, closeLinks, err := openLinkStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	closers = append(closers, closeLinks)

	minioSvc, err := services.NewMinioService(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey,
		cfg.MinIO.SecretKey, cfg.MinIO.BucketName, cfg.MinIO.UseSSL)
	if err != nil {
		return err
	}

	verifier, err := middleware.InitAuth(ctx, cfg.KeycloakURL)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps := handlers.Deps{
		Registry:       registry,
		Objects:        minioSvc,
		Issuer:         sharing.NewIssuer(links, cfg.Server.PublicBaseURL),
		Redeemer:       sharing.NewRedeemer(links),
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
	}

	if cfg.ScanEnabled {
		scanner := services.NewScanner(cfg.ClamAVURL)
		if err := scanner.Ping(); err != nil {
			log.Warn().Err(err).Msg("ClamAV not reachable, scans will be retried on redelivery")
		}
		deps.Scanner = scanner
	}

	bus, err := services.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, events disabled")
	} else {
		deps.Events = bus
		closers = append(closers, func() error { bus.Close(); return nil })
	}

	h := handlers.New(deps)

	if bus != nil {
		if _, err := natsroutes.NewClient(bus, serviceName).SubscribeAll(natsroutes.Routes(h)); err != nil {
			return fmt.Errorf("failed to subscribe NATS routes: %w", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(gintrace.Middleware(serviceName))
	}
	api.RegisterRoutes(r, h, middleware.RequireAuth(verifier))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("link_store", cfg.Links.Store).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRegistry(ctx context.Context, cfg *configuration.Config, db *sqlx.DB) (storage.Registry, error) {
	if cfg.Registry == "memory" {
		return storage.NewMemoryRegistry(), nil
	}
	registry := storage.NewPostgresRegistry(db)
	if err := registry.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate registry: %w", err)
	}
	return registry, nil
}

// openLinkStore builds the LinkStore chosen by LINK_STORE. db is only used
// for the "postgres" backend.
func openLinkStore(ctx context.Context, cfg *configuration.Config, db *sqlx.DB) (sharing.LinkStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Links.Store {
	case "postgres":
		store := storage.NewPostgresLinkStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate share links: %w", err)
		}
		return store, noop, nil
	case "sharded":
		store, err := storage.ConnectPostgresShards(ctx, cfg.Database.Shards())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "redis":
		client, err := storage.NewRedisClient(ctx, cfg.Links.RedisAddr, cfg.Links.RedisPassword, cfg.Links.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedisLinkStore(client), client.Close, nil
	case "badger":
		store, err := storage.OpenBadgerLinkStore(cfg.Links.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "local":
		store, err := storage.OpenLocalLinkStore(cfg.Links.LocalPath)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown link store %q", cfg.Links.Store)
	}
}
