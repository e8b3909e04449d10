package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PagedAPI/internal/auth"
	"PagedAPI/internal/cache"
	"PagedAPI/internal/config"
	"PagedAPI/internal/db"
	"PagedAPI/internal/handler"
	"PagedAPI/internal/listing"
	"PagedAPI/internal/logger"
	"PagedAPI/internal/resource"
	"PagedAPI/internal/router"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	migrateFlag := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := logger.Init("."); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.SetDebug(*debugFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateFlag {
		if err := db.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
			fatal("migrations_failed", err)
		}
	}

	pg, err := db.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		fatal("postgres_init_failed", err)
	}
	defer pg.Close()
	logger.Info("postgres_connected", nil)

	registry, err := resource.LoadDir(cfg.ResourcesDir)
	if err != nil {
		fatal("registry_init_failed", err)
	}
	registry.Bind(pg)
	logger.Info("resources_initialized", map[string]any{"count": len(registry)})

	lister := &listing.Lister{HrefPrefix: cfg.HrefPrefix}
	switch {
	case cfg.RedisAddr != "":
		client, err := db.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			fatal("redis_init_failed", err)
		}
		defer client.Close()
		redisCache := cache.NewRedis(client, cfg.PageCache.TTL)
		// resource definitions may have changed since the pages were cached
		if err := redisCache.Flush(ctx, ""); err != nil {
			logger.Warn("page_cache_flush_failed", map[string]any{"error": err.Error()})
		}
		lister.Cache = redisCache
		logger.Info("page_cache_redis", map[string]any{"addr": cfg.RedisAddr, "ttl_sec": cfg.PageCache.TTL.Seconds()})
	case cfg.PageCache.MaxBytes > 0:
		lister.Cache = cache.NewMemory(cfg.PageCache.TTL, cfg.PageCache.MaxBytes)
		logger.Info("page_cache_memory", map[string]any{"max_bytes": cfg.PageCache.MaxBytes})
	default:
		logger.Info("page_cache_disabled", nil)
	}

	var validator *auth.JWTValidator
	if cfg.Auth.Enabled {
		if validator, err = auth.NewJWTValidator(cfg.Auth.JWT); err != nil {
			fatal("auth_init_failed", err)
		}
		logger.Info("auth_enabled", map[string]any{"alg": cfg.Auth.JWT.ValidationType})
	}

	mux := router.InitRoutes(cfg, &handler.Collection{
		Registry: registry,
		Paging:   cfg.Paging,
		Lister:   lister,
	}, validator)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server_start", map[string]any{"port": cfg.Port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("server_error", err)
	}
	logger.Info("server_stopped", nil)
}

func fatal(msg string, err error) {
	logger.Error(msg, map[string]any{"error": err.Error()})
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
