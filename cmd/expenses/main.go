package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"expenses/internal/cache"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/export"
	apphttp "expenses/internal/http"
	applog "expenses/internal/log"
	"expenses/internal/session"
	"expenses/internal/validation"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cli.LoadEnvFile()

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithFile(*configFile))
	}
	cfg, err := cli.LoadAndValidateConfig(opts...)
	if err != nil {
		cli.Fatal("Configuration validation failed", err)
	}

	logger, err := cli.SetupLogger(cfg)
	if err != nil {
		cli.Fatal("Logger setup failed", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	validator, err := validation.New()
	if err != nil {
		return fmt.Errorf("compile entry schema: %w", err)
	}

	store := session.NewStore(session.Options{
		TTL:           cfg.SessionTTL,
		MaxSessions:   cfg.SessionMax,
		InitialFilter: cfg.Filter(),
		ResetOnSubmit: cfg.FormResetOnSubmit,
	})

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Validator:          validator,
		Store:              store,
		Exporter:           export.NewExporter(logger.WithComponent(applog.ComponentExport).Slog()),
		Logger:             logger,
		DeleteMode:         cfg.DeleteMode,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	cacheLog := logger.WithComponent(applog.ComponentCache)
	caches := cache.NewManager()
	caches.Register(store.Cleaner())
	caches.OnSweep(func(removed int) {
		if removed > 0 {
			cacheLog.Debug("Expired workspaces swept", "removed", removed)
		}
	})

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting expenses server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"delete_mode", cfg.DeleteMode,
		"initial_filter", cfg.InitialFilter,
		"session_ttl", cfg.SessionTTL.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return caches.Run(gctx, cfg.SessionCleanupInterval)
	})
	return g.Wait()
}
