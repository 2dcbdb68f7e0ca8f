package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jobmill/jobmill/pkg/api"
	"github.com/jobmill/jobmill/pkg/config"
	"github.com/jobmill/jobmill/pkg/health"
	"github.com/jobmill/jobmill/pkg/jobs"
	"github.com/jobmill/jobmill/pkg/observability/logger"
	"github.com/jobmill/jobmill/pkg/scheduler"
	"github.com/jobmill/jobmill/pkg/store/postgres"
	"github.com/jobmill/jobmill/pkg/version"
)

const (
	serviceName      = "jobmill"
	envPrefix        = "JOBMILL"
	shutdownGrace    = 15 * time.Second
	healthTimeout    = 3 * time.Second
	schedulerStopMax = 10 * time.Second
)

// NewRootCommand builds the jobmill CLI with serve and version subcommands.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Job scheduling service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config-file", "c", "", "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(serviceName)
			fmt.Printf("Service:    %s\n", info.Service)
			fmt.Printf("Version:    %s\n", info.Version)
			fmt.Printf("Commit:     %s\n", info.Commit)
			fmt.Printf("Build Time: %s\n", info.BuildTime)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfigAndLogger(cfgPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, log)
		},
	}
	serveCmd.Flags().Int("port", 0, "override http.port")
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

// loadConfigAndLogger resolves configuration (flags > env > file > defaults)
// and builds the service logger from it.
func loadConfigAndLogger(cfgPath string, flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	loader := config.NewViperLoader(cfgPath, envPrefix)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cfg, flags)
	if err := loader.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	level, _ := logger.ParseLogLevel(cfg.Logging.Level)
	format, _ := logger.ParseLogFormat(cfg.Logging.Format)
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log.With("service", cfg.Service.Name), nil
}

func applyFlagOverrides(cfg *config.Config, flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	if flags.Changed("port") {
		if port, err := flags.GetInt("port"); err == nil {
			cfg.HTTP.Port = port
		}
	}
}

// runServe wires the store, scheduler and API together and blocks until
// SIGINT/SIGTERM or a fatal server error.
func runServe(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter, err := postgres.NewAdapter(postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer adapter.Close()

	if err := adapter.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	repo, err := jobs.NewPostgresRepository(adapter)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	lockProvider, err := newLockProvider(cfg, log)
	if err != nil {
		return fmt.Errorf("init lock provider: %w", err)
	}
	defer lockProvider.Close()

	runtime, err := scheduler.NewRuntime(repo, repo, lockProvider, log, scheduler.Config{
		PollInterval: cfg.Scheduler.SweepInterval,
		LockTTL:      cfg.Scheduler.LockTTL,
	})
	if err != nil {
		return fmt.Errorf("init scheduler runtime: %w", err)
	}

	var registrar jobs.Registrar
	if cfg.Scheduler.Enabled {
		registrar = runtime
	}
	service, err := jobs.NewService(adapter, repo, registrar, log)
	if err != nil {
		return fmt.Errorf("init job service: %w", err)
	}

	registry := health.NewRegistry()
	registry.Register(health.NewPingChecker("liveness"))
	registry.Register(health.NewDatabaseChecker("database", adapter))
	registry.Register(scheduler.NewLockProviderHealthChecker("scheduler-lock-provider", lockProvider, healthTimeout))

	handler, err := api.NewHandler(service, registry, log)
	if err != nil {
		return fmt.Errorf("init api handler: %w", err)
	}

	routerCfg := api.RouterConfig{}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimitRPS = cfg.RateLimit.RPS
		routerCfg.RateLimitBurst = cfg.RateLimit.Burst
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler.Router(routerCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	if cfg.Scheduler.Enabled {
		go func() {
			if err := runtime.Start(ctx); err != nil {
				log.Error("scheduler runtime stopped", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	if cfg.Scheduler.Enabled {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), schedulerStopMax)
		defer cancelStop()
		if err := runtime.Stop(stopCtx); err != nil {
			log.Error("scheduler runtime shutdown failed", "error", err)
		}
	}

	log.Info("shutdown complete")
	return nil
}

func newLockProvider(cfg *config.Config, log logger.Logger) (scheduler.LockProvider, error) {
	switch cfg.Scheduler.LockProvider {
	case config.LockProviderRedis:
		return scheduler.NewRedisLockProvider(scheduler.RedisLockProviderConfig{
			URL: cfg.Redis.URL,
		}, log)
	case config.LockProviderPostgres:
		return scheduler.NewPostgresLockProvider(scheduler.PostgresLockProviderConfig{
			URL: cfg.Database.URL,
		}, log)
	case config.LockProviderRuntime:
		return scheduler.NewRuntimeLockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown scheduler.lock_provider %q", cfg.Scheduler.LockProvider)
	}
}
