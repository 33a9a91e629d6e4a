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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"walkpack/internal/access"
	"walkpack/internal/admission"
	"walkpack/internal/api"
	"walkpack/internal/audit"
	"walkpack/internal/availability"
	"walkpack/internal/config"
	"walkpack/internal/database"
	"walkpack/internal/db"
	"walkpack/internal/eligibility"
	"walkpack/internal/events"
	"walkpack/internal/ledger"
	"walkpack/internal/metrics"
	"walkpack/internal/ratelimit"
)

func main() {
	cfg, err := config.Load(os.Getenv("WALKPACK_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid booking timezone")
	}

	store, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncDirectory := func(dir *config.Directory) {
		if err := store.SyncDirectory(ctx, dir); err != nil {
			logger.Error().Err(err).Msg("directory sync failed")
			return
		}
		logger.Info().Str("directory", dir.String()).Msg("directory synced")
	}
	if cfg.Directory.Watch {
		if err := config.WatchDirectory(ctx, cfg.Directory.Path, cfg.DirectoryWatchInterval(), &logger, syncDirectory); err != nil {
			logger.Fatal().Err(err).Msg("load directory error")
		}
	} else {
		dir, err := config.LoadDirectory(cfg.Directory.Path)
		if err != nil {
			logger.Fatal().Err(err).Msg("load directory error")
		}
		syncDirectory(dir)
	}

	var rdb *redis.Client
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		limiter = ratelimit.NewFailoverLimiter(ratelimit.NewRedisLimiter(rdb, ""), limiter, &logger)
	}

	bus := events.NewEventBus(logger)
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.CountEvents(bus)
	}

	gate := eligibility.NewGate(store, logger)
	accessSvc := access.NewService(store, logger)
	deps := api.Deps{
		Ledger: ledger.New(store, gate, accessSvc, limiter, bus, ledger.Options{
			Location:      loc,
			RequestLimit:  cfg.RequestLimit(),
			RequestWindow: cfg.RequestWindow(),
		}, &logger),
		Admission:    admission.NewController(store, accessSvc, bus, cfg.AdmissionTimeout(), &logger),
		Availability: availability.NewView(store, loc),
		Access:       accessSvc,
		Eligibility:  gate,
		Audit:        audit.NewExporter(store, logger),
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, store, rdb, &logger)
	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backup := database.NewBackupService(store, cfg.Backup, &logger)
	go backup.Start(ctx)

	server := api.NewHTTPServer(api.Config{
		Port:         cfg.Server.Port,
		APIKey:       cfg.Server.APIKey,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}, deps, &logger)

	logger.Info().Int("port", cfg.Server.Port).Msg("walkpack server started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("http server error")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Logging.Format == "json" {
		return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func startHealthServer(ctx context.Context, port int, store *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctxPing, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := store.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		// Redis only backs the rate limiter, which falls back to memory.
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				logger.Warn().Err(err).Msg("redis not reachable")
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, "health", port, mux, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, "metrics", port, mux, logger)
}

// serve runs an auxiliary listener until ctx is cancelled.
func serve(ctx context.Context, name string, port int, handler http.Handler, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("server", name).Int("port", port).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
