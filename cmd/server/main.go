package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"flawless/internal/agent"
	"flawless/internal/api"
	"flawless/internal/config"
	"flawless/internal/database"
	"flawless/internal/events"
	"flawless/internal/ledger"
	"flawless/internal/metrics"
	"flawless/internal/notify"
	"flawless/internal/slots"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("FLAWLESS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.New(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.SeedServices(ctx, cfg.Services); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed services")
	}

	closed, err := cfg.ClosedWeekdays()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid slots config")
	}
	grid, err := slots.BuildGrid(cfg.Slots.Start, cfg.Slots.End, cfg.Slots.SlotMinutes, closed)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid slots config")
	}

	bus := events.NewBus()
	l := ledger.New(db.DB, grid, ledger.Options{
		PlaceholderTokens: cfg.Booking.PlaceholderTokens,
		Timeout:           cfg.BookingTimeout(),
		Bus:               bus,
	}, &logger)

	var rdb *redis.Client
	var store agent.SessionStore
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		store = agent.NewRedisStore(rdb, cfg.SessionTTL(), cfg.Agent.HistoryLimit)
		logger.Info().Str("address", cfg.Redis.Address).Msg("using redis session store")
	} else {
		mem := agent.NewMemoryStore(cfg.SessionTTL(), cfg.Agent.HistoryLimit)
		mem.StartCleanup(ctx, 5*time.Minute)
		store = mem
	}

	var chatAgent api.ChatAgent
	if cfg.Agent.APIKey != "" {
		registry := agent.NewToolset(l, cfg.Salon.Info)
		a, err := agent.New(ctx, agent.Config{
			APIKey:        cfg.Agent.APIKey,
			Model:         cfg.Agent.Model,
			SalonName:     cfg.Salon.Name,
			MaxToolRounds: cfg.Agent.MaxToolRounds,
		}, registry, store, &logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("create agent error")
		}
		defer a.Close()
		chatAgent = a
	} else {
		logger.Warn().Msg("agent.api_key not set, chat endpoint disabled")
	}

	if cfg.Notifications.TelegramBotToken != "" && len(cfg.Notifications.ManagerChatIDs) > 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Notifications.TelegramBotToken, cfg.Notifications.ManagerChatIDs, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier.Subscribe(bus)
			logger.Info().Int("managers", len(cfg.Notifications.ManagerChatIDs)).Msg("manager notifications enabled")
		}
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, db, cfg, &logger)
	}

	srv := api.NewServer(l, chatAgent, api.Options{
		AdminKey:          cfg.Salon.AdminKey,
		ChatRatePerMinute: cfg.Chat.RatePerMinute,
		ChatBurst:         cfg.Chat.Burst,
	}, &logger)

	logger.Info().Str("salon", cfg.Salon.Name).Msg("booking assistant started")
	if err := srv.Run(ctx, cfg.Server.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func startBackupLoop(ctx context.Context, db *database.DB, cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}

	if err := os.MkdirAll(cfg.Backup.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create backup directory")
		return
	}

	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour
	retention := time.Duration(cfg.Backup.RetentionDays) * 24 * time.Hour

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(db, cfg, retention, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(db, cfg, retention, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(db *database.DB, cfg *config.Config, retention time.Duration, logger *zerolog.Logger) {
	timestamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(cfg.Backup.Path, fmt.Sprintf("flawless_%s.db", timestamp))

	logger.Info().Str("path", dest).Msg("starting database backup")
	if err := db.Backup(dest); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Msg("backup completed successfully")
	}

	deleted, err := db.CleanupBackups(cfg.Backup.Path, retention)
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
