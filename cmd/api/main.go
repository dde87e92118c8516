package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cimillas/perishable-market/internal/app"
	"github.com/cimillas/perishable-market/internal/clock"
	"github.com/cimillas/perishable-market/internal/config"
	"github.com/cimillas/perishable-market/internal/domain"
	"github.com/cimillas/perishable-market/internal/events"
	"github.com/cimillas/perishable-market/internal/obs"
	"github.com/cimillas/perishable-market/internal/storage/postgres"
	ratelimit "github.com/cimillas/perishable-market/internal/storage/redis"
	transporthttp "github.com/cimillas/perishable-market/internal/transport/http"
	"github.com/cimillas/perishable-market/migrations"
)

// publisher is an event sink that owns background resources.
type publisher interface {
	app.EventPublisher
	Close() error
}

func main() {
	loadEnvFile(obs.New(slog.LevelInfo, nil))

	cfg := config.Load()
	logger := obs.New(cfg.LogLevel, nil)
	slog.SetDefault(logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		fatal(logger, "db_connect_failed", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		fatal(logger, "db_ping_failed", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		fatal(logger, "migrations_failed", err)
	}

	pub := newPublisher(cfg, logger)
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("publisher_close_failed", "error", err)
		}
	}()

	var limiter transporthttp.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(startupCtx).Err(); err != nil {
			logger.Warn("redis_unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		limiter = ratelimit.NewLimiter(rdb, cfg.RateLimitPerMinute, time.Minute)
		logger.Info("rate_limit_enabled", "per_minute", cfg.RateLimitPerMinute)
	}

	clk := clock.NewSystem()
	inventoryRepo := postgres.NewInventoryRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	inventorySvc := app.NewInventoryService(inventoryRepo, clk,
		app.WithExpiringSoon(cfg.ExpiringSoon),
		app.WithInventoryLogger(logger),
	)
	validator := app.NewCartValidator(inventoryRepo, clk)
	orderSvc := app.NewOrderService(orderRepo, validator, clk,
		app.WithFees(domain.Fees{DeliveryFee: cfg.DeliveryFee, ServiceFeePercent: cfg.ServiceFeePercent}),
		app.WithOrderPublisher(pub),
		app.WithOrderLogger(logger),
	)
	statusSvc := app.NewStatusService(orderRepo, clk,
		app.WithStatusPublisher(pub),
		app.WithStatusLogger(logger),
	)

	handler := transporthttp.NewRouter(transporthttp.RouterDeps{
		Inventory:   inventorySvc,
		Cart:        validator,
		Orders:      orderSvc,
		Status:      statusSvc,
		DB:          pool,
		Limiter:     limiter,
		RateLimit:   cfg.RateLimitPerMinute,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api_listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", "error", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown_signal_received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server_shutdown_error", "error", err)
	}
	logger.Info("server_stopped")
}

// newPublisher prefers Kafka and falls back to logging events when no broker
// is configured or the producer cannot start.
func newPublisher(cfg config.Config, logger *slog.Logger) publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	if err != nil {
		logger.Warn("kafka_unavailable", "brokers", cfg.KafkaBrokers, "error", err)
		return events.NewLogPublisher(logger)
	}
	logger.Info("kafka_publisher_enabled", "topic", cfg.KafkaTopic)
	return kp
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func loadEnvFile(logger *slog.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Warn("env_file_locate_failed", "error", err)
		return
	}
	if path == "" {
		logger.Warn("env_file_not_found")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn("env_file_open_failed", "path", path, "error", err)
		return
	}
	if err := parseEnvFile(logger, file); err != nil {
		logger.Warn("env_file_load_failed", "path", path, "error", err)
	} else {
		logger.Info("env_file_loaded", "path", path)
	}
	_ = file.Close()
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger *slog.Logger, file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		value = trimQuotes(value)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			logger.Warn("env_file_set_failed", "key", key)
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
