package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/RepairBox/config"
	"github.com/BearBump/RepairBox/internal/broker/kafka"
	"github.com/BearBump/RepairBox/internal/cache"
	"github.com/BearBump/RepairBox/internal/cache/rediscache"
	"github.com/BearBump/RepairBox/internal/services/lifecycle"
	"github.com/BearBump/RepairBox/internal/storage/pgrepairs"
	"github.com/BearBump/RepairBox/internal/storage/sqliterepairs"
	"github.com/BearBump/RepairBox/internal/trackingcode"
)

type repairStore interface {
	lifecycle.Repository
	Ping(ctx context.Context) error
	Close()
}

type repairAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   repairAPIOpts
	svc    *lifecycle.Service
	store  repairStore
	rl     *rediscache.RateLimiter

	closers []func()
}

func mustBootstrapRepairAPI() *repairAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	rb := cfg.RepairBox

	httpAddr := rb.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.StatusChangedTopicName
	if topic == "" {
		topic = "repair.status_changed"
	}
	cacheTTL := time.Duration(rb.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	app := &repairAPIApp{}

	app.store = mustOpenStoreWithRetry(cfg, 60*time.Second)
	app.closers = append(app.closers, app.store.Close)

	var pub lifecycle.Publisher
	if brokers := cfg.Kafka.Brokers(); brokers != nil {
		p := kafka.NewProducer(brokers)
		app.closers = append(app.closers, func() { _ = p.Close() })
		pub = p
	} else {
		slog.Warn("kafka is not configured, status events are not published")
	}

	var bc cache.BytesCache
	if addr := cfg.Redis.Addr(); addr != "" {
		rc := rediscache.New(addr)
		app.rl = rediscache.NewRateLimiter(addr)
		app.closers = append(app.closers, func() { _ = rc.Close() }, func() { _ = app.rl.Close() })
		bc = rc
	}

	app.svc = lifecycle.New(app.store, trackingcode.New(rb.TrackingTag, nil), pub, bc, lifecycle.Config{
		StatusChangedTopic: topic,
		MaxCodeAttempts:    rb.TrackingCodeMaxAttempts,
		TrackingTTL:        cacheTTL,
	})

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = repairAPIOpts{
		httpAddr:        httpAddr,
		swaggerPath:     swaggerPath,
		publicPerMinute: int64(rb.PublicRateLimitPerMinute),
	}
	return app
}

func openStore(cfg *config.Config) (repairStore, error) {
	switch cfg.RepairBox.StorageDriver {
	case "", "postgres":
		return pgrepairs.New(cfg.Database.ConnString())
	case "sqlite":
		path := cfg.RepairBox.SQLitePath
		if path == "" {
			path = "repairbox.db"
		}
		return sqliterepairs.New(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.RepairBox.StorageDriver)
	}
}

// mustOpenStoreWithRetry ждёт базу после старта docker compose.
func mustOpenStoreWithRetry(cfg *config.Config, wait time.Duration) repairStore {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := openStore(cfg)
		if err == nil {
			return st
		}
		lastErr = err
		if cfg.RepairBox.StorageDriver == "sqlite" {
			break
		}
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("storage is not ready after %s: %v", wait, lastErr))
}

func (a *repairAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *repairAPIApp) Run() error {
	var rl repairsRateLimiter
	if a.rl != nil {
		rl = a.rl
	}
	return runRepairAPI(a.ctx, a.opts, a.svc, rl, a.store)
}
