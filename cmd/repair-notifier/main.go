package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/RepairBox/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if cfg.Kafka.Brokers() == nil {
		panic("kafka host is required for the notifier")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	f := defaultNotifierFactories()
	n := buildNotifier(cfg, f)

	go func() {
		err := runNotifierHTTPServer(ctx, notifierHTTPOpts{
			httpAddr: cfg.RepairBox.NotifierHTTPAddr,
			notifier: n,
			cfg:      cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("notifier http server", "error", err.Error())
		}
	}()

	if err := RunNotifier(ctx, cfg, n, f); err != nil && err != context.Canceled {
		panic(err)
	}
}
