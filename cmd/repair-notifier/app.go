package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/RepairBox/config"
	"github.com/BearBump/RepairBox/internal/broker/kafka"
	"github.com/BearBump/RepairBox/internal/cache/rediscache"
	"github.com/BearBump/RepairBox/internal/integrations/sms"
	"github.com/BearBump/RepairBox/internal/integrations/sms/fake"
	"github.com/BearBump/RepairBox/internal/integrations/sms/smshttp"
	"github.com/BearBump/RepairBox/internal/services/notifier"
)

type consumer interface {
	notifier.Consumer
	Close() error
}

type notifierFactories struct {
	newConsumer    func(cfg *config.Config, topic, group string) consumer
	newRateLimiter func(cfg *config.Config) notifier.RateLimiter
	newSMSClient   func(cfg *config.Config) sms.Client
}

func defaultNotifierFactories() notifierFactories {
	return notifierFactories{
		newConsumer: func(cfg *config.Config, topic, group string) consumer {
			return kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
		},
		newRateLimiter: func(cfg *config.Config) notifier.RateLimiter {
			addr := cfg.Redis.Addr()
			if addr == "" {
				return nil
			}
			return rediscache.NewRateLimiter(addr)
		},
		newSMSClient: func(cfg *config.Config) sms.Client {
			rb := cfg.RepairBox
			// без учётных данных шлюза SMS только пишутся в лог
			if rb.SMSAccountSID == "" || rb.SMSAuthToken == "" || rb.SMSFrom == "" {
				return fake.New()
			}
			return smshttp.New(rb.SMSBaseURL, rb.SMSAccountSID, rb.SMSAuthToken, rb.SMSFrom)
		},
	}
}

func buildNotifier(cfg *config.Config, f notifierFactories) *notifier.Notifier {
	rb := cfg.RepairBox
	return notifier.New(f.newSMSClient(cfg), f.newRateLimiter(cfg)).
		WithSettings(rb.NotifierShopName, rb.PublicTrackingBaseURL, int64(rb.NotifierRateLimitPerHour), rb.NotifierNotifyCorrections).
		WithBackoff(notifier.BackoffConfig{
			Attempts: rb.NotifierAttempts,
			Backoff1: time.Duration(rb.NotifierBackoff1Seconds) * time.Second,
			Backoff2: time.Duration(rb.NotifierBackoff2Seconds) * time.Second,
			Backoff3: time.Duration(rb.NotifierBackoff3Seconds) * time.Second,
		})
}

func RunNotifier(ctx context.Context, cfg *config.Config, n *notifier.Notifier, f notifierFactories) error {
	topic := cfg.Kafka.StatusChangedTopicName
	if topic == "" {
		topic = "repair.status_changed"
	}
	group := cfg.RepairBox.NotifierConsumerGroup
	if group == "" {
		group = "repair-notifier"
	}

	c := f.newConsumer(cfg, topic, group)
	defer func() { _ = c.Close() }()

	slog.Info("kafka consumer started", "topic", topic, "group", group)
	err := n.Run(ctx, c)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
