package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/BearBump/RepairBox/config"
	"github.com/BearBump/RepairBox/internal/broker/kafka"
	"github.com/BearBump/RepairBox/internal/broker/messages"
	"github.com/BearBump/RepairBox/internal/cache/rediscache"
	"github.com/BearBump/RepairBox/internal/integrations/sms"
	"github.com/BearBump/RepairBox/internal/integrations/sms/fake"
	"github.com/BearBump/RepairBox/internal/integrations/sms/smshttp"
	"github.com/BearBump/RepairBox/internal/services/notifier"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	values [][]byte
	closed bool
}

func (c *fakeConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	for _, v := range c.values {
		if err := handler(ctx, nil, v); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func TestDefaultNotifierFactories_SelectSMSClient(t *testing.T) {
	f := defaultNotifierFactories()

	c := f.newSMSClient(&config.Config{})
	_, ok := c.(*fake.Client)
	require.True(t, ok)

	c = f.newSMSClient(&config.Config{RepairBox: config.RepairBoxConfig{
		SMSAccountSID: "AC1",
		SMSAuthToken:  "tok",
		SMSFrom:       "+390000000000",
	}})
	_, ok = c.(*smshttp.Client)
	require.True(t, ok)
}

func TestDefaultNotifierFactories_RateLimiter(t *testing.T) {
	f := defaultNotifierFactories()
	require.Nil(t, f.newRateLimiter(&config.Config{}))

	rl := f.newRateLimiter(&config.Config{Redis: config.RedisConfig{Host: "localhost", Port: 6379}})
	_, ok := rl.(*rediscache.RateLimiter)
	require.True(t, ok)
}

func TestRunNotifier_SendsAndStopsOnCancel(t *testing.T) {
	ev, err := json.Marshal(messages.StatusChanged{
		RepairID:        "r-1",
		TrackingCode:    "FAG-ABCDEF",
		NewStatus:       "READY",
		CustomerContact: messages.CustomerContact{Phone: "+393331234567"},
		VehiclePlate:    "AB123CD",
	})
	require.NoError(t, err)

	smsClient := fake.New()
	fc := &fakeConsumer{values: [][]byte{ev}}
	f := notifierFactories{
		newConsumer:    func(cfg *config.Config, topic, group string) consumer { return fc },
		newRateLimiter: func(cfg *config.Config) notifier.RateLimiter { return nil },
		newSMSClient:   func(cfg *config.Config) sms.Client { return smsClient },
	}
	cfg := &config.Config{}
	n := buildNotifier(cfg, f)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunNotifier(ctx, cfg, n, f) }()

	require.Eventually(t, func() bool { return len(smsClient.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
	require.True(t, fc.closed)
	require.Equal(t, "+393331234567", smsClient.Sent()[0].To)
}

func TestNotifierHTTPServer_Stats(t *testing.T) {
	n := notifier.New(fake.New(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runNotifierHTTPServer(ctx, notifierHTTPOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
			notifier: n,
			cfg:      &config.Config{RepairBox: config.RepairBoxConfig{SMSAuthToken: "secret"}},
		})
	}()
	base := "http://" + <-addrCh

	resp, err := http.Get(base + "/stats")
	require.NoError(t, err)
	var st notifier.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	require.False(t, st.StartedAt.IsZero())

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.NotContains(t, string(b), "secret")

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.Error(t, <-errCh)
}
