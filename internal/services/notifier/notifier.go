package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/RepairBox/internal/broker/kafka"
	"github.com/BearBump/RepairBox/internal/broker/messages"
	"github.com/BearBump/RepairBox/internal/integrations/sms"
	"github.com/BearBump/RepairBox/internal/metrics"
	"github.com/BearBump/RepairBox/internal/models"
	"github.com/pkg/errors"
)

type Consumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Notifier turns status-changed events into SMS. Delivery is best-effort:
// a message that cannot be sent is logged and counted, never redelivered.
type Notifier struct {
	sms sms.Client
	rl  RateLimiter

	backoff *Backoff

	shopName          string
	trackingBaseURL   string
	rateLimitPerHour  int64
	notifyCorrections bool

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	startedAtUnixNano int64
	lastEventUnixNano atomic.Int64
	totalReceived     atomic.Int64
	totalSent         atomic.Int64
	totalFailed       atomic.Int64
	totalSkipped      atomic.Int64
	totalLimited      atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(client sms.Client, rl RateLimiter) *Notifier {
	return &Notifier{
		sms:               client,
		rl:                rl,
		backoff:           NewBackoff(DefaultBackoffConfig()),
		shopName:          DefaultShopName,
		rateLimitPerHour:  5,
		sleep:             sleepCtx,
		now:               time.Now,
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (n *Notifier) WithSettings(shopName, trackingBaseURL string, rlPerHour int64, notifyCorrections bool) *Notifier {
	if shopName != "" {
		n.shopName = shopName
	}
	n.trackingBaseURL = trackingBaseURL
	if rlPerHour > 0 {
		n.rateLimitPerHour = rlPerHour
	}
	n.notifyCorrections = notifyCorrections
	return n
}

func (n *Notifier) WithBackoff(cfg BackoffConfig) *Notifier {
	n.backoff = NewBackoff(cfg)
	return n
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastEventAt   *time.Time `json:"lastEventAt,omitempty"`
	TotalReceived int64      `json:"totalReceived"`
	TotalSent     int64      `json:"totalSent"`
	TotalFailed   int64      `json:"totalFailed"`
	TotalSkipped  int64      `json:"totalSkipped"`
	TotalLimited  int64      `json:"totalLimited"`
	LastError     string     `json:"lastError,omitempty"`
}

func (n *Notifier) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, n.startedAtUnixNano).UTC(),
		TotalReceived: n.totalReceived.Load(),
		TotalSent:     n.totalSent.Load(),
		TotalFailed:   n.totalFailed.Load(),
		TotalSkipped:  n.totalSkipped.Load(),
		TotalLimited:  n.totalLimited.Load(),
	}
	if v := n.lastEventUnixNano.Load(); v > 0 {
		t := time.Unix(0, v).UTC()
		st.LastEventAt = &t
	}
	n.lastErrorMu.Lock()
	st.LastError = n.lastError
	n.lastErrorMu.Unlock()
	return st
}

// Run consumes until ctx is done or the consumer fails.
func (n *Notifier) Run(ctx context.Context, c Consumer) error {
	return c.Consume(ctx, n.Handle)
}

// Handle processes one status-changed message. It only returns an error when
// ctx is done, so the message stays uncommitted for the next consumer.
func (n *Notifier) Handle(ctx context.Context, key, value []byte) error {
	n.totalReceived.Add(1)
	n.lastEventUnixNano.Store(n.now().UTC().UnixNano())

	var ev messages.StatusChanged
	if err := json.Unmarshal(value, &ev); err != nil {
		n.totalFailed.Add(1)
		n.fail(errors.Wrap(err, "decode status changed"))
		slog.Error("bad status changed message", "key", string(key), "error", err.Error())
		return nil
	}

	err := n.notify(ctx, ev)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		n.fail(err)
		slog.Error("sms not sent",
			"repair_id", ev.RepairID,
			"status", ev.NewStatus,
			"error", err.Error(),
		)
	}
	return nil
}

func (n *Notifier) notify(ctx context.Context, ev messages.StatusChanged) error {
	if ev.Correction && !n.notifyCorrections {
		n.skip(ev, "correction")
		return nil
	}
	phone := FormatPhone(ev.CustomerContact.Phone)
	if phone == "" {
		n.skip(ev, "no phone")
		return nil
	}
	status := models.Status(ev.NewStatus)
	body, ok := Text(n.shopName, status, ev.VehiclePlate, TrackingURL(n.trackingBaseURL, ev.TrackingCode))
	if !ok {
		n.skip(ev, "no text for status")
		return nil
	}

	if n.rl != nil && n.rateLimitPerHour > 0 {
		hourKey := fmt.Sprintf("rl:sms:%s:%s", phone, n.now().UTC().Format("2006010215"))
		allowed, count, err := n.rl.Allow(ctx, hourKey, n.rateLimitPerHour, 70*time.Minute)
		switch {
		case err != nil:
			// лимитер недоступен: отправляем без него
			slog.Warn("sms rate limiter", "error", err.Error())
		case !allowed:
			n.totalLimited.Add(1)
			metrics.SMSSent.WithLabelValues("limited").Inc()
			slog.Warn("sms rate limit exceeded", "repair_id", ev.RepairID, "count", count)
			return nil
		}
	}

	var sendErr error
	for attempt := 1; attempt <= n.backoff.Attempts(); attempt++ {
		sendErr = n.sms.Send(ctx, phone, body)
		if sendErr == nil {
			n.totalSent.Add(1)
			metrics.SMSSent.WithLabelValues("sent").Inc()
			slog.Info("sms sent", "repair_id", ev.RepairID, "status", ev.NewStatus, "attempt", attempt)
			return nil
		}
		if errors.Is(sendErr, sms.ErrRejected) || attempt == n.backoff.Attempts() {
			break
		}
		slog.Warn("sms send retry", "repair_id", ev.RepairID, "attempt", attempt, "error", sendErr.Error())
		if err := n.sleep(ctx, n.backoff.Delay(attempt)); err != nil {
			return err
		}
	}

	n.totalFailed.Add(1)
	metrics.SMSSent.WithLabelValues("failed").Inc()
	return errors.Wrapf(sendErr, "send sms for %s", ev.RepairID)
}

func (n *Notifier) skip(ev messages.StatusChanged, reason string) {
	n.totalSkipped.Add(1)
	metrics.SMSSent.WithLabelValues("skipped").Inc()
	slog.Debug("sms skipped", "repair_id", ev.RepairID, "status", ev.NewStatus, "reason", reason)
}

func (n *Notifier) fail(err error) {
	n.lastErrorMu.Lock()
	n.lastError = err.Error()
	n.lastErrorMu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
