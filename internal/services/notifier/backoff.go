package notifier

import "time"

type BackoffConfig struct {
	Attempts int
	Backoff1 time.Duration
	Backoff2 time.Duration
	Backoff3 time.Duration
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Attempts: 4,
		Backoff1: 1 * time.Second,
		Backoff2: 5 * time.Second,
		Backoff3: 15 * time.Second,
	}
}

// Backoff решает, сколько ждать перед следующей попыткой отправки.
type Backoff struct {
	cfg BackoffConfig
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	return &Backoff{cfg: cfg}
}

func (b *Backoff) Attempts() int { return b.cfg.Attempts }

// Delay returns the pause after the given failed attempt (1-based).
func (b *Backoff) Delay(failed int) time.Duration {
	switch {
	case failed <= 1:
		return b.cfg.Backoff1
	case failed == 2:
		return b.cfg.Backoff2
	default:
		return b.cfg.Backoff3
	}
}
