package fake

import (
	"context"
	"log/slog"
	"sync"
)

type Message struct {
	To   string
	Body string
}

// Client пишет SMS в лог вместо отправки; используется, когда шлюз не настроен.
type Client struct {
	mu   sync.Mutex
	sent []Message
}

func New() *Client { return &Client{} }

func (c *Client) Send(ctx context.Context, to, body string) error {
	slog.Info("sms (fake)", "to", to, "body", body)

	c.mu.Lock()
	c.sent = append(c.sent, Message{To: to, Body: body})
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (c *Client) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}
