package sms

import (
	"context"

	"github.com/pkg/errors"
)

// ErrRejected marks a message the gateway refused outright (bad number, bad
// credentials). Retrying it will not help.
var ErrRejected = errors.New("sms rejected")

type Client interface {
	Send(ctx context.Context, to, body string) error
}
