// Package smshttp talks to a Twilio-compatible Messages REST endpoint.
package smshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/RepairBox/internal/integrations/sms"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	httpc      *http.Client
}

func New(baseURL, accountSID, authToken, from string) *Client {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type messageResp struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    *int   `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Send(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	var r messageResp
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &r)

	switch {
	case resp.StatusCode/100 == 2:
		if r.Status == "failed" || r.Status == "undelivered" {
			return errors.Wrapf(sms.ErrRejected, "gateway status=%s", r.Status)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5:
		return fmt.Errorf("sms gateway http %d", resp.StatusCode)
	default:
		// 4xx: номер или учётка невалидны, повтор не поможет
		return errors.Wrapf(sms.ErrRejected, "sms gateway http %d: %s", resp.StatusCode, r.Message)
	}
}
