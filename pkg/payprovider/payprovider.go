package payprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
)

type Status string

const (
	StatusPending   = Status("PENDING")
	StatusCompleted = Status("COMPLETED")
	StatusCanceled  = Status("CANCELED")
	StatusExpired   = Status("EXPIRED")
	StatusRefunded  = Status("REFUNDED")
	StatusError     = Status("ERROR")
	StatusUnknown   = Status("UNKNOWN")
)

// Terminal reports whether the provider will never advance this status again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCanceled, StatusExpired, StatusRefunded, StatusError:
		return true
	}
	return false
}

var ErrNotFound = errors.New("payment not found")

type Client struct {
	base  string
	token string
	cli   *resty.Client
}

func NewClient(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		cli:   resty.New().SetTimeout(constant.ProviderTimeout),
	}
}

type paymentResponse struct {
	Status string `json:"status"`
}

var statusMap = map[string]Status{
	"pending":    StatusPending,
	"processing": StatusPending,
	"paid":       StatusCompleted,
	"completed":  StatusCompleted,
	"canceled":   StatusCanceled,
	"cancelled":  StatusCanceled,
	"expired":    StatusExpired,
	"refunded":   StatusRefunded,
	"error":      StatusError,
	"failed":     StatusError,
}

// PaymentStatus queries the external PIX provider for the payment referenced
// by ref. A provider 404 surfaces as ErrNotFound so callers can age out
// abandoned references.
func (c *Client) PaymentStatus(ctx context.Context, ref string) (Status, error) {
	resp, err := c.cli.R().
		SetContext(ctx).
		SetHeader("Authorization", fmt.Sprintf("Bearer %v", c.token)).
		Get(fmt.Sprintf("%v/payments/%v", c.base, ref))
	if err != nil {
		return StatusUnknown, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return StatusUnknown, ErrNotFound
	}
	if resp.IsError() {
		return StatusUnknown, fmt.Errorf("provider payment %v: %v", ref, resp.Status())
	}

	payment := &paymentResponse{}
	if err := json.Unmarshal(resp.Body(), payment); err != nil {
		return StatusUnknown, fmt.Errorf("provider payment %v: %w", ref, err)
	}

	status, ok := statusMap[strings.ToLower(payment.Status)]
	if !ok {
		return StatusUnknown, fmt.Errorf("provider payment %v: unexpected status %q", ref, payment.Status)
	}
	return status, nil
}
