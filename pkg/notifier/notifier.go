package notifier

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
)

// Notifier delivers user and operator facing messages. The presentation layer
// (bot, formatting, localization) lives behind the endpoint.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, message string) error
	NotifyOperator(ctx context.Context, message string) error
}

type webhookNotifier struct {
	endpoint string
	cli      *resty.Client
}

func NewNotifier(endpoint string) Notifier {
	if endpoint == "" {
		return &logNotifier{}
	}
	return &webhookNotifier{
		endpoint: endpoint,
		cli:      resty.New().SetTimeout(constant.AlertTimeout),
	}
}

type userMessage struct {
	UserID  string `json:"user_id,omitempty"`
	Message string `json:"message"`
}

func (n *webhookNotifier) post(ctx context.Context, msg *userMessage) error {
	resp, err := n.cli.R().
		SetContext(ctx).
		SetBody(msg).
		Post(n.endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("notifier endpoint %v: %v", n.endpoint, resp.Status())
	}
	return nil
}

func (n *webhookNotifier) NotifyUser(ctx context.Context, userID, message string) error {
	return n.post(ctx, &userMessage{UserID: userID, Message: message})
}

func (n *webhookNotifier) NotifyOperator(ctx context.Context, message string) error {
	return n.post(ctx, &userMessage{Message: message})
}

type logNotifier struct{}

func (n *logNotifier) NotifyUser(ctx context.Context, userID, message string) error {
	logger.Sugar().Infow(
		"NotifyUser",
		"UserID", userID,
		"Message", message,
	)
	return nil
}

func (n *logNotifier) NotifyOperator(ctx context.Context, message string) error {
	logger.Sugar().Infow(
		"NotifyOperator",
		"Message", message,
	)
	return nil
}
