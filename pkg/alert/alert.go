package alert

import (
	"context"

	"github.com/go-resty/resty/v2"

	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
	"github.com/pixbridge/bridge-scheduler/pkg/logger"
)

type Severity string

const (
	SeverityInfo     = Severity("INFO")
	SeverityWarning  = Severity("WARNING")
	SeverityCritical = Severity("CRITICAL")
)

type Alert struct {
	Job         string   `json:"job"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Remediation string   `json:"remediation"`
}

type Alerter struct {
	endpoint string
	cli      *resty.Client
}

func NewAlerter(endpoint string) *Alerter {
	return &Alerter{
		endpoint: endpoint,
		cli:      resty.New().SetTimeout(constant.AlertTimeout),
	}
}

// Notify is fire and forget; a broken alert channel must never fail the job
// that raised the alert.
func (a *Alerter) Notify(ctx context.Context, in *Alert) {
	logger.Sugar().Warnw(
		"Notify",
		"Job", in.Job,
		"Severity", in.Severity,
		"Message", in.Message,
	)
	if a.endpoint == "" {
		return
	}
	if _, err := a.cli.R().
		SetContext(ctx).
		SetBody(in).
		Post(a.endpoint); err != nil {
		logger.Sugar().Errorw(
			"Notify",
			"Job", in.Job,
			"Endpoint", a.endpoint,
			"Error", err,
		)
	}
}
