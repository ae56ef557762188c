package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/target/ledgerly/config"
	"github.com/target/ledgerly/internal/observability/notify"
	"github.com/target/ledgerly/internal/observability/notify/slack"
	"github.com/target/ledgerly/internal/observability/prom"
	"github.com/target/ledgerly/internal/observability/statsd"
)

// Metrics wraps the configured sink and knows how to flush it at exit.
type Metrics struct {
	Sink statsd.Sink

	statsd *statsd.Client
	prom   *prom.Sink
}

// BuildMetrics creates the metrics sink. A disabled config yields a Metrics with a nil Sink.
func BuildMetrics(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*Metrics, error) {
	if !cfg.IsEnabled() {
		return &Metrics{}, nil
	}

	switch cfg.Backend {
	case config.MetricsPrometheus:
		sink := prom.NewSink(prom.Config{
			Namespace: cfg.Prefix,
			PushURL:   cfg.PushURL,
			Job:       cfg.PushJob,
			Logger:    logger,
		})
		return &Metrics{Sink: sink, prom: sink}, nil
	default:
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.StatsdAddress,
			Prefix:  cfg.Prefix,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init statsd client: %w", err)
		}
		return &Metrics{Sink: client, statsd: client}, nil
	}
}

// Close pushes Prometheus metrics to the gateway or closes the StatsD socket.
func (m *Metrics) Close() error {
	if m == nil {
		return nil
	}
	if m.prom != nil {
		if err := m.prom.Push(); err != nil {
			return err
		}
	}
	if m.statsd != nil {
		return m.statsd.Close()
	}
	return nil
}

// BuildAlertSink returns the Slack alert sink, or nil when notifications are off.
//
//nolint:ireturn // the session manager consumes notify.Sink.
func BuildAlertSink(cfg config.ObservabilityNotificationsConfig) (notify.Sink, error) {
	if !cfg.Enabled || !cfg.Slack.Enabled {
		return nil, nil
	}
	client, err := slack.NewClient(slack.Config{
		WebhookURL: cfg.Slack.WebhookURL,
		Channel:    cfg.Slack.Channel,
		Username:   cfg.Slack.Username,
		Timeout:    cfg.Timeout,
		RetryLimit: cfg.RetryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("init slack notifier: %w", err)
	}
	return client, nil
}
