package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/screener/cli/config"
	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/notify"
	"github.com/justapithecus/screener/notify/redis"
	"github.com/justapithecus/screener/notify/webhook"
)

// notifyTimeout bounds one best-effort publish, retries included.
const notifyTimeout = 30 * time.Second

// notifyFlags override the notify section of the config file.
func notifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "notify-type", Usage: "Notifier: webhook or redis (default: from config, none)"},
		&cli.StringFlag{Name: "notify-url", Usage: "Webhook URL or redis:// URL"},
		&cli.StringFlag{Name: "notify-channel", Usage: "Redis channel (default: " + redis.DefaultChannel + ")"},
	}
}

// notifyConfig merges notifier flags over the config file.
func notifyConfig(c *cli.Context, cfg config.NotifyConfig) config.NotifyConfig {
	if v := c.String("notify-type"); v != "" {
		cfg.Type = v
	}
	if v := c.String("notify-url"); v != "" {
		cfg.URL = v
	}
	if v := c.String("notify-channel"); v != "" {
		cfg.Channel = v
	}
	return cfg
}

// buildNotifier returns nil when no notifier is configured.
func buildNotifier(nc config.NotifyConfig) (notify.Notifier, error) {
	switch nc.Type {
	case "":
		if nc.URL != "" {
			return nil, fmt.Errorf("notify url set without notify type")
		}
		return nil, nil
	case "webhook":
		n, err := webhook.New(webhook.Config{
			URL:     nc.URL,
			Headers: nc.Headers,
			Timeout: nc.Timeout.Duration,
			Retries: retriesOr(nc.Retries, webhook.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	case "redis":
		n, err := redis.New(redis.Config{
			URL:        nc.URL,
			Channel:    nc.Channel,
			PerVacancy: nc.PerVacancy,
			Timeout:    nc.Timeout.Duration,
			Retries:    retriesOr(nc.Retries, redis.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notify type %q (must be webhook or redis)", nc.Type)
	}
}

// retriesOr keeps an explicit retries: 0 from the config file.
func retriesOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// publish sends ev without failing the caller. Failures are logged and counted.
func publish(ctx context.Context, n notify.Notifier, ev *notify.SessionCompletedEvent, logger *log.Logger, collector *metrics.Collector) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := n.Publish(ctx, ev); err != nil {
		collector.IncNotifyFailure()
		logger.Warn("notification failed", map[string]any{
			"event_type": ev.EventType,
			"error":      err.Error(),
		})
		return
	}
	collector.IncNotifySuccess()
	logger.Debug("notification sent", map[string]any{"event_type": ev.EventType})
}
