// Package redis publishes screening events on Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/screener/notify"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "screener:session_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retries after the first attempt.
const DefaultRetries = 3

// Config configures the Redis notifier.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL string
	// Channel defaults to DefaultChannel.
	Channel string
	// PerVacancy publishes to "<channel>:<vacancy_id>" so subscribers can
	// follow a single vacancy. Events without a vacancy use Channel.
	PerVacancy bool
	// Timeout bounds each PUBLISH (default 5s).
	Timeout time.Duration
	// Retries after the first attempt.
	Retries int
}

// Notifier publishes events via Redis PUBLISH.
type Notifier struct {
	config  Config
	client  *goredis.Client
	backoff func(retry int) time.Duration
}

// New validates cfg and connects lazily; no command is sent until Publish.
func New(cfg Config) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Notifier{
		config:  cfg,
		client:  goredis.NewClient(opts),
		backoff: func(retry int) time.Duration { return time.Duration(1<<uint(retry-1)) * 500 * time.Millisecond },
	}, nil
}

// Publish sends the event as JSON. Failed attempts are retried with backoff
// unless the client has been closed.
func (n *Notifier) Publish(ctx context.Context, event *notify.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := n.ChannelFor(event)
	attempts := 1 + n.config.Retries

	var lastErr error
	for i := range attempts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: canceled during backoff: %w", ctx.Err())
			case <-time.After(n.backoff(i)):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, n.config.Timeout)
		lastErr = n.client.Publish(publishCtx, channel, body).Err()
		cancel()

		switch {
		case lastErr == nil:
			return nil
		case errors.Is(lastErr, goredis.ErrClosed):
			return fmt.Errorf("redis: %w", lastErr)
		case ctx.Err() != nil:
			return fmt.Errorf("redis: %w", ctx.Err())
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Channel returns the base channel.
func (n *Notifier) Channel() string {
	return n.config.Channel
}

// ChannelFor returns the channel event is published to.
func (n *Notifier) ChannelFor(event *notify.SessionCompletedEvent) string {
	if n.config.PerVacancy && event.VacancyID != "" {
		return n.config.Channel + ":" + event.VacancyID
	}
	return n.config.Channel
}

// Close closes the underlying client.
func (n *Notifier) Close() error {
	return n.client.Close()
}

var _ notify.Notifier = (*Notifier)(nil)
