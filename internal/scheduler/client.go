package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"intro_sales_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Trigger values carried in AutoFixPayload.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

const autoFixTaskTimeout = 10 * time.Minute

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueAutoFix queues a manual auto-fix run.
func (c *Client) EnqueueAutoFix(ctx context.Context, requestedBy string) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler client not configured")
	}

	task, err := NewAuditAutoFixTask(AutoFixPayload{RequestedBy: requestedBy, Trigger: TriggerManual})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(1),
		asynq.Timeout(autoFixTaskTimeout),
	)
	return err
}

// NewRedisClient opens a go-redis client for the same Redis the queue uses.
func NewRedisClient(cfg config.SchedulerConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opt.TLSConfig = tlsConfigFor(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfigFor(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfigFor(base *tls.Config, tlsInsecure bool) *tls.Config {
	if base != nil {
		clone := base.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if tlsInsecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}
