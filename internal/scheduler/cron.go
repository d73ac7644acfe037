package scheduler

import (
	"context"
	"fmt"
	"time"

	"intro_sales_backend/platform/config"
	"intro_sales_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron enqueues the nightly auto-fix on the configured schedule.
type Cron struct {
	scheduler *asynq.Scheduler
	spec      string
	queue     string
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, loc *time.Location, log *logger.Logger) (*Cron, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	spec := cfg.GetAuditAutoFixCron()
	if spec == "" {
		return nil, fmt.Errorf("audit auto-fix cron not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Cron{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc}),
		spec:      spec,
		queue:     queueName(cfg),
		log:       log,
	}, nil
}

// Run registers the entries and blocks until ctx is done.
func (c *Cron) Run(ctx context.Context) error {
	task, err := NewAuditAutoFixTask(AutoFixPayload{RequestedBy: SystemEditor, Trigger: TriggerScheduled})
	if err != nil {
		return err
	}
	entryID, err := c.scheduler.Register(c.spec, task, asynq.Queue(c.queue), asynq.MaxRetry(1), asynq.Timeout(autoFixTaskTimeout))
	if err != nil {
		return fmt.Errorf("register auto-fix cron %q: %w", c.spec, err)
	}
	c.log.Info("audit auto-fix scheduled", "cron", c.spec, "entry_id", entryID)

	if err := c.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	c.scheduler.Shutdown()
	return nil
}
