package scheduler

import (
	"context"
	"time"

	"intro_sales_backend/internal/intros/followup"
	"intro_sales_backend/platform/logger"
)

const defaultFollowUpDigestInterval = time.Hour

// FollowUpCounter reports current follow-up bucket sizes.
type FollowUpCounter interface {
	FollowUpCounts(ctx context.Context) (followup.Counts, error)
}

// FollowUpDigest periodically logs the follow-up queue sizes.
type FollowUpDigest struct {
	counter  FollowUpCounter
	log      *logger.Logger
	interval time.Duration
}

func NewFollowUpDigest(counter FollowUpCounter, log *logger.Logger, interval time.Duration) *FollowUpDigest {
	if interval <= 0 {
		interval = defaultFollowUpDigestInterval
	}
	return &FollowUpDigest{counter: counter, log: log, interval: interval}
}

func (d *FollowUpDigest) Run(ctx context.Context) {
	if d == nil || d.counter == nil {
		return
	}

	d.report(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.report(ctx)
		}
	}
}

func (d *FollowUpDigest) report(ctx context.Context) {
	counts, err := d.counter.FollowUpCounts(ctx)
	if err != nil {
		d.log.Warn("follow-up digest failed", "error", err)
		return
	}

	d.log.Info("follow-up queue",
		"no_show", counts.NoShow,
		"follow_up", counts.FollowUp,
		"second_intro", counts.SecondIntro,
		"reschedule", counts.Reschedule,
		"total", counts.Total,
	)
}
