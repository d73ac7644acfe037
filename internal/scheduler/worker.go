package scheduler

import (
	"context"
	"fmt"
	"strings"

	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/config"
	"intro_sales_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// SystemEditor is stamped on records changed by scheduled runs.
const SystemEditor = "system:scheduler"

// AutoFixRunner performs an auto-fix pass.
type AutoFixRunner interface {
	AutoFix(ctx context.Context, editor, trigger string) (audit.BatchResult, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner AutoFixRunner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner AutoFixRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		runner: runner,
		log:    log,
	}

	mux.HandleFunc(TaskAuditAutoFix, w.handleAuditAutoFix)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAuditAutoFix(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAuditAutoFixPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	editor := strings.TrimSpace(payload.RequestedBy)
	if editor == "" {
		editor = SystemEditor
	}
	trigger := payload.Trigger
	if trigger == "" {
		trigger = TriggerScheduled
	}

	result, err := w.runner.AutoFix(ctx, editor, trigger)
	if apperr.Is(err, apperr.KindConflict) {
		w.log.Info("audit auto-fix skipped", "reason", err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	w.log.Info("audit auto-fix finished",
		"trigger", trigger,
		"requested_by", editor,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return nil
}
