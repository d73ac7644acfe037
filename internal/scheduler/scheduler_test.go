package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/internal/intros/followup"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type stubRunner struct {
	editor, trigger string
	result          audit.BatchResult
	err             error
}

func (s *stubRunner) AutoFix(_ context.Context, editor, trigger string) (audit.BatchResult, error) {
	s.editor, s.trigger = editor, trigger
	return s.result, s.err
}

func newTestWorker(runner AutoFixRunner) *Worker {
	return &Worker{runner: runner, log: logger.NewWithWriter("production", io.Discard)}
}

func TestAuditAutoFixTaskDefaults(t *testing.T) {
	runner := &stubRunner{result: audit.BatchResult{Succeeded: 2}}
	task, err := NewAuditAutoFixTask(AutoFixPayload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := newTestWorker(runner).handleAuditAutoFix(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.editor != SystemEditor || runner.trigger != TriggerScheduled {
		t.Fatalf("expected system scheduled run, got %q/%q", runner.editor, runner.trigger)
	}
}

func TestAuditAutoFixTaskSkipsWhenAlreadyRunning(t *testing.T) {
	runner := &stubRunner{err: apperr.Conflict("an auto-fix run is already in progress")}
	task, _ := NewAuditAutoFixTask(AutoFixPayload{RequestedBy: "Manager Kim", Trigger: TriggerManual})

	if err := newTestWorker(runner).handleAuditAutoFix(context.Background(), task); err != nil {
		t.Fatalf("expected conflict to be swallowed, got %v", err)
	}
	if runner.editor != "Manager Kim" {
		t.Fatalf("expected requester as editor, got %q", runner.editor)
	}
}

func TestAuditAutoFixTaskRetriesOnFailure(t *testing.T) {
	runner := &stubRunner{err: apperr.Unavailable("intro records could not be loaded", errors.New("timeout"))}
	task, _ := NewAuditAutoFixTask(AutoFixPayload{})

	if err := newTestWorker(runner).handleAuditAutoFix(context.Background(), task); err == nil {
		t.Fatal("expected error so asynq retries")
	}
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	task := asynq.NewTask(TaskAuditAutoFix, []byte("{"))
	err := newTestWorker(&stubRunner{}).handleAuditAutoFix(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestRedisClientOptTLS(t *testing.T) {
	opt, err := redisClientOpt("rediss://:pw@cache.internal:6380/2", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Addr != "cache.internal:6380" || opt.Password != "pw" || opt.DB != 2 {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}

	plain, err := redisClientOpt("redis://localhost:6379", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain.TLSConfig != nil {
		t.Fatal("expected no TLS for redis://")
	}
}

type stubCounter struct{}

func (stubCounter) FollowUpCounts(context.Context) (followup.Counts, error) {
	return followup.Counts{NoShow: 1, FollowUp: 2, Total: 3}, nil
}

func TestFollowUpDigestLogsCounts(t *testing.T) {
	var buf bytes.Buffer
	digest := NewFollowUpDigest(stubCounter{}, logger.NewWithWriter("production", &buf), 0)
	digest.report(context.Background())

	if !strings.Contains(buf.String(), `"total":3`) {
		t.Fatalf("expected counts in log, got %q", buf.String())
	}
}
