package service

import (
	"context"
	"errors"

	"intro_sales_backend/internal/events"
	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/redislock"
	"intro_sales_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Auto-fix triggers recorded on the published event.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Audit reports every inconsistency across non-deleted records.
func (s *Service) Audit(ctx context.Context) (audit.Report, error) {
	snap, err := s.loadSnapshot(ctx, snapshotQuery{})
	if err != nil {
		return audit.Report{}, err
	}
	return s.auditor.Detect(snap), nil
}

// AutoFix repairs every auto-fixable issue. When a guard is configured only
// one run proceeds at a time; a concurrent caller gets a conflict.
func (s *Service) AutoFix(ctx context.Context, editor, trigger string) (audit.BatchResult, error) {
	if s.guard != nil {
		lock, err := s.guard.Obtain(ctx, autoFixLockName, s.lockTTL)
		if errors.Is(err, redislock.ErrNotAcquired) {
			return audit.BatchResult{}, apperr.Conflict("an auto-fix run is already in progress").WithCode(CodeAutoFixRunning)
		}
		if err != nil {
			return audit.BatchResult{}, apperr.Unavailable("auto-fix lock unavailable", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && s.log != nil {
				s.log.Warn("auto-fix lock release failed", "error", err)
			}
		}()
	}

	snap, err := s.loadSnapshot(ctx, snapshotQuery{})
	if err != nil {
		return audit.BatchResult{}, err
	}
	result := s.auditor.AutoFix(ctx, snap, editor)

	s.publish(ctx, events.AuditFixApplied{
		BaseEvent: events.NewBaseEvent(),
		Trigger:   trigger,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		EditedBy:  editor,
	})
	return result, nil
}

// EnqueueAutoFix schedules an auto-fix run on the background queue.
func (s *Service) EnqueueAutoFix(ctx context.Context, requestedBy string) error {
	if s.enqueuer == nil {
		return apperr.Unavailable("background queue is not configured", nil)
	}
	if err := s.enqueuer.EnqueueAutoFix(ctx, requestedBy); err != nil {
		return apperr.Unavailable("auto-fix could not be queued", err)
	}
	return nil
}

// AssignBookedBy fills booked-by on many bookings, reporting per booking.
func (s *Service) AssignBookedBy(ctx context.Context, req transport.AssignBookedByRequest, editor string) (audit.BatchResult, error) {
	return s.auditor.AssignBookedBy(ctx, req.BookingIDs, sanitize.Name(req.BookedBy), editor)
}

// ResolveOutcome rewrites a run's result to a controlled literal.
func (s *Service) ResolveOutcome(ctx context.Context, runID uuid.UUID, req transport.ResolveOutcomeRequest, editor string) (domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return domain.Run{}, err
	}
	return s.auditor.ResolveOutcome(ctx, run, sanitize.Text(req.Result), editor)
}

// LinkCandidates lists active bookings an unlinked run could be linked to.
func (s *Service) LinkCandidates(ctx context.Context, runID uuid.UUID) ([]audit.Candidate, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, repository.BookingQuery{
		IdentityKey: run.IdentityKey(),
		Statuses:    []domain.BookingStatus{domain.BookingStatusActive},
	})
	if err != nil {
		return nil, apperr.Unavailable(msgSnapshotFailure, err)
	}
	return audit.LinkCandidates(domain.Snapshot{Bookings: bookings}, run), nil
}
