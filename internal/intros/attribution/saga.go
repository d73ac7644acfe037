package attribution

import (
	"context"
	"fmt"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
)

// SagaState tracks progress of the two-write first-run ownership sync.
type SagaState string

const (
	SagaPending SagaState = "pending"
	SagaSkipped SagaState = "skipped"
	// SagaRunWritten: the run carries the locked owner but the booking does
	// not. The auditor reports this as an owner mismatch and repairs it.
	SagaRunWritten SagaState = "run_written"
	SagaCompleted  SagaState = "completed"
	SagaFailed     SagaState = "failed"
)

// Saga is the result of FirstRunBecomesOwner.
type Saga struct {
	State   SagaState
	Owner   string
	Run     domain.Run
	Booking domain.Booking
}

// FirstRunBecomesOwner makes the conductor of a newly linked run the owner of
// its booking, locking both records. It writes the run first, then the
// booking; the writes are independent and a failure between them leaves the
// saga in SagaRunWritten.
func (r *Resolver) FirstRunBecomesOwner(ctx context.Context, b domain.Booking, run domain.Run, editor string) (Saga, error) {
	saga := Saga{State: SagaPending, Run: run, Booking: b}

	if b.HasLockedOwner() || run.IsNoShow() || !run.IsLinked() || *run.LinkedBookingID != b.ID {
		saga.State = SagaSkipped
		return saga, nil
	}
	owner := run.EffectiveOwner()
	if !domain.IsUsableStaffValue(owner) {
		saga.State = SagaSkipped
		return saga, nil
	}
	saga.Owner = owner
	stamp := repository.EditStamp{By: editor, Reason: reasonPtr("first run becomes owner"), At: r.now()}

	updatedRun, err := r.store.UpdateRun(ctx, run.ID, repository.RunPatch{
		IntroOwner:       repository.SetTo(owner),
		IntroOwnerLocked: repository.Bool(true),
		Edit:             stamp,
	})
	if err != nil {
		saga.State = SagaFailed
		return saga, fmt.Errorf("lock owner on run %s: %w", run.ID, err)
	}
	saga.Run = updatedRun
	saga.State = SagaRunWritten

	updatedBooking, err := r.store.UpdateBooking(ctx, b.ID, repository.BookingPatch{
		IntroOwner:       repository.SetTo(owner),
		IntroOwnerLocked: repository.Bool(true),
		Edit:             stamp,
	})
	if err != nil {
		return saga, fmt.Errorf("lock owner on booking %s after run write: %w", b.ID, err)
	}
	saga.Booking = updatedBooking
	saga.State = SagaCompleted
	return saga, nil
}
