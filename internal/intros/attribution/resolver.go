// Package attribution decides who is credited as a prospect's intro owner
// and guards that value with a lock.
package attribution

import (
	"context"
	"strings"
	"time"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/platform/apperr"

	"github.com/google/uuid"
)

// Failure codes surfaced to callers.
const (
	CodeOverrideReasonRequired = "owner_override_reason_required"
	CodeOwnerLocked            = "owner_locked"
	CodeRunNotLinked           = "run_not_linked"
	CodeInvalidOwner           = "invalid_owner"
)

// Store is the write surface the resolver needs.
type Store interface {
	UpdateBooking(ctx context.Context, id uuid.UUID, p repository.BookingPatch) (domain.Booking, error)
	UpdateRun(ctx context.Context, id uuid.UUID, p repository.RunPatch) (domain.Run, error)
}

// Change is the result of a single-booking attribution call.
type Change struct {
	Booking       domain.Booking
	PreviousOwner string
	Written       bool
}

// Resolver applies ownership rules through a Store.
type Resolver struct {
	store Store
	now   func() time.Time
}

// New creates a resolver.
func New(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// WithClock overrides the audit timestamp source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// PlanOwnerFromRun decides what SetOwnerFromRun would write for b, without
// writing. write=false with a nil error is a no-op.
func PlanOwnerFromRun(b domain.Booking, run domain.Run) (owner string, write bool, err error) {
	if !run.IsLinked() {
		return "", false, nil
	}
	if *run.LinkedBookingID != b.ID {
		return "", false, apperr.BadRequest("run is linked to a different booking").WithCode(CodeRunNotLinked)
	}
	if run.IsNoShow() {
		return "", false, nil
	}
	owner = run.EffectiveOwner()
	if !domain.IsUsableStaffValue(owner) {
		return "", false, nil
	}
	if b.Owner() == owner {
		return owner, !b.IntroOwnerLocked, nil
	}
	if b.HasLockedOwner() {
		return "", false, apperr.Conflict("intro owner is locked; use an override with a reason").
			WithCode(CodeOwnerLocked).
			WithDetails(map[string]string{"currentOwner": b.Owner(), "runOwner": owner})
	}
	return owner, true, nil
}

// SetOwnerFromRun credits the run's conductor on its linked booking and locks
// the value. No-shows and unlinked runs are ignored. A locked booking with a
// different owner is refused.
func (r *Resolver) SetOwnerFromRun(ctx context.Context, b domain.Booking, run domain.Run, editor string) (Change, error) {
	owner, write, err := PlanOwnerFromRun(b, run)
	if err != nil || !write {
		return Change{Booking: b, PreviousOwner: b.Owner()}, err
	}

	updated, err := r.store.UpdateBooking(ctx, b.ID, repository.BookingPatch{
		IntroOwner:       repository.SetTo(owner),
		IntroOwnerLocked: repository.Bool(true),
		Edit:             repository.EditStamp{By: editor, Reason: reasonPtr("owner synced from run " + run.ID.String()), At: r.now()},
	})
	if err != nil {
		return Change{Booking: b, PreviousOwner: b.Owner()}, err
	}
	return Change{Booking: updated, PreviousOwner: b.Owner(), Written: true}, nil
}

// OverrideOwner sets or clears (newOwner == nil) the owner through the explicit
// override path. Changing or clearing a locked owner requires a reason.
// Clearing always unlocks; setting always locks.
func (r *Resolver) OverrideOwner(ctx context.Context, b domain.Booking, newOwner *string, reason, editor string) (Change, error) {
	next := domain.Deref(newOwner)
	reason = strings.TrimSpace(reason)
	current := b.Owner()

	if b.HasLockedOwner() && (next == "" || next != current) && reason == "" {
		return Change{Booking: b, PreviousOwner: current}, apperr.Validation("a reason is required to change a locked intro owner").
			WithCode(CodeOverrideReasonRequired)
	}

	if next != "" && !domain.IsUsableStaffValue(next) {
		return Change{Booking: b, PreviousOwner: current}, apperr.Validation("intro owner must be a staff name").
			WithCode(CodeInvalidOwner)
	}

	var patch repository.BookingPatch
	if next == "" {
		if b.IntroOwner == nil && !b.IntroOwnerLocked {
			return Change{Booking: b}, nil
		}
		patch.IntroOwner = repository.SetNull[string]()
		patch.IntroOwnerLocked = repository.Bool(false)
	} else {
		if next == current && b.IntroOwnerLocked {
			return Change{Booking: b, PreviousOwner: current}, nil
		}
		patch.IntroOwner = repository.SetTo(next)
		patch.IntroOwnerLocked = repository.Bool(true)
	}
	patch.Edit = repository.EditStamp{By: editor, Reason: reasonPtr(reason), At: r.now()}

	updated, err := r.store.UpdateBooking(ctx, b.ID, patch)
	if err != nil {
		return Change{Booking: b, PreviousOwner: current}, err
	}
	return Change{Booking: updated, PreviousOwner: current, Written: true}, nil
}

func reasonPtr(reason string) *string {
	return domain.StringPtr(reason)
}
