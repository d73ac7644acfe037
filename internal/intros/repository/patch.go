package repository

import (
	"time"

	"intro_sales_backend/internal/intros/domain"

	"github.com/google/uuid"
)

// Optional marks a nullable column for writing. Set=false leaves the column
// untouched; Set=true with a nil Value writes NULL.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns an Optional that writes v.
func SetTo[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// SetNull returns an Optional that writes NULL.
func SetNull[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// EditStamp is written alongside every patch.
type EditStamp struct {
	By     string
	Reason *string
	At     time.Time
}

// BookingPatch is a partial update of a booking.
type BookingPatch struct {
	IntroOwner            Optional[string]
	IntroOwnerLocked      *bool
	Status                *domain.BookingStatus
	BookedBy              Optional[string]
	RescheduleContactDate Optional[time.Time]
	FollowUpDismissedAt   Optional[time.Time]
	IgnoreFromMetrics     *bool
	DeletedAt             Optional[time.Time]
	Edit                  EditStamp
}

// IsEmpty reports a patch that changes no substantive column.
func (p BookingPatch) IsEmpty() bool {
	return !p.IntroOwner.Set && p.IntroOwnerLocked == nil && p.Status == nil && !p.BookedBy.Set &&
		!p.RescheduleContactDate.Set && !p.FollowUpDismissedAt.Set && p.IgnoreFromMetrics == nil &&
		!p.DeletedAt.Set
}

// Apply writes the patch onto an in-memory booking the same way the store does.
func (p BookingPatch) Apply(b *domain.Booking) {
	if p.IntroOwner.Set {
		b.IntroOwner = clonePtr(p.IntroOwner.Value)
	}
	if p.IntroOwnerLocked != nil {
		b.IntroOwnerLocked = *p.IntroOwnerLocked
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.BookedBy.Set {
		b.BookedBy = clonePtr(p.BookedBy.Value)
	}
	if p.RescheduleContactDate.Set {
		b.RescheduleContactDate = clonePtr(p.RescheduleContactDate.Value)
	}
	if p.FollowUpDismissedAt.Set {
		b.FollowUpDismissedAt = clonePtr(p.FollowUpDismissedAt.Value)
	}
	if p.IgnoreFromMetrics != nil {
		b.IgnoreFromMetrics = *p.IgnoreFromMetrics
	}
	if p.DeletedAt.Set {
		b.DeletedAt = clonePtr(p.DeletedAt.Value)
	}
	p.Edit.apply(&b.Audit)
}

// RunPatch is a partial update of a run.
type RunPatch struct {
	IntroOwner        Optional[string]
	IntroOwnerLocked  *bool
	LinkedBookingID   Optional[uuid.UUID]
	Result            *string
	IgnoreFromMetrics *bool
	DeletedAt         Optional[time.Time]
	Edit              EditStamp
}

// IsEmpty reports a patch that changes no substantive column.
func (p RunPatch) IsEmpty() bool {
	return !p.IntroOwner.Set && p.IntroOwnerLocked == nil && !p.LinkedBookingID.Set &&
		p.Result == nil && p.IgnoreFromMetrics == nil && !p.DeletedAt.Set
}

// Apply writes the patch onto an in-memory run the same way the store does.
func (p RunPatch) Apply(r *domain.Run) {
	if p.IntroOwner.Set {
		r.IntroOwner = clonePtr(p.IntroOwner.Value)
	}
	if p.IntroOwnerLocked != nil {
		r.IntroOwnerLocked = *p.IntroOwnerLocked
	}
	if p.LinkedBookingID.Set {
		r.LinkedBookingID = clonePtr(p.LinkedBookingID.Value)
	}
	if p.Result != nil {
		r.Result = *p.Result
	}
	if p.IgnoreFromMetrics != nil {
		r.IgnoreFromMetrics = *p.IgnoreFromMetrics
	}
	if p.DeletedAt.Set {
		r.DeletedAt = clonePtr(p.DeletedAt.Value)
	}
	p.Edit.apply(&r.Audit)
}

func (e EditStamp) apply(a *domain.Audit) {
	at := e.At
	a.LastEditedAt = &at
	a.LastEditedBy = domain.StringPtr(e.By)
	a.LastEditedReason = clonePtr(e.Reason)
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
