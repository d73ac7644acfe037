package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run records what happened at (or instead of) a scheduled intro.
type Run struct {
	ID                uuid.UUID
	MemberName        string
	LinkedBookingID   *uuid.UUID
	RunDate           time.Time
	ClassTime         *string
	Result            string
	IntroOwner        *string
	IntroOwnerLocked  bool
	RanBy             *string
	LeadSource        *string
	CommissionAmount  *float64
	Notes             *string
	IgnoreFromMetrics bool
	DeletedAt         *time.Time
	CreatedAt         time.Time
	Audit
}

// IdentityKey returns the prospect key for this run.
func (r Run) IdentityKey() string {
	return IdentityKeyOf(r.MemberName)
}

// Outcome returns the canonical outcome of the run's result literal.
func (r Run) Outcome() Outcome {
	return CanonicalOutcome(r.Result)
}

// IsNoShow reports a no-show result. No-shows never credit an owner.
func (r Run) IsNoShow() bool {
	return r.Outcome() == OutcomeNoShow
}

// EffectiveOwner is the run-level owner, falling back to whoever ran the session.
func (r Run) EffectiveOwner() string {
	if owner := Deref(r.IntroOwner); owner != "" {
		return owner
	}
	return Deref(r.RanBy)
}

// IsLinked reports whether the run references a booking.
func (r Run) IsLinked() bool {
	return r.LinkedBookingID != nil
}

// RunsOldestFirst orders runs by run date, then creation time, then id.
func RunsOldestFirst(a, b Run) int {
	if c := a.RunDate.Compare(b.RunDate); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return CompareIDs(a.ID, b.ID)
}

// CompareIDs orders ids bytewise; used as the final tiebreak for stable sorts.
func CompareIDs(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// OutreachRecord is a logged outbound contact with a prospect.
type OutreachRecord struct {
	ID         uuid.UUID
	BookingID  *uuid.UUID
	MemberName string
	Channel    string
	Summary    *string
	SentBy     string
	SentAt     time.Time
}
