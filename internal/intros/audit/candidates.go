package audit

import (
	"slices"
	"time"

	"intro_sales_backend/internal/intros/domain"

	"github.com/google/uuid"
)

// Candidate is a booking an unlinked run could be linked to.
type Candidate struct {
	BookingID  uuid.UUID
	ClassDate  time.Time
	ExactDate  bool
	DaysApart  int
	MemberName string
}

// LinkCandidates lists active bookings for the run's prospect, best first:
// an exact date match, then the chronologically nearest, then store order.
func LinkCandidates(s domain.Snapshot, run domain.Run) []Candidate {
	key := run.IdentityKey()
	out := []Candidate{}
	for _, b := range s.Bookings {
		if b.IsDeleted() || b.Status != domain.BookingStatusActive || b.IdentityKey() != key {
			continue
		}
		days := daysBetween(b.ClassDate, run.RunDate)
		out = append(out, Candidate{
			BookingID:  b.ID,
			ClassDate:  b.ClassDate,
			ExactDate:  days == 0,
			DaysApart:  days,
			MemberName: b.MemberName,
		})
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		if a.DaysApart != b.DaysApart {
			return a.DaysApart - b.DaysApart
		}
		if c := a.ClassDate.Compare(b.ClassDate); c != 0 {
			return c
		}
		return domain.CompareIDs(a.BookingID, b.BookingID)
	})
	return out
}

// BookingFromRun builds a booking pre-populated from an unlinked run.
func BookingFromRun(run domain.Run, now time.Time) domain.Booking {
	return domain.Booking{
		ID:         uuid.New(),
		MemberName: run.MemberName,
		ClassDate:  run.RunDate,
		IntroTime:  run.ClassTime,
		Status:     domain.BookingStatusActive,
		Type:       domain.BookingTypeRegular,
		LeadSource: run.LeadSource,
		CoachName:  run.RanBy,
		CreatedAt:  now,
	}
}

func daysBetween(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
