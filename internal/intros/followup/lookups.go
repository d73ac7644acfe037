package followup

import (
	"slices"
	"time"

	"intro_sales_backend/internal/intros/domain"

	"github.com/google/uuid"
)

// lookups are precomputed once per classification, keyed by identity key
// unless noted.
type lookups struct {
	today time.Time

	// bookings and runs eligible for the queue.
	bookings []domain.Booking
	runs     []domain.Run
	eligible map[uuid.UUID]int

	terminal            map[string]TerminalReason
	futureUnrunByName   map[string][]uuid.UUID
	secondIntroByOrigin map[uuid.UUID]uuid.UUID // origin booking id -> pending second intro id
	claimedBySecond     map[string]struct{}
	runsByBooking       map[uuid.UUID][]int
	lastTouch           map[uuid.UUID]domain.OutreachRecord // booking id -> newest record
}

func eligibleBooking(b domain.Booking) bool {
	return !b.IsDeleted() && !b.IgnoreFromMetrics && b.FollowUpDismissedAt == nil && !b.Type.ExcludedFromFollowUp()
}

func buildLookups(s domain.Snapshot, today time.Time) *lookups {
	l := &lookups{
		today:               today,
		eligible:            make(map[uuid.UUID]int),
		terminal:            make(map[string]TerminalReason),
		futureUnrunByName:   make(map[string][]uuid.UUID),
		secondIntroByOrigin: make(map[uuid.UUID]uuid.UUID),
		claimedBySecond:     make(map[string]struct{}),
		runsByBooking:       make(map[uuid.UUID][]int),
		lastTouch:           make(map[uuid.UUID]domain.OutreachRecord),
	}

	// Terminal state is read from every live record, including ones the
	// queue itself ignores: a purchase on a dismissed booking is still a purchase.
	for _, b := range s.Bookings {
		if b.IsDeleted() {
			continue
		}
		switch b.Status {
		case domain.BookingStatusClosedPurchased:
			l.markTerminal(b.IdentityKey(), TerminalPurchased)
		case domain.BookingStatusNotInterested:
			l.markTerminal(b.IdentityKey(), TerminalNotInterested)
		}
	}
	for _, r := range s.Runs {
		if r.DeletedAt != nil {
			continue
		}
		switch r.Outcome() {
		case domain.OutcomeSale:
			l.markTerminal(r.IdentityKey(), TerminalPurchased)
		case domain.OutcomeNotInterested:
			l.markTerminal(r.IdentityKey(), TerminalNotInterested)
		}
	}

	for _, b := range s.Bookings {
		if eligibleBooking(b) {
			l.bookings = append(l.bookings, b)
		}
	}
	// Newest first: the most recent record of a prospect is seen first by
	// both passes.
	slices.SortFunc(l.bookings, func(a, b domain.Booking) int {
		if c := b.ClassDate.Compare(a.ClassDate); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return domain.CompareIDs(a.ID, b.ID)
	})
	for i, b := range l.bookings {
		l.eligible[b.ID] = i
	}

	for _, r := range s.Runs {
		if r.DeletedAt != nil || r.IgnoreFromMetrics {
			continue
		}
		l.runs = append(l.runs, r)
	}
	slices.SortFunc(l.runs, func(a, b domain.Run) int { return domain.RunsOldestFirst(b, a) })
	for i, r := range l.runs {
		if r.IsLinked() {
			l.runsByBooking[*r.LinkedBookingID] = append(l.runsByBooking[*r.LinkedBookingID], i)
		}
	}

	for _, b := range l.bookings {
		if b.ClassDate.Before(today) || b.Status.IsCancelled() || l.hasAnyRun(b.ID) {
			continue
		}
		key := b.IdentityKey()
		l.futureUnrunByName[key] = append(l.futureUnrunByName[key], b.ID)
		if b.IsSecondIntro() {
			l.secondIntroByOrigin[*b.OriginatingBookingID] = b.ID
			l.claimedBySecond[key] = struct{}{}
		}
	}

	for _, rec := range s.Outreach {
		if rec.BookingID == nil {
			continue
		}
		if prev, ok := l.lastTouch[*rec.BookingID]; !ok || rec.SentAt.After(prev.SentAt) {
			l.lastTouch[*rec.BookingID] = rec
		}
	}
	return l
}

func (l *lookups) markTerminal(key string, reason TerminalReason) {
	if l.terminal[key] == TerminalPurchased {
		return
	}
	l.terminal[key] = reason
}

func (l *lookups) isTerminal(key string) bool {
	_, ok := l.terminal[key]
	return ok
}

func (l *lookups) hasFutureUnrun(key string) bool {
	return len(l.futureUnrunByName[key]) > 0
}

func (l *lookups) hasAnyRun(bookingID uuid.UUID) bool {
	return len(l.runsByBooking[bookingID]) > 0
}

// hasResolvedRun reports a linked run with a recognised result. Blank or
// unknown results leave the booking unresolved.
func (l *lookups) hasResolvedRun(bookingID uuid.UUID) bool {
	for _, i := range l.runsByBooking[bookingID] {
		switch l.runs[i].Outcome() {
		case domain.OutcomeUnresolved, domain.OutcomeUnknown:
			continue
		}
		return true
	}
	return false
}

func (l *lookups) booking(id uuid.UUID) (domain.Booking, bool) {
	i, ok := l.eligible[id]
	if !ok {
		return domain.Booking{}, false
	}
	return l.bookings[i], true
}
