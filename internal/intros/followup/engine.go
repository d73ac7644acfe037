package followup

import (
	"cmp"
	"slices"
	"time"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/platform/phone"

	"github.com/google/uuid"
)

// Options parameterise one classification.
type Options struct {
	// Today is the studio's current calendar date (see domain.DateOf).
	Today       time.Time
	PhoneRegion string
}

// Item is one row of a follow-up bucket.
type Item struct {
	MemberName         string
	IdentityKey        string
	BookingID          uuid.UUID
	RunID              *uuid.UUID
	Date               time.Time
	Time               *string
	Coach              *string
	LeadSource         *string
	Phone              string
	Badge              Badge
	LastContactAt      *time.Time
	LastContactSummary *string
	NextContactDate    *time.Time
	DedupKey           string
}

// Counts are per-bucket sizes for badge display.
type Counts struct {
	NoShow      int
	FollowUp    int
	SecondIntro int
	Reschedule  int
	Total       int
}

// Result holds the four disjoint buckets, each sorted most recent first.
type Result struct {
	NoShow      []Item
	FollowUp    []Item
	SecondIntro []Item
	Reschedule  []Item
	Counts      Counts
}

// Bucket returns the items of one bucket.
func (r Result) Bucket(b Bucket) []Item {
	switch b {
	case BucketNoShow:
		return r.NoShow
	case BucketFollowUp:
		return r.FollowUp
	case BucketSecondIntro:
		return r.SecondIntro
	case BucketReschedule:
		return r.Reschedule
	}
	return nil
}

type candidate struct {
	substate Substate
	anchor   Anchor
}

type classifier struct {
	l          *lookups
	processed  map[uuid.UUID]struct{}
	followUp   map[string]Substate // first follow-up bucket add per key
	candidates map[string][]candidate
	keys       map[string]struct{}
}

// ClassifyStates computes the state of every prospect in the snapshot.
func ClassifyStates(s domain.Snapshot, today time.Time) map[string]State {
	return classify(buildLookups(s, today))
}

func classify(l *lookups) map[string]State {
	c := &classifier{
		l:          l,
		processed:  make(map[uuid.UUID]struct{}),
		followUp:   make(map[string]Substate),
		candidates: make(map[string][]candidate),
		keys:       make(map[string]struct{}),
	}
	c.passRuns()
	c.passBookings()
	return c.resolve()
}

// Classify partitions the snapshot into the follow-up buckets.
func Classify(s domain.Snapshot, opts Options) Result {
	region := opts.PhoneRegion
	if region == "" {
		region = phone.DefaultRegion
	}
	l := buildLookups(s, opts.Today)
	states := classify(l)

	res := Result{NoShow: []Item{}, FollowUp: []Item{}, SecondIntro: []Item{}, Reschedule: []Item{}}
	for key, state := range states {
		bucket, badge, ok := BucketOf(state)
		if !ok {
			continue
		}
		item := newItem(key, state.(Unresolved).Anchor, badge, l, region)
		switch bucket {
		case BucketNoShow:
			res.NoShow = append(res.NoShow, item)
		case BucketFollowUp:
			res.FollowUp = append(res.FollowUp, item)
		case BucketSecondIntro:
			res.SecondIntro = append(res.SecondIntro, item)
		case BucketReschedule:
			res.Reschedule = append(res.Reschedule, item)
		}
	}
	for _, items := range [][]Item{res.NoShow, res.FollowUp, res.SecondIntro, res.Reschedule} {
		slices.SortFunc(items, compareItems)
	}
	res.Counts = Counts{
		NoShow:      len(res.NoShow),
		FollowUp:    len(res.FollowUp),
		SecondIntro: len(res.SecondIntro),
		Reschedule:  len(res.Reschedule),
	}
	res.Counts.Total = res.Counts.NoShow + res.Counts.FollowUp + res.Counts.SecondIntro + res.Counts.Reschedule
	return res
}

// passRuns classifies from runs linked to an eligible booking, newest first.
func (c *classifier) passRuns() {
	l := c.l
	for i := range l.runs {
		r := &l.runs[i]
		if !r.IsLinked() {
			continue
		}
		b, ok := l.booking(*r.LinkedBookingID)
		if !ok {
			continue
		}
		key := b.IdentityKey()
		c.keys[key] = struct{}{}

		outcome := r.Outcome()
		unresolved := outcome == domain.OutcomeUnresolved || outcome == domain.OutcomeUnknown
		if unresolved && !b.IsSecondIntro() {
			// Left for the booking pass, which treats it as having no outcome.
			continue
		}
		c.processed[b.ID] = struct{}{}
		if l.isTerminal(key) || l.isTerminal(r.IdentityKey()) {
			continue
		}

		switch {
		case outcome == domain.OutcomeNoShow:
			if !l.hasFutureUnrun(key) {
				c.add(key, SubstateNoShow, b, r, r.RunDate, noShowContactDays)
			}
		case outcome == domain.OutcomeFollowUpNeeded:
			if _, claimed := l.secondIntroByOrigin[b.ID]; claimed {
				continue
			}
			if c.followUp[key] != SubstateFollowUpB {
				c.addFollowUp(key, SubstateFollowUpA, b, r)
			}
		case b.IsSecondIntro() && !outcome.IsTerminal():
			if _, prior := c.followUp[key]; !prior {
				c.addFollowUp(key, SubstateFollowUpB, b, r)
			}
		case outcome == domain.OutcomePlansToReschedule:
			if !l.hasFutureUnrun(key) {
				c.add(key, SubstatePlanningReschedule, b, r, r.RunDate, rescheduleContactDays)
			}
		}
	}
}

// passBookings classifies bookings the run pass did not process.
func (c *classifier) passBookings() {
	l := c.l
	for _, b := range l.bookings {
		if _, done := c.processed[b.ID]; done {
			continue
		}
		key := b.IdentityKey()
		c.keys[key] = struct{}{}
		if l.isTerminal(key) {
			continue
		}

		past := b.ClassDate.Before(l.today)
		hasRun := l.hasAnyRun(b.ID)
		futureElsewhere := c.futureUnrunOther(key, b.ID)
		unresolvedRun := c.firstLinkedRun(b.ID)

		switch {
		case b.Status == domain.BookingStatusPlanningReschedule:
			if !futureElsewhere {
				c.add(key, SubstatePlanningReschedule, b, nil, b.ClassDate, rescheduleContactDays)
			}
		case b.Status == domain.BookingStatusNoShow:
			if past && !hasRun && !futureElsewhere {
				c.add(key, SubstateNoShow, b, nil, b.ClassDate, noShowContactDays)
			}
		case b.IsSecondIntro():
			if hasRun || b.Status.IsCancelled() {
				continue
			}
			if past {
				c.add(key, SubstateSecondIntroPending, b, nil, b.ClassDate, secondIntroContactDays)
			} else {
				c.addWithoutDate(key, SubstateSecondIntroPending, b)
			}
		case past && b.Status == domain.BookingStatusActive:
			if _, claimed := l.claimedBySecond[key]; claimed || futureElsewhere {
				continue
			}
			c.add(key, SubstateNoOutcome, b, unresolvedRun, b.ClassDate, noOutcomeContactDays)
		}
	}
}

func (c *classifier) futureUnrunOther(key string, self uuid.UUID) bool {
	for _, id := range c.l.futureUnrunByName[key] {
		if id != self {
			return true
		}
	}
	return false
}

// firstLinkedRun returns the newest linked run of a booking, if any.
func (c *classifier) firstLinkedRun(bookingID uuid.UUID) *domain.Run {
	idx := c.l.runsByBooking[bookingID]
	if len(idx) == 0 {
		return nil
	}
	return &c.l.runs[idx[0]]
}

func (c *classifier) addFollowUp(key string, sub Substate, b domain.Booking, r *domain.Run) {
	if _, seen := c.followUp[key]; !seen {
		c.followUp[key] = sub
	} else if sub == SubstateFollowUpB {
		c.followUp[key] = sub
	}
	c.add(key, sub, b, r, r.RunDate, followUpContactDays)
}

func (c *classifier) add(key string, sub Substate, b domain.Booking, r *domain.Run, date time.Time, offset int) {
	next := domain.AddDays(date, offset)
	c.push(key, sub, b, r, date, &next)
}

func (c *classifier) addWithoutDate(key string, sub Substate, b domain.Booking) {
	c.push(key, sub, b, nil, b.ClassDate, nil)
}

func (c *classifier) push(key string, sub Substate, b domain.Booking, r *domain.Run, date time.Time, next *time.Time) {
	// A stored reschedule-contact date wins over the computed default for the
	// no-show and reschedule buckets. Undated items stay undated.
	if next != nil && sub.takesStoredContactDate() && b.RescheduleContactDate != nil {
		stored := *b.RescheduleContactDate
		next = &stored
	}
	c.candidates[key] = append(c.candidates[key], candidate{
		substate: sub,
		anchor:   Anchor{Booking: b, Run: r, Date: date, NextContact: next},
	})
}

// resolve reduces each prospect's candidates to exactly one state. The
// most recently anchored candidate wins; same-day ties go by substate
// precedence, then booking id.
func (c *classifier) resolve() map[string]State {
	states := make(map[string]State, len(c.keys))
	for key := range c.keys {
		if reason, ok := c.l.terminal[key]; ok {
			states[key] = Terminal{Reason: reason}
			continue
		}
		cands := c.candidates[key]
		if len(cands) == 0 {
			states[key] = Settled{}
			continue
		}
		best := slices.MinFunc(cands, func(a, b candidate) int {
			if d := b.anchor.Date.Compare(a.anchor.Date); d != 0 {
				return d
			}
			if d := cmp.Compare(a.substate.precedence(), b.substate.precedence()); d != 0 {
				return d
			}
			return domain.CompareIDs(a.anchor.Booking.ID, b.anchor.Booking.ID)
		})
		states[key] = Unresolved{Substate: best.substate, Anchor: best.anchor}
	}
	return states
}

func newItem(key string, a Anchor, badge Badge, l *lookups, region string) Item {
	b := a.Booking
	item := Item{
		MemberName:      b.MemberName,
		IdentityKey:     key,
		BookingID:       b.ID,
		Date:            a.Date,
		Time:            b.IntroTime,
		Coach:           b.CoachName,
		LeadSource:      b.LeadSource,
		Phone:           phone.NormalizeE164(domain.Deref(b.Phone), region),
		Badge:           badge,
		NextContactDate: a.NextContact,
		DedupKey:        key + ":" + b.ID.String(),
	}
	if r := a.Run; r != nil {
		id := r.ID
		item.RunID = &id
		if r.ClassTime != nil {
			item.Time = r.ClassTime
		}
		if item.Coach == nil {
			item.Coach = r.RanBy
		}
		if item.LeadSource == nil {
			item.LeadSource = r.LeadSource
		}
	}
	if touch, ok := l.lastTouch[b.ID]; ok {
		sent := touch.SentAt
		item.LastContactAt = &sent
		item.LastContactSummary = touch.Summary
	}
	return item
}

func compareItems(a, b Item) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.DedupKey, b.DedupKey)
}
