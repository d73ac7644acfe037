package followup

import (
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/introstest"

	"github.com/google/uuid"
)

var opts = Options{Today: introstest.Today, PhoneRegion: "US"}

func snapshot(bookings []domain.Booking, runs []domain.Run) domain.Snapshot {
	return domain.Snapshot{Bookings: bookings, Runs: runs}
}

func onlyItem(t *testing.T, res Result, bucket Bucket) Item {
	t.Helper()
	if res.Counts.Total != 1 {
		t.Fatalf("expected exactly one item in total, got %+v", res.Counts)
	}
	items := res.Bucket(bucket)
	if len(items) != 1 {
		t.Fatalf("expected one item in %s, got %d", bucket, len(items))
	}
	return items[0]
}

func day(offset int) time.Time { return introstest.Day(offset) }

func TestActiveBookingWithoutRunIsNoOutcome(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, nil), opts), BucketFollowUp)
	if item.Badge != BadgeNoOutcome {
		t.Fatalf("expected no-outcome badge, got %q", item.Badge)
	}
	if item.NextContactDate == nil || !item.NextContactDate.Equal(day(2)) {
		t.Fatalf("expected next contact classDate+3, got %v", item.NextContactDate)
	}
	if item.DedupKey != "alexpark:"+b.ID.String() {
		t.Fatalf("unexpected dedup key %q", item.DedupKey)
	}
}

func TestNoShowRunGoesToNoShow(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "No-show", "Dana")

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, []domain.Run{run}), opts), BucketNoShow)
	if item.RunID == nil || *item.RunID != run.ID {
		t.Fatal("expected run id on item")
	}
	if !item.NextContactDate.Equal(day(-1)) {
		t.Fatalf("expected runDate+1, got %v", item.NextContactDate)
	}
}

func TestNoShowSuppressedByFutureBooking(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "No-show", "Dana")
	rebooked := introstest.NewBooking("alex park", 3)

	res := Classify(snapshot([]domain.Booking{b, rebooked}, []domain.Run{run}), opts)
	if res.Counts.Total != 0 {
		t.Fatalf("expected nothing while a future session is booked, got %+v", res.Counts)
	}
}

func TestSecondIntroClaimsFollowUpRun(t *testing.T) {
	b1 := introstest.NewBooking("Alex Park", -3)
	run := introstest.NewRun(b1, "Follow-up needed", "Dana")
	b2 := introstest.SecondIntro(b1, 4)

	res := Classify(snapshot([]domain.Booking{b1, b2}, []domain.Run{run}), opts)
	if len(res.FollowUp) != 0 {
		t.Fatalf("claimed run must not appear in follow-up, got %+v", res.FollowUp)
	}
	item := onlyItem(t, res, BucketSecondIntro)
	if item.BookingID != b2.ID {
		t.Fatal("expected the second booking in second-intro-pending")
	}
	if item.NextContactDate != nil {
		t.Fatal("future pending second intro has no suggested date")
	}

	stored := day(1)
	b2.RescheduleContactDate = &stored
	item = onlyItem(t, Classify(snapshot([]domain.Booking{b1, b2}, []domain.Run{run}), opts), BucketSecondIntro)
	if item.NextContactDate != nil {
		t.Fatalf("stored contact date must not date a future second intro, got %v", item.NextContactDate)
	}
}

func TestNoShowUsesStoredDate(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "No-show", "Dana")
	stored := day(6)
	b.RescheduleContactDate = &stored

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, []domain.Run{run}), opts), BucketNoShow)
	if !item.NextContactDate.Equal(stored) {
		t.Fatalf("expected stored reschedule date to win, got %v", item.NextContactDate)
	}
}

func TestSecondIntroNoShowWaitsForFutureBooking(t *testing.T) {
	b1 := introstest.NewBooking("Alex Park", -10)
	r1 := introstest.NewRun(b1, "Booked 2nd intro", "Dana")
	b2 := introstest.SecondIntro(b1, -2)
	r2 := introstest.NewRun(b2, "No-show", "Dana")

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b1, b2}, []domain.Run{r1, r2}), opts), BucketNoShow)
	if item.BookingID != b2.ID {
		t.Fatalf("expected the second intro in no-show, got %+v", item)
	}

	rebooked := introstest.NewBooking("alex park", 3)
	res := Classify(snapshot([]domain.Booking{b1, b2, rebooked}, []domain.Run{r1, r2}), opts)
	if res.Counts.Total != 0 {
		t.Fatalf("a no-show second intro with a future session booked stays out of every bucket, got %+v", res.Counts)
	}
}

func TestPastPendingSecondIntroGetsDate(t *testing.T) {
	b1 := introstest.NewBooking("Alex Park", -10)
	run := introstest.NewRun(b1, "Booked 2nd intro", "Dana")
	b2 := introstest.SecondIntro(b1, -2)

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b1, b2}, []domain.Run{run}), opts), BucketSecondIntro)
	if item.NextContactDate == nil || !item.NextContactDate.Equal(day(1)) {
		t.Fatalf("expected classDate+3, got %v", item.NextContactDate)
	}
}

func TestFollowUpNeededIsBadgeA(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "Follow-up needed", "Dana")

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, []domain.Run{run}), opts), BucketFollowUp)
	if item.Badge != BadgeA {
		t.Fatalf("expected badge A, got %q", item.Badge)
	}
}

func TestUndecidedSecondIntroIsBadgeB(t *testing.T) {
	b1 := introstest.NewBooking("Alex Park", -10)
	r1 := introstest.NewRun(b1, "Follow-up needed", "Dana")
	b2 := introstest.SecondIntro(b1, -2)
	r2 := introstest.NewRun(b2, "Booked 2nd intro", "Dana")

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b1, b2}, []domain.Run{r1, r2}), opts), BucketFollowUp)
	if item.Badge != BadgeB || item.BookingID != b2.ID {
		t.Fatalf("expected second intro with badge B, got %+v", item)
	}
}

func TestPlansToRescheduleUsesStoredDate(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "Plans to Reschedule", "Dana")

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, []domain.Run{run}), opts), BucketReschedule)
	if !item.NextContactDate.Equal(day(0)) {
		t.Fatalf("expected runDate+2, got %v", item.NextContactDate)
	}

	stored := day(9)
	b.RescheduleContactDate = &stored
	item = onlyItem(t, Classify(snapshot([]domain.Booking{b}, []domain.Run{run}), opts), BucketReschedule)
	if !item.NextContactDate.Equal(stored) {
		t.Fatalf("expected stored reschedule date to win, got %v", item.NextContactDate)
	}
}

func TestPlanningRescheduleStatus(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -4)
	b.Status = domain.BookingStatusPlanningReschedule

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, nil), opts), BucketReschedule)
	if !item.NextContactDate.Equal(day(-2)) {
		t.Fatalf("expected classDate+2, got %v", item.NextContactDate)
	}
}

func TestNoShowStatusWithoutRun(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -3)
	b.Status = domain.BookingStatusNoShow

	item := onlyItem(t, Classify(snapshot([]domain.Booking{b}, nil), opts), BucketNoShow)
	if !item.NextContactDate.Equal(day(-2)) {
		t.Fatalf("expected classDate+1, got %v", item.NextContactDate)
	}
}

func TestTerminalSuppressesOlderUnresolvedRecords(t *testing.T) {
	old := introstest.NewBooking("Alex Park", -40)
	oldRun := introstest.NewRun(old, "No-show", "Dana")
	pastNoRun := introstest.NewBooking("Alex Park", -20)
	sale := introstest.NewBooking("ALEX PARK", -5)
	saleRun := introstest.NewRun(sale, "Elite + Recovery", "Dana")

	purchased := introstest.NewBooking("Riley Chen", -30)
	purchasedOld := introstest.NewBooking("Riley Chen", -10)
	purchased.Status = domain.BookingStatusClosedPurchased

	declined := introstest.NewBooking("Sam Ortiz", -6)
	declinedRun := introstest.NewRun(declined, "Not Interested", "Lee")
	declinedLater := introstest.NewBooking("Sam Ortiz", -1)

	snap := snapshot(
		[]domain.Booking{old, pastNoRun, sale, purchased, purchasedOld, declined, declinedLater},
		[]domain.Run{oldRun, saleRun, declinedRun},
	)
	if res := Classify(snap, opts); res.Counts.Total != 0 {
		t.Fatalf("terminal prospects must not appear, got %+v", res.Counts)
	}
	states := ClassifyStates(snap, opts.Today)
	if st, ok := states["alexpark"].(Terminal); !ok || st.Reason != TerminalPurchased {
		t.Fatalf("expected purchased terminal state, got %#v", states["alexpark"])
	}
	if st, ok := states["samortiz"].(Terminal); !ok || st.Reason != TerminalNotInterested {
		t.Fatalf("expected not-interested terminal state, got %#v", states["samortiz"])
	}
}

func TestExcludedBookingsNeverQueue(t *testing.T) {
	vip := introstest.NewBooking("Vip Guest", -2)
	vip.Type = domain.BookingTypeVIP
	comp := introstest.NewBooking("Comp Guest", -2)
	comp.Type = domain.BookingTypeComp
	dismissed := introstest.NewBooking("Dismissed Guest", -2)
	at := day(-1)
	dismissed.FollowUpDismissedAt = &at
	deleted := introstest.NewBooking("Deleted Guest", -2)
	deleted.DeletedAt = &at
	ignored := introstest.NewBooking("Ignored Guest", -2)
	ignored.IgnoreFromMetrics = true

	res := Classify(snapshot([]domain.Booking{vip, comp, dismissed, deleted, ignored}, nil), opts)
	if res.Counts.Total != 0 {
		t.Fatalf("expected nothing queued, got %+v", res.Counts)
	}
}

func TestBlankResultTreatedAsNoOutcome(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "", "Dana")
	garbled := introstest.NewBooking("Riley Chen", -2)
	garbledRun := introstest.NewRun(garbled, "???", "Dana")

	res := Classify(snapshot([]domain.Booking{b, garbled}, []domain.Run{run, garbledRun}), opts)
	if len(res.FollowUp) != 2 {
		t.Fatalf("expected both in follow-up, got %+v", res.Counts)
	}
	for _, item := range res.FollowUp {
		if item.Badge != BadgeNoOutcome || item.RunID == nil {
			t.Fatalf("expected no-outcome items referencing the run, got %+v", item)
		}
	}
}

func TestFutureFirstIntroIsSettled(t *testing.T) {
	b := introstest.NewBooking("Alex Park", 2)
	states := ClassifyStates(snapshot([]domain.Booking{b}, nil), opts.Today)
	if _, ok := states["alexpark"].(Settled); !ok {
		t.Fatalf("expected settled, got %#v", states["alexpark"])
	}
}

func TestItemCarriesDisplayFields(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	b.Phone = domain.StringPtr("(650) 253-0000")
	b.CoachName = domain.StringPtr("Coach Lee")
	b.LeadSource = domain.StringPtr("Instagram")
	id := b.ID
	summary := "left voicemail"
	snap := snapshot([]domain.Booking{b}, nil)
	snap.Outreach = []domain.OutreachRecord{
		{ID: uuid.New(), BookingID: &id, SentAt: day(-1).Add(9 * time.Hour)},
		{ID: uuid.New(), BookingID: &id, SentAt: day(0).Add(9 * time.Hour), Summary: &summary},
	}

	item := onlyItem(t, Classify(snap, opts), BucketFollowUp)
	if item.Phone != "+16502530000" {
		t.Fatalf("expected E.164 phone, got %q", item.Phone)
	}
	if domain.Deref(item.Coach) != "Coach Lee" || domain.Deref(item.LeadSource) != "Instagram" {
		t.Fatal("expected coach and lead source from booking")
	}
	if item.LastContactAt == nil || domain.Deref(item.LastContactSummary) != summary {
		t.Fatal("expected newest outreach as last contact")
	}
}

func TestBucketsSortedMostRecentFirst(t *testing.T) {
	var bookings []domain.Booking
	for i, name := range []string{"A One", "B Two", "C Three"} {
		bookings = append(bookings, introstest.NewBooking(name, -1-i*3))
	}
	res := Classify(snapshot(bookings, nil), opts)
	if len(res.FollowUp) != 3 {
		t.Fatalf("expected 3 items, got %d", len(res.FollowUp))
	}
	for i := 1; i < len(res.FollowUp); i++ {
		if res.FollowUp[i].Date.After(res.FollowUp[i-1].Date) {
			t.Fatal("items not sorted by date descending")
		}
	}
}

func TestBucketOf(t *testing.T) {
	cases := []struct {
		state  State
		bucket Bucket
		badge  Badge
		ok     bool
	}{
		{Unresolved{Substate: SubstateNoShow}, BucketNoShow, BadgeNone, true},
		{Unresolved{Substate: SubstateFollowUpA}, BucketFollowUp, BadgeA, true},
		{Unresolved{Substate: SubstateFollowUpB}, BucketFollowUp, BadgeB, true},
		{Unresolved{Substate: SubstateNoOutcome}, BucketFollowUp, BadgeNoOutcome, true},
		{Unresolved{Substate: SubstateSecondIntroPending}, BucketSecondIntro, BadgeNone, true},
		{Unresolved{Substate: SubstatePlanningReschedule}, BucketReschedule, BadgeNone, true},
		{Terminal{Reason: TerminalPurchased}, "", BadgeNone, false},
		{Settled{}, "", BadgeNone, false},
	}
	for _, tc := range cases {
		bucket, badge, ok := BucketOf(tc.state)
		if bucket != tc.bucket || badge != tc.badge || ok != tc.ok {
			t.Fatalf("BucketOf(%#v) = %q %q %v", tc.state, bucket, badge, ok)
		}
	}
}

// randomSnapshot builds a messy population over a small set of names so
// identity keys collide across bookings and runs.
func randomSnapshot(rng *rand.Rand) domain.Snapshot {
	names := []string{"Alex Park", "alex park", "Riley Chen", "Sam Ortiz", "Jo Lee", "  JO  LEE"}
	results := []string{"", "Closed", "Follow-up needed", "Booked 2nd intro", "No-show", "Plans to Reschedule", "Not Interested", "Premier", "follow up", "garbage"}
	statuses := domain.BookingStatuses

	var bookings []domain.Booking
	var runs []domain.Run
	for i := 0; i < 12; i++ {
		b := introstest.NewBooking(names[rng.IntN(len(names))], rng.IntN(30)-20)
		b.Status = statuses[rng.IntN(len(statuses))]
		if len(bookings) > 0 && rng.IntN(3) == 0 {
			origin := bookings[rng.IntN(len(bookings))]
			b.MemberName = origin.MemberName
			originID := origin.ID
			b.OriginatingBookingID = &originID
		}
		bookings = append(bookings, b)
		if rng.IntN(2) == 0 {
			runs = append(runs, introstest.NewRun(b, results[rng.IntN(len(results))], "Dana"))
		}
	}
	return snapshot(bookings, runs)
}

func TestPropertiesOverRandomSnapshots(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for n := 0; n < 300; n++ {
		snap := randomSnapshot(rng)
		res := Classify(snap, opts)

		seen := make(map[string]Bucket)
		for _, bucket := range []Bucket{BucketNoShow, BucketFollowUp, BucketSecondIntro, BucketReschedule} {
			for _, item := range res.Bucket(bucket) {
				if prev, dup := seen[item.IdentityKey]; dup {
					t.Fatalf("snapshot %d: %s in both %s and %s", n, item.IdentityKey, prev, bucket)
				}
				seen[item.IdentityKey] = bucket
			}
		}

		terminal := make(map[string]bool)
		for _, b := range snap.Bookings {
			if b.Status == domain.BookingStatusClosedPurchased && !b.IsDeleted() {
				terminal[b.IdentityKey()] = true
			}
		}
		for _, r := range snap.Runs {
			if r.Outcome() == domain.OutcomeSale {
				terminal[r.IdentityKey()] = true
			}
		}
		for key := range seen {
			if terminal[key] {
				t.Fatalf("snapshot %d: terminal prospect %s queued", n, key)
			}
		}

		again := Classify(snap, opts)
		if !reflect.DeepEqual(res, again) {
			t.Fatalf("snapshot %d: reclassification differs", n)
		}
		if res.Counts.Total != len(seen) {
			t.Fatalf("snapshot %d: total %d != items %d", n, res.Counts.Total, len(seen))
		}
	}
}
