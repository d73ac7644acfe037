package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"intro_sales_backend/internal/events"
	"intro_sales_backend/internal/intros/attribution"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/introstest"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/redislock"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const editor = "Manager Kim"

type stubConfig struct{}

func (stubConfig) GetFollowUpLookbackDays() int      { return 90 }
func (stubConfig) GetStudioLocation() *time.Location { return time.UTC }
func (stubConfig) GetPhoneDefaultRegion() string     { return "US" }

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) Handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, event.EventName())
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type fixture struct {
	svc   *Service
	store *introstest.Store
	bus   *events.InMemoryBus
	rec   *recorder
}

func newFixture(bookings []domain.Booking, runs []domain.Run) fixture {
	store := introstest.NewStore(bookings, runs)
	bus := events.NewInMemoryBus(nil)
	rec := &recorder{}
	for _, name := range []string{
		events.IntroOwnerAssigned{}.EventName(),
		events.IntroOwnerOverridden{}.EventName(),
		events.IntroOwnerCleared{}.EventName(),
		events.AuditFixApplied{}.EventName(),
		events.FollowUpContactLogged{}.EventName(),
		events.FollowUpDismissed{}.EventName(),
	} {
		bus.Subscribe(name, rec)
	}
	svc := New(store, bus, stubConfig{}, nil).WithClock(func() time.Time {
		return introstest.Today.Add(12 * time.Hour)
	})
	return fixture{svc: svc, store: store, bus: bus, rec: rec}
}

func (f fixture) events() []string {
	f.bus.Wait()
	return f.rec.seen()
}

func owner(name string) transport.OptionalString {
	return transport.OptionalString{Present: true, Value: &name}
}

func TestFollowUpQueueClassifiesWindow(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -3)
	run := introstest.NewRun(b, "Follow-up needed", "Dana")
	f := newFixture([]domain.Booking{b}, []domain.Run{run})

	today, res, err := f.svc.FollowUpQueue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !today.Equal(introstest.Today) {
		t.Fatalf("expected today %s, got %s", introstest.Today, today)
	}
	if res.Counts.FollowUp != 1 || res.Counts.Total != 1 {
		t.Fatalf("expected one follow-up, got %+v", res.Counts)
	}
}

func TestFollowUpQueueIgnoresRecordsOutsideLookback(t *testing.T) {
	b := introstest.NewBooking("Old Lead", -120)
	run := introstest.NewRun(b, "Follow-up needed", "Dana")
	f := newFixture([]domain.Booking{b}, []domain.Run{run})

	counts, err := f.svc.FollowUpCounts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Total != 0 {
		t.Fatalf("expected empty queue, got %+v", counts)
	}
}

func TestFollowUpQueueFailsWholeOnReadError(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -3)
	f := newFixture([]domain.Booking{b}, nil)
	f.store.FailListOutreach = errors.New("connection reset")

	_, res, err := f.svc.FollowUpQueue(context.Background())
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if res.Counts.Total != 0 || len(res.NoShow)+len(res.FollowUp) != 0 {
		t.Fatalf("expected no partial result, got %+v", res)
	}
}

func TestLogRunCreditsFirstRun(t *testing.T) {
	b := introstest.NewBooking("Alex Park", 0)
	f := newFixture([]domain.Booking{b}, nil)
	id := b.ID

	run, saga, err := f.svc.LogRun(context.Background(), transport.CreateRunRequest{
		MemberName:      "Alex Park",
		LinkedBookingID: &id,
		RunDate:         "2025-06-15",
		Result:          "premier",
		RanBy:           domain.StringPtr("Dana"),
	}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saga == nil || saga.State != attribution.SagaCompleted {
		t.Fatalf("expected completed saga, got %+v", saga)
	}
	if run.Result != "Premier" {
		t.Fatalf("expected canonical result Premier, got %q", run.Result)
	}
	got := f.store.Booking(b.ID)
	if got.Owner() != "Dana" || !got.IntroOwnerLocked {
		t.Fatalf("expected Dana locked, got %q locked=%v", got.Owner(), got.IntroOwnerLocked)
	}
	if names := f.events(); len(names) != 1 || names[0] != "intros.owner.assigned" {
		t.Fatalf("expected one owner.assigned event, got %v", names)
	}
}

func TestLogRunNoShowLeavesOwnerUnset(t *testing.T) {
	b := introstest.NewBooking("Alex Park", 0)
	f := newFixture([]domain.Booking{b}, nil)
	id := b.ID

	_, saga, err := f.svc.LogRun(context.Background(), transport.CreateRunRequest{
		MemberName:      "Alex Park",
		LinkedBookingID: &id,
		RunDate:         "2025-06-15",
		Result:          "No-show",
		RanBy:           domain.StringPtr("Dana"),
	}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saga.State != attribution.SagaSkipped {
		t.Fatalf("expected skipped saga, got %s", saga.State)
	}
	if f.store.Booking(b.ID).IntroOwner != nil {
		t.Fatal("no-show must not set an owner")
	}
	if names := f.events(); len(names) != 0 {
		t.Fatalf("expected no events, got %v", names)
	}
}

func TestLogRunReportsHalfWrittenSaga(t *testing.T) {
	b := introstest.NewBooking("Alex Park", 0)
	f := newFixture([]domain.Booking{b}, nil)
	f.store.FailUpdateBooking = func(uuid.UUID) error { return errors.New("timeout") }
	id := b.ID

	run, saga, err := f.svc.LogRun(context.Background(), transport.CreateRunRequest{
		MemberName:      "Alex Park",
		LinkedBookingID: &id,
		RunDate:         "2025-06-15",
		Result:          "Closed",
		RanBy:           domain.StringPtr("Dana"),
	}, editor)
	if err != nil {
		t.Fatalf("run was stored, expected no error, got %v", err)
	}
	if saga.State != attribution.SagaRunWritten {
		t.Fatalf("expected run_written, got %s", saga.State)
	}
	if !f.store.Run(run.ID).IntroOwnerLocked {
		t.Fatal("expected the run-side write to have landed")
	}
}

func TestLogRunRejectsBadDate(t *testing.T) {
	f := newFixture(nil, nil)
	_, _, err := f.svc.LogRun(context.Background(), transport.CreateRunRequest{MemberName: "A", RunDate: "06/15/2025"}, editor)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestOverrideOwnerRequiresReasonWhenLocked(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	b.IntroOwner = domain.StringPtr("Dana")
	b.IntroOwnerLocked = true
	f := newFixture([]domain.Booking{b}, nil)

	_, err := f.svc.OverrideOwner(context.Background(), b.ID, transport.OverrideOwnerRequest{Owner: owner("Sam")}, editor)
	if apperr.GetCode(err) != attribution.CodeOverrideReasonRequired {
		t.Fatalf("expected reason-required code, got %v", err)
	}
	if f.store.Writes() != 0 {
		t.Fatal("failed override must not write")
	}

	change, err := f.svc.OverrideOwner(context.Background(), b.ID, transport.OverrideOwnerRequest{
		Owner:  owner("Sam"),
		Reason: "<b>credited</b> wrong coach",
	}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.PreviousOwner != "Dana" || change.Booking.Owner() != "Sam" {
		t.Fatalf("unexpected change %+v", change)
	}
	if got := domain.Deref(f.store.Booking(b.ID).LastEditedReason); got != "credited wrong coach" {
		t.Fatalf("expected sanitized reason, got %q", got)
	}
	if names := f.events(); len(names) != 1 || names[0] != "intros.owner.overridden" {
		t.Fatalf("expected owner.overridden event, got %v", names)
	}
}

func TestOverrideOwnerClearPublishesCleared(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	b.IntroOwner = domain.StringPtr("Dana")
	b.IntroOwnerLocked = true
	f := newFixture([]domain.Booking{b}, nil)

	_, err := f.svc.OverrideOwner(context.Background(), b.ID, transport.OverrideOwnerRequest{
		Owner:  transport.OptionalString{Present: true},
		Reason: "duplicate credit",
	}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := f.store.Booking(b.ID)
	if got.IntroOwner != nil || got.IntroOwnerLocked {
		t.Fatalf("expected cleared and unlocked, got %+v", got)
	}
	if names := f.events(); len(names) != 1 || names[0] != "intros.owner.cleared" {
		t.Fatalf("expected owner.cleared event, got %v", names)
	}
}

func TestOverrideOwnerRequiresField(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	f := newFixture([]domain.Booking{b}, nil)

	_, err := f.svc.OverrideOwner(context.Background(), b.ID, transport.OverrideOwnerRequest{}, editor)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLinkRunCreditsUnlockedBooking(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	run := introstest.NewRun(b, "Closed", "Dana")
	run.LinkedBookingID = nil
	f := newFixture([]domain.Booking{b}, []domain.Run{run})

	linked, saga, err := f.svc.LinkRun(context.Background(), run.ID, transport.LinkRunRequest{BookingID: b.ID}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if linked.LinkedBookingID == nil || *linked.LinkedBookingID != b.ID {
		t.Fatal("expected run to be linked")
	}
	if saga.State != attribution.SagaCompleted || f.store.Booking(b.ID).Owner() != "Dana" {
		t.Fatalf("expected Dana credited, saga %s", saga.State)
	}
}

func TestLinkRunRejectsArchivedBooking(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	archived := introstest.Day(-1)
	b.DeletedAt = &archived
	run := introstest.NewRun(b, "Closed", "Dana")
	run.LinkedBookingID = nil
	f := newFixture([]domain.Booking{b}, []domain.Run{run})

	_, _, err := f.svc.LinkRun(context.Background(), run.ID, transport.LinkRunRequest{BookingID: b.ID}, editor)
	if apperr.GetCode(err) != CodeBookingArchived {
		t.Fatalf("expected archived code, got %v", err)
	}
}

func TestCreateBookingFromRun(t *testing.T) {
	origin := introstest.NewBooking("Jamie Fox", -4)
	run := introstest.NewRun(origin, "Closed", "Dana")
	run.LinkedBookingID = nil
	f := newFixture(nil, []domain.Run{run})

	b, saga, err := f.svc.CreateBookingFromRun(context.Background(), run.ID, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saga.State != attribution.SagaCompleted {
		t.Fatalf("expected completed saga, got %s", saga.State)
	}
	stored := f.store.Booking(b.ID)
	if stored.Owner() != "Dana" || stored.BookedBy != nil {
		t.Fatalf("expected owner Dana and blank booked-by, got %+v", stored)
	}
	if linked := f.store.Run(run.ID).LinkedBookingID; linked == nil || *linked != b.ID {
		t.Fatal("expected run to be linked to the new booking")
	}

	_, _, err = f.svc.CreateBookingFromRun(context.Background(), run.ID, editor)
	if apperr.GetCode(err) != CodeRunAlreadyLinked {
		t.Fatalf("expected already-linked code, got %v", err)
	}
}

func TestHardDeleteRequiresConfirmation(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	f := newFixture([]domain.Booking{b}, nil)

	err := f.svc.HardDeleteBooking(context.Background(), b.ID, transport.HardDeleteRequest{Confirmation: "delete"})
	if apperr.GetCode(err) != CodeHardDeleteConfirmation {
		t.Fatalf("expected confirmation code, got %v", err)
	}
	if err := f.svc.HardDeleteBooking(context.Background(), b.ID, transport.HardDeleteRequest{Confirmation: "DELETE"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.store.GetBooking(context.Background(), b.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected booking gone, got %v", err)
	}
}

func TestArchiveAndIgnore(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	run := introstest.NewRun(b, "Closed", "Dana")
	f := newFixture([]domain.Booking{b}, []domain.Run{run})
	ctx := context.Background()

	if _, err := f.svc.SetBookingIgnored(ctx, b.ID, true, editor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.ArchiveRun(ctx, run.ID, editor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.store.Booking(b.ID).IgnoreFromMetrics {
		t.Fatal("expected booking ignored")
	}
	if f.store.Run(run.ID).DeletedAt == nil {
		t.Fatal("expected run archived")
	}
}

func TestUpdateBookingStatusRejectsUnknown(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -1)
	f := newFixture([]domain.Booking{b}, nil)

	_, err := f.svc.UpdateBookingStatus(context.Background(), b.ID, transport.UpdateBookingStatusRequest{Status: "maybe"}, editor)
	if apperr.GetCode(err) != CodeInvalidStatus {
		t.Fatalf("expected invalid status code, got %v", err)
	}
	got, err := f.svc.UpdateBookingStatus(context.Background(), b.ID, transport.UpdateBookingStatusRequest{Status: "planning to reschedule"}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.BookingStatusPlanningReschedule {
		t.Fatalf("expected planning-reschedule, got %s", got.Status)
	}
}

func TestDismissRemovesFromQueue(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -3)
	run := introstest.NewRun(b, "Follow-up needed", "Dana")
	f := newFixture([]domain.Booking{b}, []domain.Run{run})
	ctx := context.Background()

	if _, err := f.svc.DismissFollowUp(ctx, b.ID, editor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counts, err := f.svc.FollowUpCounts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts.Total != 0 {
		t.Fatalf("expected dismissed booking to leave the queue, got %+v", counts)
	}
	if names := f.events(); len(names) != 1 || names[0] != "intros.followup.dismissed" {
		t.Fatalf("expected followup.dismissed, got %v", names)
	}
}

func TestRescheduleContactDateSetAndClear(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -3)
	f := newFixture([]domain.Booking{b}, nil)
	ctx := context.Background()
	date := "2025-06-20"

	got, err := f.svc.SetRescheduleContactDate(ctx, b.ID, transport.RescheduleContactRequest{Date: &date}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RescheduleContactDate == nil || domain.FormatDate(*got.RescheduleContactDate) != date {
		t.Fatalf("expected %s, got %v", date, got.RescheduleContactDate)
	}
	got, err = f.svc.SetRescheduleContactDate(ctx, b.ID, transport.RescheduleContactRequest{}, editor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RescheduleContactDate != nil {
		t.Fatal("expected date cleared")
	}
}

func TestLogContactFeedsLastContact(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -3)
	run := introstest.NewRun(b, "Follow-up needed", "Dana")
	f := newFixture([]domain.Booking{b}, []domain.Run{run})
	ctx := context.Background()

	rec, err := f.svc.LogContact(ctx, b.ID, transport.LogContactRequest{
		Channel: "text",
		Summary: domain.StringPtr("sent class times"),
	}, "Dana")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.SentBy != "Dana" || len(f.store.Outreach()) != 1 {
		t.Fatalf("expected one stored contact, got %+v", f.store.Outreach())
	}

	_, res, err := f.svc.FollowUpQueue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.FollowUp) != 1 || domain.Deref(res.FollowUp[0].LastContactSummary) != "sent class times" {
		t.Fatalf("expected last contact on the item, got %+v", res.FollowUp)
	}
}

func TestAutoFixPublishesSummary(t *testing.T) {
	b := introstest.NewBooking("Alex Park", -2)
	b.IntroOwner = domain.StringPtr("2025-06-13 10:42:00")
	run := introstest.NewRun(b, "Closed", "Dana")
	f := newFixture([]domain.Booking{b}, []domain.Run{run})

	result, err := f.svc.AutoFix(context.Background(), editor, TriggerManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 0 || result.Succeeded == 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.store.Booking(b.ID).Owner() != "Dana" {
		t.Fatalf("expected corrupted owner replaced by Dana, got %q", f.store.Booking(b.ID).Owner())
	}
	if names := f.events(); len(names) != 1 || names[0] != "intros.audit.fix_applied" {
		t.Fatalf("expected fix_applied event, got %v", names)
	}

	report, err := f.svc.Audit(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total() != 0 {
		t.Fatalf("expected clean audit after auto-fix, got %+v", report.Issues)
	}
}

func TestAutoFixGuardRejectsConcurrentRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redislock.New(client, "")

	f := newFixture(nil, nil)
	f.svc.SetAutoFixGuard(locker, time.Minute)

	held, err := locker.Obtain(context.Background(), autoFixLockName, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.AutoFix(context.Background(), editor, TriggerScheduled); apperr.GetCode(err) != CodeAutoFixRunning {
		t.Fatalf("expected in-progress conflict, got %v", err)
	}
	if err := held.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := f.svc.AutoFix(context.Background(), editor, TriggerScheduled); err != nil {
		t.Fatalf("expected run after release, got %v", err)
	}
	if mr.Exists(autoFixLockName) {
		t.Fatal("expected the service to release its lock")
	}
}

type stubEnqueuer struct {
	requestedBy []string
	err         error
}

func (s *stubEnqueuer) EnqueueAutoFix(_ context.Context, requestedBy string) error {
	s.requestedBy = append(s.requestedBy, requestedBy)
	return s.err
}

func TestEnqueueAutoFix(t *testing.T) {
	f := newFixture(nil, nil)
	if err := f.svc.EnqueueAutoFix(context.Background(), editor); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable without a queue, got %v", err)
	}

	q := &stubEnqueuer{}
	f.svc.SetAutoFixEnqueuer(q)
	if err := f.svc.EnqueueAutoFix(context.Background(), editor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.requestedBy) != 1 || q.requestedBy[0] != editor {
		t.Fatalf("expected one enqueue by %s, got %v", editor, q.requestedBy)
	}
}

func TestLinkCandidatesOrdersByDate(t *testing.T) {
	near := introstest.NewBooking("Alex Park", -1)
	far := introstest.NewBooking("alex  park", -10)
	other := introstest.NewBooking("Sam Lee", -1)
	run := introstest.NewRun(near, "Closed", "Dana")
	run.LinkedBookingID = nil
	f := newFixture([]domain.Booking{far, near, other}, []domain.Run{run})

	cands, err := f.svc.LinkCandidates(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 || cands[0].BookingID != near.ID || !cands[0].ExactDate {
		t.Fatalf("expected exact-date booking first, got %+v", cands)
	}
}
