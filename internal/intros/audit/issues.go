// Package audit finds drift between bookings and runs and repairs what can be
// repaired without an operator.
package audit

import (
	"slices"

	"intro_sales_backend/internal/intros/domain"

	"github.com/google/uuid"
)

// IssueKind names a detectable inconsistency.
type IssueKind string

const (
	IssueOwnerMismatch       IssueKind = "owner_mismatch"
	IssueCorruptedOwner      IssueKind = "corrupted_owner"
	IssueUnlinkedRun         IssueKind = "unlinked_run"
	IssueMissingBookedBy     IssueKind = "missing_booked_by"
	IssueInvalidOutcome      IssueKind = "invalid_outcome"
	IssueNonCanonicalOutcome IssueKind = "non_canonical_outcome"
)

// IssueKinds lists kinds in report order.
var IssueKinds = []IssueKind{
	IssueCorruptedOwner,
	IssueOwnerMismatch,
	IssueNonCanonicalOutcome,
	IssueInvalidOutcome,
	IssueUnlinkedRun,
	IssueMissingBookedBy,
}

// Issue is one detected inconsistency.
type Issue struct {
	Kind       IssueKind
	BookingID  *uuid.UUID
	RunID      *uuid.UUID
	MemberName string
	// Current is the offending value; Suggested the value a fix would write.
	Current   string
	Suggested string
	// AutoFixable issues are repaired by AutoFix; the rest need an operator.
	AutoFixable bool
	Locked      bool
	Candidates  []Candidate
}

// Report is the result of Detect.
type Report struct {
	Issues []Issue
	Counts map[IssueKind]int
}

// Total returns the number of issues.
func (r Report) Total() int {
	return len(r.Issues)
}

// OfKind returns the issues of one kind.
func (r Report) OfKind(kind IssueKind) []Issue {
	out := []Issue{}
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

// population is the audited subset of a snapshot: ignored and deleted
// records are out of scope.
type population struct {
	bookings []domain.Booking
	runs     []domain.Run
	byID     map[uuid.UUID]int
	runsFor  map[uuid.UUID][]int
}

func newPopulation(s domain.Snapshot) *population {
	p := &population{byID: make(map[uuid.UUID]int), runsFor: make(map[uuid.UUID][]int)}
	for _, b := range s.Bookings {
		if b.IsDeleted() || b.IgnoreFromMetrics {
			continue
		}
		p.bookings = append(p.bookings, b)
	}
	slices.SortFunc(p.bookings, func(a, b domain.Booking) int {
		if c := a.ClassDate.Compare(b.ClassDate); c != 0 {
			return c
		}
		return domain.CompareIDs(a.ID, b.ID)
	})
	for i, b := range p.bookings {
		p.byID[b.ID] = i
	}

	for _, r := range s.Runs {
		if r.DeletedAt != nil || r.IgnoreFromMetrics {
			continue
		}
		p.runs = append(p.runs, r)
	}
	slices.SortFunc(p.runs, domain.RunsOldestFirst)
	p.reindexRuns()
	return p
}

func (p *population) reindexRuns() {
	clear(p.runsFor)
	for i, r := range p.runs {
		if r.IsLinked() {
			p.runsFor[*r.LinkedBookingID] = append(p.runsFor[*r.LinkedBookingID], i)
		}
	}
}

func (p *population) booking(id uuid.UUID) (domain.Booking, bool) {
	i, ok := p.byID[id]
	if !ok {
		return domain.Booking{}, false
	}
	return p.bookings[i], true
}

func (p *population) replaceBooking(b domain.Booking) {
	if i, ok := p.byID[b.ID]; ok {
		p.bookings[i] = b
	}
}

func (p *population) replaceRun(r domain.Run) {
	for i := range p.runs {
		if p.runs[i].ID == r.ID {
			p.runs[i] = r
			return
		}
	}
}

// firstValidRun is the oldest linked run that may credit an owner: not a
// no-show and conducted by a real staff member.
func (p *population) firstValidRun(bookingID uuid.UUID) (domain.Run, bool) {
	for _, i := range p.runsFor[bookingID] {
		r := p.runs[i]
		if r.IsNoShow() || !domain.IsUsableStaffValue(r.EffectiveOwner()) {
			continue
		}
		return r, true
	}
	return domain.Run{}, false
}

// Detect scans a snapshot and reports every issue. It never writes.
func Detect(s domain.Snapshot, vocab *domain.Vocabulary) Report {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	p := newPopulation(s)
	report := Report{Issues: []Issue{}, Counts: make(map[IssueKind]int)}
	add := func(issue Issue) {
		report.Issues = append(report.Issues, issue)
		report.Counts[issue.Kind]++
	}

	for _, b := range p.bookings {
		if domain.LooksLikeTimestamp(b.Owner()) {
			issue := Issue{
				Kind:        IssueCorruptedOwner,
				BookingID:   idPtr(b.ID),
				MemberName:  b.MemberName,
				Current:     b.Owner(),
				AutoFixable: true,
				Locked:      b.IntroOwnerLocked,
			}
			if run, ok := p.firstValidRun(b.ID); ok {
				issue.Suggested = run.EffectiveOwner()
			}
			add(issue)
		}
	}

	for _, r := range p.runs {
		if !r.IsLinked() || r.IsNoShow() {
			continue
		}
		b, ok := p.booking(*r.LinkedBookingID)
		if !ok || domain.LooksLikeTimestamp(b.Owner()) {
			continue
		}
		owner := r.EffectiveOwner()
		if !domain.IsUsableStaffValue(owner) || owner == b.Owner() {
			continue
		}
		first, _ := p.firstValidRun(b.ID)
		add(Issue{
			Kind:        IssueOwnerMismatch,
			BookingID:   idPtr(b.ID),
			RunID:       idPtr(r.ID),
			MemberName:  b.MemberName,
			Current:     b.Owner(),
			Suggested:   owner,
			AutoFixable: !b.HasLockedOwner() && first.ID == r.ID,
			Locked:      b.HasLockedOwner(),
		})
	}

	for _, r := range p.runs {
		raw := r.Result
		canonical, outcome, ok := vocab.Lookup(raw)
		switch {
		case ok && canonical != raw:
			add(Issue{
				Kind:        IssueNonCanonicalOutcome,
				RunID:       idPtr(r.ID),
				BookingID:   r.LinkedBookingID,
				MemberName:  r.MemberName,
				Current:     raw,
				Suggested:   canonical,
				AutoFixable: true,
			})
		case !ok && outcome == domain.OutcomeUnknown:
			add(Issue{
				Kind:       IssueInvalidOutcome,
				RunID:      idPtr(r.ID),
				BookingID:  r.LinkedBookingID,
				MemberName: r.MemberName,
				Current:    raw,
				Suggested:  vocab.Nearest(raw),
			})
		}
	}

	for _, r := range p.runs {
		if r.IsLinked() {
			continue
		}
		candidates := LinkCandidates(s, r)
		issue := Issue{
			Kind:       IssueUnlinkedRun,
			RunID:      idPtr(r.ID),
			MemberName: r.MemberName,
			Candidates: candidates,
		}
		if len(candidates) > 0 {
			issue.Suggested = candidates[0].BookingID.String()
		}
		add(issue)
	}

	for _, b := range p.bookings {
		if b.IsSecondIntro() || domain.IsUsableStaffValue(domain.Deref(b.BookedBy)) {
			continue
		}
		add(Issue{
			Kind:       IssueMissingBookedBy,
			BookingID:  idPtr(b.ID),
			MemberName: b.MemberName,
			Current:    domain.Deref(b.BookedBy),
		})
	}

	return report
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
