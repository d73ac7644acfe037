package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"intro_sales_backend/internal/intros/attribution"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/logger"

	"github.com/google/uuid"
)

// CodeInvalidOutcome rejects a remediation literal outside the vocabulary.
const CodeInvalidOutcome = "invalid_outcome"

// Store is the write surface the auditor needs.
type Store interface {
	attribution.Store
}

// FixResult is the outcome of one record-level fix.
type FixResult struct {
	Kind     IssueKind
	RecordID uuid.UUID
	Applied  bool
	Error    string
}

// BatchResult tallies a bulk operation per record.
type BatchResult struct {
	Succeeded int
	Failed    int
	Items     []FixResult
}

// Attempted returns the number of records the batch touched.
func (b BatchResult) Attempted() int {
	return b.Succeeded + b.Failed
}

func (b *BatchResult) record(kind IssueKind, id uuid.UUID, err error) {
	item := FixResult{Kind: kind, RecordID: id, Applied: err == nil}
	if err != nil {
		item.Error = err.Error()
		b.Failed++
	} else {
		b.Succeeded++
	}
	b.Items = append(b.Items, item)
}

// Auditor applies fixes through a Store.
type Auditor struct {
	store    Store
	resolver *attribution.Resolver
	vocab    *domain.Vocabulary
	log      *logger.Logger
	now      func() time.Time
}

// New creates an auditor. log may be nil.
func New(store Store, resolver *attribution.Resolver, log *logger.Logger) *Auditor {
	return &Auditor{
		store:    store,
		resolver: resolver,
		vocab:    domain.DefaultVocabulary(),
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the audit timestamp source.
func (a *Auditor) WithClock(now func() time.Time) *Auditor {
	a.now = now
	return a
}

// Detect reports issues in s using the auditor's vocabulary.
func (a *Auditor) Detect(s domain.Snapshot) Report {
	return Detect(s, a.vocab)
}

// AutoFix repairs every auto-fixable issue in s. Corrupted owners are
// cleared before owners are re-derived from runs, so a bad value is never
// read back as authoritative. Fixes update the in-memory population as they
// go; running AutoFix again on the store's new state writes nothing.
func (a *Auditor) AutoFix(ctx context.Context, s domain.Snapshot, editor string) BatchResult {
	p := newPopulation(s)
	var result BatchResult

	a.clearCorruptedOwners(ctx, p, editor, &result)
	a.syncOwners(ctx, p, editor, &result)
	a.canonicalizeOutcomes(ctx, p, editor, &result)

	if a.log != nil {
		a.log.BatchSummary("audit_autofix", result.Succeeded, result.Failed)
	}
	return result
}

func (a *Auditor) clearCorruptedOwners(ctx context.Context, p *population, editor string, result *BatchResult) {
	for _, b := range p.bookings {
		if !domain.LooksLikeTimestamp(b.Owner()) {
			continue
		}
		cleared, err := a.store.UpdateBooking(ctx, b.ID, repository.BookingPatch{
			IntroOwner:       repository.SetNull[string](),
			IntroOwnerLocked: repository.Bool(false),
			Edit:             repository.EditStamp{By: editor, Reason: domain.StringPtr(domain.CorruptedOwnerReason), At: a.now()},
		})
		if err != nil {
			a.logFix(IssueCorruptedOwner, b.ID, "clear", err)
			result.record(IssueCorruptedOwner, b.ID, err)
			continue
		}
		p.replaceBooking(cleared)

		if run, ok := p.firstValidRun(b.ID); ok {
			change, err := a.resolver.SetOwnerFromRun(ctx, cleared, run, editor)
			if err != nil {
				a.logFix(IssueCorruptedOwner, b.ID, "rederive", err)
				result.record(IssueCorruptedOwner, b.ID, err)
				continue
			}
			p.replaceBooking(change.Booking)
		}
		a.logFix(IssueCorruptedOwner, b.ID, "cleared", nil)
		result.record(IssueCorruptedOwner, b.ID, nil)
	}
}

func (a *Auditor) syncOwners(ctx context.Context, p *population, editor string, result *BatchResult) {
	for _, b := range p.bookings {
		if b.HasLockedOwner() || domain.LooksLikeTimestamp(b.Owner()) {
			continue
		}
		run, ok := p.firstValidRun(b.ID)
		if !ok || run.EffectiveOwner() == b.Owner() {
			continue
		}
		change, err := a.resolver.SetOwnerFromRun(ctx, b, run, editor)
		if err != nil {
			a.logFix(IssueOwnerMismatch, b.ID, "sync", err)
			result.record(IssueOwnerMismatch, b.ID, err)
			continue
		}
		if change.Written {
			p.replaceBooking(change.Booking)
			a.logFix(IssueOwnerMismatch, b.ID, "synced", nil)
			result.record(IssueOwnerMismatch, b.ID, nil)
		}
	}
}

func (a *Auditor) canonicalizeOutcomes(ctx context.Context, p *population, editor string, result *BatchResult) {
	for _, r := range p.runs {
		canonical, _, ok := a.vocab.Lookup(r.Result)
		if !ok || canonical == r.Result {
			continue
		}
		updated, err := a.store.UpdateRun(ctx, r.ID, repository.RunPatch{
			Result: &canonical,
			Edit:   repository.EditStamp{By: editor, Reason: domain.StringPtr("outcome normalized from " + r.Result), At: a.now()},
		})
		if err != nil {
			a.logFix(IssueNonCanonicalOutcome, r.ID, "normalize", err)
			result.record(IssueNonCanonicalOutcome, r.ID, err)
			continue
		}
		p.replaceRun(updated)
		a.logFix(IssueNonCanonicalOutcome, r.ID, "normalized", nil)
		result.record(IssueNonCanonicalOutcome, r.ID, nil)
	}
}

// AssignBookedBy writes value as the booked-by staff on each booking,
// continuing past individual failures.
func (a *Auditor) AssignBookedBy(ctx context.Context, bookingIDs []uuid.UUID, value, editor string) (BatchResult, error) {
	value = strings.TrimSpace(value)
	if !domain.IsUsableStaffValue(value) {
		return BatchResult{}, apperr.Validation("booked-by must be a staff name").WithCode(attribution.CodeInvalidOwner)
	}

	var result BatchResult
	seen := make(map[uuid.UUID]struct{}, len(bookingIDs))
	for _, id := range bookingIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		_, err := a.store.UpdateBooking(ctx, id, repository.BookingPatch{
			BookedBy: repository.SetTo(value),
			Edit:     repository.EditStamp{By: editor, Reason: domain.StringPtr("booked-by assigned"), At: a.now()},
		})
		a.logFix(IssueMissingBookedBy, id, "assigned", err)
		result.record(IssueMissingBookedBy, id, err)
	}
	if a.log != nil {
		a.log.BatchSummary("assign_booked_by", result.Succeeded, result.Failed)
	}
	return result, nil
}

// ResolveOutcome rewrites an invalid result literal. A blank choice maps to
// the nearest controlled value, or the default remediation outcome.
func (a *Auditor) ResolveOutcome(ctx context.Context, run domain.Run, choice, editor string) (domain.Run, error) {
	target := strings.TrimSpace(choice)
	if target == "" {
		target = a.vocab.Nearest(run.Result)
	}
	canonical, _, ok := a.vocab.Lookup(target)
	if !ok {
		return run, apperr.Validation("outcome is not in the controlled vocabulary").
			WithCode(CodeInvalidOutcome).
			WithDetails(map[string]interface{}{"allowed": a.vocab.Canonicals()})
	}
	if canonical == run.Result {
		return run, nil
	}

	updated, err := a.store.UpdateRun(ctx, run.ID, repository.RunPatch{
		Result: &canonical,
		Edit:   repository.EditStamp{By: editor, Reason: domain.StringPtr("outcome resolved from " + run.Result), At: a.now()},
	})
	a.logFix(IssueInvalidOutcome, run.ID, canonical, err)
	if err != nil {
		return run, err
	}
	return updated, nil
}

func (a *Auditor) logFix(kind IssueKind, id uuid.UUID, outcome string, err error) {
	if a.log == nil {
		return
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindConflict {
		outcome = "skipped_locked"
	}
	a.log.AuditFix(string(kind), id.String(), outcome, err)
}
