package service

import (
	"context"
	"strings"

	"intro_sales_backend/internal/events"
	"intro_sales_backend/internal/intros/attribution"
	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/sanitize"

	"github.com/google/uuid"
)

// OverrideOwner sets or clears a booking's owner through the lock-aware path.
func (s *Service) OverrideOwner(ctx context.Context, bookingID uuid.UUID, req transport.OverrideOwnerRequest, editor string) (attribution.Change, error) {
	if !req.Owner.Present {
		return attribution.Change{}, apperr.Validation("owner is required; send null to clear")
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return attribution.Change{}, err
	}

	var owner *string
	if req.Owner.Value != nil {
		owner = domain.StringPtr(sanitize.Name(*req.Owner.Value))
	}
	reason := sanitize.Text(req.Reason)

	change, err := s.resolver.OverrideOwner(ctx, b, owner, reason, editor)
	if err != nil || !change.Written {
		return change, err
	}

	if owner == nil {
		s.publish(ctx, events.IntroOwnerCleared{
			BaseEvent:     events.NewBaseEvent(),
			BookingID:     b.ID,
			PreviousOwner: change.PreviousOwner,
			Reason:        reason,
			EditedBy:      editor,
		})
	} else {
		s.publish(ctx, events.IntroOwnerOverridden{
			BaseEvent:     events.NewBaseEvent(),
			BookingID:     b.ID,
			Owner:         *owner,
			PreviousOwner: change.PreviousOwner,
			Reason:        reason,
			EditedBy:      editor,
		})
	}
	return change, nil
}

// LogRun records a run. When it is linked, the first-run-becomes-owner
// saga runs next; its state is returned even when a step failed, because
// the run itself has been stored.
func (s *Service) LogRun(ctx context.Context, req transport.CreateRunRequest, editor string) (domain.Run, *attribution.Saga, error) {
	runDate, err := domain.ParseDate(req.RunDate)
	if err != nil {
		return domain.Run{}, nil, apperr.Validation("runDate must be YYYY-MM-DD")
	}

	var booking *domain.Booking
	if req.LinkedBookingID != nil {
		b, err := s.store.GetBooking(ctx, *req.LinkedBookingID)
		if err != nil {
			return domain.Run{}, nil, err
		}
		if b.IsDeleted() {
			return domain.Run{}, nil, apperr.Conflict("booking is archived").WithCode(CodeBookingArchived)
		}
		booking = &b
	}

	run := domain.Run{
		ID:               uuid.New(),
		MemberName:       sanitize.Name(req.MemberName),
		LinkedBookingID:  req.LinkedBookingID,
		RunDate:          runDate,
		ClassTime:        sanitize.TextPtr(req.ClassTime),
		Result:           s.normalizeResult(req.Result),
		IntroOwner:       staffPtr(req.IntroOwner),
		RanBy:            staffPtr(req.RanBy),
		LeadSource:       sanitize.TextPtr(req.LeadSource),
		CommissionAmount: req.CommissionAmount,
		Notes:            sanitize.TextPtr(req.Notes),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return domain.Run{}, nil, err
	}
	if booking == nil {
		return run, nil, nil
	}

	saga := s.creditFirstRun(ctx, *booking, run, editor)
	return saga.Run, &saga, nil
}

// LinkRun attaches a run to a booking and credits the owner when the
// booking has none locked yet.
func (s *Service) LinkRun(ctx context.Context, runID uuid.UUID, req transport.LinkRunRequest, editor string) (domain.Run, *attribution.Saga, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return domain.Run{}, nil, err
	}
	b, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return domain.Run{}, nil, err
	}
	if b.IsDeleted() {
		return domain.Run{}, nil, apperr.Conflict("booking is archived").WithCode(CodeBookingArchived)
	}

	id := b.ID
	linked, err := s.store.UpdateRun(ctx, runID, repository.RunPatch{
		LinkedBookingID: repository.SetTo(id),
		Edit:            s.stamp(editor, "run linked to booking"),
	})
	if err != nil {
		return domain.Run{}, nil, err
	}

	saga := s.creditFirstRun(ctx, b, linked, editor)
	return saga.Run, &saga, nil
}

// CreateBookingFromRun creates a booking for an unlinked run and links them.
func (s *Service) CreateBookingFromRun(ctx context.Context, runID uuid.UUID, editor string) (domain.Booking, *attribution.Saga, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return domain.Booking{}, nil, err
	}
	if run.IsLinked() {
		return domain.Booking{}, nil, apperr.Conflict("run is already linked to a booking").WithCode(CodeRunAlreadyLinked)
	}

	b := audit.BookingFromRun(run, s.now().UTC())
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return domain.Booking{}, nil, err
	}
	linked, err := s.store.UpdateRun(ctx, run.ID, repository.RunPatch{
		LinkedBookingID: repository.SetTo(b.ID),
		Edit:            s.stamp(editor, "booking created from run"),
	})
	if err != nil {
		return b, nil, err
	}

	saga := s.creditFirstRun(ctx, b, linked, editor)
	if saga.State == attribution.SagaCompleted {
		b = saga.Booking
	}
	return b, &saga, nil
}

func (s *Service) creditFirstRun(ctx context.Context, b domain.Booking, run domain.Run, editor string) attribution.Saga {
	previous := b.Owner()
	saga, err := s.resolver.FirstRunBecomesOwner(ctx, b, run, editor)
	if err != nil {
		if s.log != nil {
			s.log.WithContext(ctx).Warn("owner saga incomplete", "run_id", run.ID, "booking_id", b.ID, "state", saga.State, "error", err)
		}
		return saga
	}
	if saga.State == attribution.SagaCompleted {
		s.publish(ctx, events.IntroOwnerAssigned{
			BaseEvent:     events.NewBaseEvent(),
			BookingID:     b.ID,
			RunID:         run.ID,
			Owner:         saga.Owner,
			PreviousOwner: previous,
			EditedBy:      editor,
		})
	}
	return saga
}

// normalizeResult stores known literals in canonical form. Unknown literals
// are kept as typed so the auditor can flag them.
func (s *Service) normalizeResult(raw string) string {
	trimmed := strings.TrimSpace(sanitize.Text(raw))
	if canonical, _, ok := s.vocab.Lookup(trimmed); ok {
		return canonical
	}
	return trimmed
}

func staffPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return domain.StringPtr(sanitize.Name(*value))
}
