package service

import (
	"context"
	"strings"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/apperr"

	"github.com/google/uuid"
)

// UpdateBookingStatus sets a booking's lifecycle status.
func (s *Service) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, req transport.UpdateBookingStatusRequest, editor string) (domain.Booking, error) {
	status, ok := domain.ParseBookingStatus(req.Status)
	if !ok {
		allowed := make([]string, 0, len(domain.BookingStatuses))
		for _, st := range domain.BookingStatuses {
			allowed = append(allowed, string(st))
		}
		return domain.Booking{}, apperr.Validation("unknown booking status").
			WithCode(CodeInvalidStatus).
			WithDetails(map[string]interface{}{"allowed": allowed})
	}

	return s.store.UpdateBooking(ctx, bookingID, repository.BookingPatch{
		Status: &status,
		Edit:   s.stamp(editor, "status set to "+string(status)),
	})
}

// SetBookingIgnored toggles whether a booking counts toward metrics.
func (s *Service) SetBookingIgnored(ctx context.Context, bookingID uuid.UUID, ignore bool, editor string) (domain.Booking, error) {
	return s.store.UpdateBooking(ctx, bookingID, repository.BookingPatch{
		IgnoreFromMetrics: repository.Bool(ignore),
		Edit:              s.stamp(editor, ignoreReason(ignore)),
	})
}

// SetRunIgnored toggles whether a run counts toward metrics.
func (s *Service) SetRunIgnored(ctx context.Context, runID uuid.UUID, ignore bool, editor string) (domain.Run, error) {
	return s.store.UpdateRun(ctx, runID, repository.RunPatch{
		IgnoreFromMetrics: repository.Bool(ignore),
		Edit:              s.stamp(editor, ignoreReason(ignore)),
	})
}

// ArchiveBooking soft-deletes a booking.
func (s *Service) ArchiveBooking(ctx context.Context, bookingID uuid.UUID, editor string) (domain.Booking, error) {
	return s.store.UpdateBooking(ctx, bookingID, repository.BookingPatch{
		DeletedAt: repository.SetTo(s.now().UTC()),
		Edit:      s.stamp(editor, "archived"),
	})
}

// ArchiveRun soft-deletes a run.
func (s *Service) ArchiveRun(ctx context.Context, runID uuid.UUID, editor string) (domain.Run, error) {
	return s.store.UpdateRun(ctx, runID, repository.RunPatch{
		DeletedAt: repository.SetTo(s.now().UTC()),
		Edit:      s.stamp(editor, "archived"),
	})
}

// HardDeleteBooking permanently removes a booking once confirmed.
func (s *Service) HardDeleteBooking(ctx context.Context, bookingID uuid.UUID, req transport.HardDeleteRequest) error {
	if err := checkConfirmation(req.Confirmation); err != nil {
		return err
	}
	return s.store.HardDeleteBooking(ctx, bookingID)
}

// HardDeleteRun permanently removes a run once confirmed.
func (s *Service) HardDeleteRun(ctx context.Context, runID uuid.UUID, req transport.HardDeleteRequest) error {
	if err := checkConfirmation(req.Confirmation); err != nil {
		return err
	}
	return s.store.HardDeleteRun(ctx, runID)
}

func checkConfirmation(value string) error {
	if strings.TrimSpace(value) != HardDeleteConfirmation {
		return apperr.Validation("type DELETE to confirm").WithCode(CodeHardDeleteConfirmation)
	}
	return nil
}

func ignoreReason(ignore bool) string {
	if ignore {
		return "ignored from metrics"
	}
	return "restored to metrics"
}
