package service

import (
	"context"
	"strings"
	"time"

	"intro_sales_backend/internal/events"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/followup"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/sanitize"

	"github.com/google/uuid"
)

const defaultLookbackDays = 90

// FollowUpQueue classifies the records inside the lookback window and
// returns the four buckets together with the date they were computed for.
func (s *Service) FollowUpQueue(ctx context.Context) (time.Time, followup.Result, error) {
	today := s.Today()
	from := domain.AddDays(today, -s.lookbackDays())

	snap, err := s.loadSnapshot(ctx, snapshotQuery{from: &from, outreach: true})
	if err != nil {
		return today, followup.Result{}, err
	}

	region := ""
	if s.cfg != nil {
		region = s.cfg.GetPhoneDefaultRegion()
	}
	return today, followup.Classify(snap, followup.Options{Today: today, PhoneRegion: region}), nil
}

// FollowUpCounts returns only the per-bucket sizes.
func (s *Service) FollowUpCounts(ctx context.Context) (followup.Counts, error) {
	_, res, err := s.FollowUpQueue(ctx)
	if err != nil {
		return followup.Counts{}, err
	}
	return res.Counts, nil
}

func (s *Service) lookbackDays() int {
	if s.cfg != nil && s.cfg.GetFollowUpLookbackDays() > 0 {
		return s.cfg.GetFollowUpLookbackDays()
	}
	return defaultLookbackDays
}

// DismissFollowUp removes a booking from the queue.
func (s *Service) DismissFollowUp(ctx context.Context, bookingID uuid.UUID, editor string) (domain.Booking, error) {
	b, err := s.store.UpdateBooking(ctx, bookingID, repository.BookingPatch{
		FollowUpDismissedAt: repository.SetTo(s.now().UTC()),
		Edit:                s.stamp(editor, "follow-up dismissed"),
	})
	if err != nil {
		return domain.Booking{}, err
	}

	s.publish(ctx, events.FollowUpDismissed{
		BaseEvent: events.NewBaseEvent(),
		BookingID: b.ID,
		EditedBy:  editor,
	})
	return b, nil
}

// SetRescheduleContactDate stores (or clears, with a nil date) the
// next-contact date that overrides the computed cadence.
func (s *Service) SetRescheduleContactDate(ctx context.Context, bookingID uuid.UUID, req transport.RescheduleContactRequest, editor string) (domain.Booking, error) {
	value := repository.SetNull[time.Time]()
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		date, err := domain.ParseDate(*req.Date)
		if err != nil {
			return domain.Booking{}, apperr.Validation("date must be YYYY-MM-DD")
		}
		value = repository.SetTo(date)
	}

	return s.store.UpdateBooking(ctx, bookingID, repository.BookingPatch{
		RescheduleContactDate: value,
		Edit:                  s.stamp(editor, "reschedule contact date set"),
	})
}

// LogContact records an outbound contact against a booking's prospect.
func (s *Service) LogContact(ctx context.Context, bookingID uuid.UUID, req transport.LogContactRequest, editor string) (domain.OutreachRecord, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.OutreachRecord{}, err
	}

	sentAt := s.now().UTC()
	if req.SentAt != nil {
		sentAt = req.SentAt.UTC()
	}
	id := b.ID
	rec := domain.OutreachRecord{
		ID:         uuid.New(),
		BookingID:  &id,
		MemberName: b.MemberName,
		Channel:    req.Channel,
		Summary:    sanitize.TextPtr(req.Summary),
		SentBy:     editor,
		SentAt:     sentAt,
	}
	if err := s.store.CreateOutreach(ctx, rec); err != nil {
		return domain.OutreachRecord{}, err
	}

	s.publish(ctx, events.FollowUpContactLogged{
		BaseEvent:  events.NewBaseEvent(),
		BookingID:  b.ID,
		MemberName: b.MemberName,
		Channel:    rec.Channel,
		SentBy:     editor,
		SentAt:     sentAt,
	})
	return rec, nil
}
