package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, member_name, phone, class_date, intro_time, booking_status, booking_type,
	intro_owner, intro_owner_locked, originating_booking_id, lead_source, coach_name, booked_by,
	reschedule_contact_date, followup_dismissed_at, ignore_from_metrics, deleted_at,
	last_edited_at, last_edited_by, last_edit_reason, created_at`

// BookingQuery filters ListBookings. Zero values apply no filter.
type BookingQuery struct {
	ClassFrom      *time.Time
	ClassTo        *time.Time
	Statuses       []domain.BookingStatus
	ExcludeTypes   []domain.BookingType
	IDs            []uuid.UUID
	IdentityKey    string
	IncludeDeleted bool
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.MemberName, &b.Phone, &b.ClassDate, &b.IntroTime, &b.Status, &b.Type,
		&b.IntroOwner, &b.IntroOwnerLocked, &b.OriginatingBookingID, &b.LeadSource, &b.CoachName, &b.BookedBy,
		&b.RescheduleContactDate, &b.FollowUpDismissedAt, &b.IgnoreFromMetrics, &b.DeletedAt,
		&b.LastEditedAt, &b.LastEditedBy, &b.LastEditedReason, &b.CreatedAt,
	)
	return b, err
}

// ListBookings returns bookings matching q ordered by class date.
func (r *Repository) ListBookings(ctx context.Context, q BookingQuery) ([]domain.Booking, error) {
	baseQuery := `SELECT ` + bookingColumns + ` FROM intro_bookings WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if !q.IncludeDeleted {
		baseQuery += ` AND deleted_at IS NULL AND booking_status <> '` + string(domain.BookingStatusDeletedSoft) + `'`
	}
	addFilter(&baseQuery, &args, &argIndex, q.ClassFrom != nil, " AND class_date >= $%d", derefTime(q.ClassFrom))
	addFilter(&baseQuery, &args, &argIndex, q.ClassTo != nil, " AND class_date <= $%d", derefTime(q.ClassTo))
	addFilter(&baseQuery, &args, &argIndex, len(q.Statuses) > 0, " AND booking_status = ANY($%d)", statusStrings(q.Statuses))
	addFilter(&baseQuery, &args, &argIndex, len(q.ExcludeTypes) > 0, " AND booking_type <> ALL($%d)", typeStrings(q.ExcludeTypes))
	addFilter(&baseQuery, &args, &argIndex, len(q.IDs) > 0, " AND id = ANY($%d)", q.IDs)
	addFilter(&baseQuery, &args, &argIndex, q.IdentityKey != "", " AND "+identityKeySQL+" = $%d", q.IdentityKey)
	baseQuery += ` ORDER BY class_date, created_at, id`

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	items := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return items, nil
}

// GetBooking retrieves a booking by id, including soft-deleted ones.
func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM intro_bookings WHERE id = $1`
	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, apperr.NotFound(bookingNotFoundMsg)
		}
		return domain.Booking{}, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// CreateBooking inserts a booking.
func (r *Repository) CreateBooking(ctx context.Context, b domain.Booking) error {
	query := `
		INSERT INTO intro_bookings (
			id, member_name, phone, class_date, intro_time, booking_status, booking_type,
			intro_owner, intro_owner_locked, originating_booking_id, lead_source, coach_name, booked_by,
			reschedule_contact_date, followup_dismissed_at, ignore_from_metrics, deleted_at,
			last_edited_at, last_edited_by, last_edit_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)`

	_, err := r.pool.Exec(ctx, query,
		b.ID, b.MemberName, b.Phone, b.ClassDate, b.IntroTime, string(b.Status), string(b.Type),
		b.IntroOwner, b.IntroOwnerLocked, b.OriginatingBookingID, b.LeadSource, b.CoachName, b.BookedBy,
		b.RescheduleContactDate, b.FollowUpDismissedAt, b.IgnoreFromMetrics, b.DeletedAt,
		b.LastEditedAt, b.LastEditedBy, b.LastEditedReason, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// UpdateBooking applies a partial update and returns the stored row. A patch
// with no column set is not written and leaves the edit stamp alone.
func (r *Repository) UpdateBooking(ctx context.Context, id uuid.UUID, p BookingPatch) (domain.Booking, error) {
	if p.IsEmpty() {
		return r.GetBooking(ctx, id)
	}

	var set setList
	set.add(p.IntroOwner.Set, "intro_owner", p.IntroOwner.Value)
	set.add(p.IntroOwnerLocked != nil, "intro_owner_locked", p.IntroOwnerLocked)
	set.add(p.Status != nil, "booking_status", statusValue(p.Status))
	set.add(p.BookedBy.Set, "booked_by", p.BookedBy.Value)
	set.add(p.RescheduleContactDate.Set, "reschedule_contact_date", p.RescheduleContactDate.Value)
	set.add(p.FollowUpDismissedAt.Set, "followup_dismissed_at", p.FollowUpDismissedAt.Value)
	set.add(p.IgnoreFromMetrics != nil, "ignore_from_metrics", p.IgnoreFromMetrics)
	set.add(p.DeletedAt.Set, "deleted_at", p.DeletedAt.Value)
	set.add(true, "last_edited_at", p.Edit.At)
	set.add(true, "last_edited_by", domain.StringPtr(p.Edit.By))
	set.add(true, "last_edit_reason", p.Edit.Reason)

	args := append(set.args, id)
	query := fmt.Sprintf(`UPDATE intro_bookings SET %s WHERE id = $%d RETURNING %s`, set.sql(), len(args), bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Booking{}, apperr.NotFound(bookingNotFoundMsg)
		}
		return domain.Booking{}, fmt.Errorf("failed to update booking: %w", err)
	}
	return b, nil
}

// HardDeleteBooking removes a booking row permanently.
func (r *Repository) HardDeleteBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM intro_bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(bookingNotFoundMsg)
	}
	return nil
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func typeStrings(types []domain.BookingType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func statusValue(s *domain.BookingStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func derefTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return *value
}
