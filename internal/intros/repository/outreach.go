package repository

import (
	"context"
	"fmt"
	"time"

	"intro_sales_backend/internal/intros/domain"

	"github.com/google/uuid"
)

// OutreachQuery filters ListOutreach.
type OutreachQuery struct {
	Since      *time.Time
	BookingIDs []uuid.UUID
}

// ListOutreach returns contact-log records newest first.
func (r *Repository) ListOutreach(ctx context.Context, q OutreachQuery) ([]domain.OutreachRecord, error) {
	baseQuery := `SELECT id, booking_id, member_name, channel, summary, sent_by, sent_at FROM intro_outreach_log WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	addFilter(&baseQuery, &args, &argIndex, q.Since != nil, " AND sent_at >= $%d", derefTime(q.Since))
	addFilter(&baseQuery, &args, &argIndex, len(q.BookingIDs) > 0, " AND booking_id = ANY($%d)", q.BookingIDs)
	baseQuery += ` ORDER BY sent_at DESC, id`

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outreach: %w", err)
	}
	defer rows.Close()

	items := []domain.OutreachRecord{}
	for rows.Next() {
		var rec domain.OutreachRecord
		if err := rows.Scan(&rec.ID, &rec.BookingID, &rec.MemberName, &rec.Channel, &rec.Summary, &rec.SentBy, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outreach: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outreach: %w", err)
	}
	return items, nil
}

// CreateOutreach inserts a contact-log record.
func (r *Repository) CreateOutreach(ctx context.Context, rec domain.OutreachRecord) error {
	query := `INSERT INTO intro_outreach_log (id, booking_id, member_name, channel, summary, sent_by, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.pool.Exec(ctx, query, rec.ID, rec.BookingID, rec.MemberName, rec.Channel, rec.Summary, rec.SentBy, rec.SentAt); err != nil {
		return fmt.Errorf("failed to create outreach record: %w", err)
	}
	return nil
}
