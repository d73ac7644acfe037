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

const runColumns = `id, member_name, linked_booking_id, run_date, class_time, result, intro_owner,
	intro_owner_locked, ran_by, lead_source, commission_amount, notes, ignore_from_metrics, deleted_at,
	last_edited_at, last_edited_by, last_edit_reason, created_at`

// RunQuery filters ListRuns. Zero values apply no filter.
type RunQuery struct {
	RunFrom          *time.Time
	RunTo            *time.Time
	LinkedBookingIDs []uuid.UUID
	IDs              []uuid.UUID
	IdentityKey      string
	UnlinkedOnly     bool
	IncludeDeleted   bool
}

func scanRun(row pgx.Row) (domain.Run, error) {
	var r domain.Run
	err := row.Scan(
		&r.ID, &r.MemberName, &r.LinkedBookingID, &r.RunDate, &r.ClassTime, &r.Result, &r.IntroOwner,
		&r.IntroOwnerLocked, &r.RanBy, &r.LeadSource, &r.CommissionAmount, &r.Notes, &r.IgnoreFromMetrics, &r.DeletedAt,
		&r.LastEditedAt, &r.LastEditedBy, &r.LastEditedReason, &r.CreatedAt,
	)
	return r, err
}

// ListRuns returns runs matching q ordered oldest first.
func (r *Repository) ListRuns(ctx context.Context, q RunQuery) ([]domain.Run, error) {
	baseQuery := `SELECT ` + runColumns + ` FROM intro_runs WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if !q.IncludeDeleted {
		baseQuery += ` AND deleted_at IS NULL`
	}
	if q.UnlinkedOnly {
		baseQuery += ` AND linked_booking_id IS NULL`
	}
	addFilter(&baseQuery, &args, &argIndex, q.RunFrom != nil, " AND run_date >= $%d", derefTime(q.RunFrom))
	addFilter(&baseQuery, &args, &argIndex, q.RunTo != nil, " AND run_date <= $%d", derefTime(q.RunTo))
	addFilter(&baseQuery, &args, &argIndex, len(q.LinkedBookingIDs) > 0, " AND linked_booking_id = ANY($%d)", q.LinkedBookingIDs)
	addFilter(&baseQuery, &args, &argIndex, len(q.IDs) > 0, " AND id = ANY($%d)", q.IDs)
	addFilter(&baseQuery, &args, &argIndex, q.IdentityKey != "", " AND "+identityKeySQL+" = $%d", q.IdentityKey)
	baseQuery += ` ORDER BY run_date, created_at, id`

	rows, err := r.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	items := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		items = append(items, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return items, nil
}

// GetRun retrieves a run by id, including soft-deleted ones.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM intro_runs WHERE id = $1`
	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, apperr.NotFound(runNotFoundMsg)
		}
		return domain.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CreateRun inserts a run.
func (r *Repository) CreateRun(ctx context.Context, run domain.Run) error {
	query := `
		INSERT INTO intro_runs (
			id, member_name, linked_booking_id, run_date, class_time, result, intro_owner,
			intro_owner_locked, ran_by, lead_source, commission_amount, notes, ignore_from_metrics, deleted_at,
			last_edited_at, last_edited_by, last_edit_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)`

	_, err := r.pool.Exec(ctx, query,
		run.ID, run.MemberName, run.LinkedBookingID, run.RunDate, run.ClassTime, run.Result, run.IntroOwner,
		run.IntroOwnerLocked, run.RanBy, run.LeadSource, run.CommissionAmount, run.Notes, run.IgnoreFromMetrics, run.DeletedAt,
		run.LastEditedAt, run.LastEditedBy, run.LastEditedReason, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun applies a partial update and returns the stored row.
func (r *Repository) UpdateRun(ctx context.Context, id uuid.UUID, p RunPatch) (domain.Run, error) {
	if p.IsEmpty() {
		return r.GetRun(ctx, id)
	}

	var set setList
	set.add(p.IntroOwner.Set, "intro_owner", p.IntroOwner.Value)
	set.add(p.IntroOwnerLocked != nil, "intro_owner_locked", p.IntroOwnerLocked)
	set.add(p.LinkedBookingID.Set, "linked_booking_id", p.LinkedBookingID.Value)
	set.add(p.Result != nil, "result", p.Result)
	set.add(p.IgnoreFromMetrics != nil, "ignore_from_metrics", p.IgnoreFromMetrics)
	set.add(p.DeletedAt.Set, "deleted_at", p.DeletedAt.Value)
	set.add(true, "last_edited_at", p.Edit.At)
	set.add(true, "last_edited_by", domain.StringPtr(p.Edit.By))
	set.add(true, "last_edit_reason", p.Edit.Reason)

	args := append(set.args, id)
	query := fmt.Sprintf(`UPDATE intro_runs SET %s WHERE id = $%d RETURNING %s`, set.sql(), len(args), runColumns)

	run, err := scanRun(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, apperr.NotFound(runNotFoundMsg)
		}
		return domain.Run{}, fmt.Errorf("failed to update run: %w", err)
	}
	return run, nil
}

// HardDeleteRun removes a run row permanently.
func (r *Repository) HardDeleteRun(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM intro_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(runNotFoundMsg)
	}
	return nil
}
