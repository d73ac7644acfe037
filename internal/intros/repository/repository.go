// Package repository is the Postgres record store for intro bookings, runs
// and the outreach log. Every call is a single statement.
package repository

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	bookingNotFoundMsg = "booking not found"
	runNotFoundMsg     = "run not found"
)

// Repository provides database operations for the intro lifecycle tables.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new intros repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func addFilter(baseQuery *string, args *[]interface{}, argIndex *int, apply bool, clause string, value interface{}) {
	if !apply {
		return
	}
	*baseQuery += fmt.Sprintf(clause, *argIndex)
	*args = append(*args, value)
	*argIndex++
}

// setList accumulates "column = $n" assignments for partial updates.
type setList struct {
	clauses []string
	args    []interface{}
}

func (s *setList) add(apply bool, column string, value interface{}) {
	if !apply {
		return
	}
	s.args = append(s.args, value)
	s.clauses = append(s.clauses, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

func (s *setList) sql() string {
	return strings.Join(s.clauses, ", ")
}

// identityKeySQL mirrors domain.IdentityKeyOf for a member_name column.
const identityKeySQL = `LOWER(REGEXP_REPLACE(member_name, '\s', '', 'g'))`
