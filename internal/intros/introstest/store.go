// Package introstest provides an in-memory record store with the same
// query and patch semantics as the Postgres repository.
package introstest

import (
	"context"
	"slices"
	"sync"

	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store is a concurrency-safe in-memory record store.
type Store struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]domain.Booking
	runs     map[uuid.UUID]domain.Run
	outreach []domain.OutreachRecord

	// BookingWrites and RunWrites count successful updates.
	BookingWrites int
	RunWrites     int

	// Failure injection. A non-nil func is consulted before the matching call.
	FailListBookings  error
	FailListRuns      error
	FailListOutreach  error
	FailUpdateBooking func(id uuid.UUID) error
	FailUpdateRun     func(id uuid.UUID) error
}

// NewStore creates a store seeded with the given records.
func NewStore(bookings []domain.Booking, runs []domain.Run) *Store {
	s := &Store{
		bookings: make(map[uuid.UUID]domain.Booking),
		runs:     make(map[uuid.UUID]domain.Run),
	}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	for _, r := range runs {
		s.runs[r.ID] = r
	}
	return s
}

// Booking returns the stored booking or panics; for assertions.
func (s *Store) Booking(id uuid.UUID) domain.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		panic("introstest: unknown booking " + id.String())
	}
	return b
}

// Run returns the stored run or panics; for assertions.
func (s *Store) Run(id uuid.UUID) domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		panic("introstest: unknown run " + id.String())
	}
	return r
}

// Writes returns the total number of successful updates.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.BookingWrites + s.RunWrites
}

func (s *Store) ListBookings(_ context.Context, q repository.BookingQuery) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailListBookings != nil {
		return nil, s.FailListBookings
	}

	out := []domain.Booking{}
	for _, b := range s.bookings {
		if !q.IncludeDeleted && b.IsDeleted() {
			continue
		}
		if q.ClassFrom != nil && b.ClassDate.Before(*q.ClassFrom) {
			continue
		}
		if q.ClassTo != nil && b.ClassDate.After(*q.ClassTo) {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, b.Status) {
			continue
		}
		if len(q.ExcludeTypes) > 0 && slices.Contains(q.ExcludeTypes, b.Type) {
			continue
		}
		if len(q.IDs) > 0 && !slices.Contains(q.IDs, b.ID) {
			continue
		}
		if q.IdentityKey != "" && b.IdentityKey() != q.IdentityKey {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Booking) int {
		if c := a.ClassDate.Compare(b.ClassDate); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return domain.CompareIDs(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, apperr.NotFound("booking not found")
	}
	return b, nil
}

func (s *Store) CreateBooking(_ context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) UpdateBooking(_ context.Context, id uuid.UUID, p repository.BookingPatch) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdateBooking != nil {
		if err := s.FailUpdateBooking(id); err != nil {
			return domain.Booking{}, err
		}
	}
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, apperr.NotFound("booking not found")
	}
	if p.IsEmpty() {
		return b, nil
	}
	p.Apply(&b)
	s.bookings[id] = b
	s.BookingWrites++
	return b, nil
}

func (s *Store) HardDeleteBooking(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return apperr.NotFound("booking not found")
	}
	delete(s.bookings, id)
	for rid, r := range s.runs {
		if r.LinkedBookingID != nil && *r.LinkedBookingID == id {
			r.LinkedBookingID = nil
			s.runs[rid] = r
		}
	}
	return nil
}

func (s *Store) ListRuns(_ context.Context, q repository.RunQuery) ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailListRuns != nil {
		return nil, s.FailListRuns
	}

	out := []domain.Run{}
	for _, r := range s.runs {
		if !q.IncludeDeleted && r.DeletedAt != nil {
			continue
		}
		if q.UnlinkedOnly && r.IsLinked() {
			continue
		}
		if q.RunFrom != nil && r.RunDate.Before(*q.RunFrom) {
			continue
		}
		if q.RunTo != nil && r.RunDate.After(*q.RunTo) {
			continue
		}
		if len(q.LinkedBookingIDs) > 0 && (!r.IsLinked() || !slices.Contains(q.LinkedBookingIDs, *r.LinkedBookingID)) {
			continue
		}
		if len(q.IDs) > 0 && !slices.Contains(q.IDs, r.ID) {
			continue
		}
		if q.IdentityKey != "" && r.IdentityKey() != q.IdentityKey {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, domain.RunsOldestFirst)
	return out, nil
}

func (s *Store) GetRun(_ context.Context, id uuid.UUID) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return domain.Run{}, apperr.NotFound("run not found")
	}
	return r, nil
}

func (s *Store) CreateRun(_ context.Context, r domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

func (s *Store) UpdateRun(_ context.Context, id uuid.UUID, p repository.RunPatch) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdateRun != nil {
		if err := s.FailUpdateRun(id); err != nil {
			return domain.Run{}, err
		}
	}
	r, ok := s.runs[id]
	if !ok {
		return domain.Run{}, apperr.NotFound("run not found")
	}
	if p.IsEmpty() {
		return r, nil
	}
	p.Apply(&r)
	s.runs[id] = r
	s.RunWrites++
	return r, nil
}

func (s *Store) HardDeleteRun(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return apperr.NotFound("run not found")
	}
	delete(s.runs, id)
	return nil
}

func (s *Store) ListOutreach(_ context.Context, q repository.OutreachQuery) ([]domain.OutreachRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailListOutreach != nil {
		return nil, s.FailListOutreach
	}

	out := []domain.OutreachRecord{}
	for _, rec := range s.outreach {
		if q.Since != nil && rec.SentAt.Before(*q.Since) {
			continue
		}
		if len(q.BookingIDs) > 0 && (rec.BookingID == nil || !slices.Contains(q.BookingIDs, *rec.BookingID)) {
			continue
		}
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.OutreachRecord) int {
		if c := b.SentAt.Compare(a.SentAt); c != 0 {
			return c
		}
		return domain.CompareIDs(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CreateOutreach(_ context.Context, rec domain.OutreachRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outreach = append(s.outreach, rec)
	return nil
}

// Outreach returns a copy of the logged contacts; for assertions.
func (s *Store) Outreach() []domain.OutreachRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.outreach)
}
