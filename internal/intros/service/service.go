// Package service implements the intro actions behind the HTTP surface and
// the background worker. Each action touches one record (or reports per
// record for bulk actions) and publishes an event only after its write lands.
package service

import (
	"context"
	"time"

	"intro_sales_backend/internal/events"
	"intro_sales_backend/internal/intros/attribution"
	"intro_sales_backend/internal/intros/audit"
	"intro_sales_backend/internal/intros/domain"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/platform/apperr"
	"intro_sales_backend/platform/config"
	"intro_sales_backend/platform/logger"
	"intro_sales_backend/platform/redislock"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Failure codes raised by the action layer.
const (
	CodeHardDeleteConfirmation = "hard_delete_confirmation_mismatch"
	CodeInvalidStatus          = "invalid_status"
	CodeAutoFixRunning         = "autofix_in_progress"
	CodeRunAlreadyLinked       = "run_already_linked"
	CodeBookingArchived        = "booking_archived"
)

// HardDeleteConfirmation is the literal a caller must send to hard delete.
const HardDeleteConfirmation = "DELETE"

const (
	autoFixLockName    = "intros:audit:autofix"
	defaultLockTTL     = 5 * time.Minute
	msgSnapshotFailure = "intro records could not be loaded"
)

// Store is the record store the service reads and writes.
type Store interface {
	ListBookings(ctx context.Context, q repository.BookingQuery) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	CreateBooking(ctx context.Context, b domain.Booking) error
	UpdateBooking(ctx context.Context, id uuid.UUID, p repository.BookingPatch) (domain.Booking, error)
	HardDeleteBooking(ctx context.Context, id uuid.UUID) error

	ListRuns(ctx context.Context, q repository.RunQuery) ([]domain.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error)
	CreateRun(ctx context.Context, r domain.Run) error
	UpdateRun(ctx context.Context, id uuid.UUID, p repository.RunPatch) (domain.Run, error)
	HardDeleteRun(ctx context.Context, id uuid.UUID) error

	ListOutreach(ctx context.Context, q repository.OutreachQuery) ([]domain.OutreachRecord, error)
	CreateOutreach(ctx context.Context, rec domain.OutreachRecord) error
}

// AutoFixGuard serialises auto-fix runs across processes.
type AutoFixGuard interface {
	Obtain(ctx context.Context, name string, ttl time.Duration) (*redislock.Lock, error)
}

// AutoFixEnqueuer hands an auto-fix run to the background queue.
type AutoFixEnqueuer interface {
	EnqueueAutoFix(ctx context.Context, requestedBy string) error
}

// Service provides the intro actions.
type Service struct {
	store    Store
	resolver *attribution.Resolver
	auditor  *audit.Auditor
	vocab    *domain.Vocabulary
	bus      events.Bus
	log      *logger.Logger
	cfg      config.FollowUpConfig
	guard    AutoFixGuard
	lockTTL  time.Duration
	enqueuer AutoFixEnqueuer
	now      func() time.Time
}

// New creates the service. bus and log may be nil.
func New(store Store, bus events.Bus, cfg config.FollowUpConfig, log *logger.Logger) *Service {
	resolver := attribution.New(store)
	return &Service{
		store:    store,
		resolver: resolver,
		auditor:  audit.New(store, resolver, log),
		vocab:    domain.DefaultVocabulary(),
		bus:      bus,
		log:      log,
		cfg:      cfg,
		lockTTL:  defaultLockTTL,
		now:      time.Now,
	}
}

// SetAutoFixGuard enables the cross-process auto-fix lock.
func (s *Service) SetAutoFixGuard(guard AutoFixGuard, ttl time.Duration) {
	s.guard = guard
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// SetAutoFixEnqueuer enables queued auto-fix runs.
func (s *Service) SetAutoFixEnqueuer(enqueuer AutoFixEnqueuer) {
	s.enqueuer = enqueuer
}

// WithClock overrides the time source for the service and its components.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.resolver.WithClock(now)
	s.auditor.WithClock(now)
	return s
}

// Today returns the studio's current calendar date.
func (s *Service) Today() time.Time {
	return domain.DateOf(s.now(), s.location())
}

func (s *Service) location() *time.Location {
	if s.cfg != nil {
		if loc := s.cfg.GetStudioLocation(); loc != nil {
			return loc
		}
	}
	return time.UTC
}

func (s *Service) stamp(editor, reason string) repository.EditStamp {
	return repository.EditStamp{By: editor, Reason: domain.StringPtr(reason), At: s.now().UTC()}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

type snapshotQuery struct {
	from     *time.Time
	outreach bool
}

// loadSnapshot reads bookings, runs and (optionally) outreach in parallel.
// Any failed read fails the whole load; callers never see a partial snapshot.
func (s *Service) loadSnapshot(ctx context.Context, q snapshotQuery) (domain.Snapshot, error) {
	var snap domain.Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bookings, err := s.store.ListBookings(gctx, repository.BookingQuery{ClassFrom: q.from})
		snap.Bookings = bookings
		return err
	})
	g.Go(func() error {
		runs, err := s.store.ListRuns(gctx, repository.RunQuery{RunFrom: q.from})
		snap.Runs = runs
		return err
	})
	if q.outreach {
		g.Go(func() error {
			records, err := s.store.ListOutreach(gctx, repository.OutreachQuery{Since: q.from})
			snap.Outreach = records
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if s.log != nil {
			s.log.DatabaseError("load_snapshot", err)
		}
		return domain.Snapshot{}, apperr.Unavailable(msgSnapshotFailure, err)
	}
	return snap, nil
}
