// Package intros provides the intro attribution, audit and follow-up module.
package intros

import (
	"time"

	"intro_sales_backend/internal/events"
	apphttp "intro_sales_backend/internal/http"
	"intro_sales_backend/internal/intros/handler"
	"intro_sales_backend/internal/intros/repository"
	"intro_sales_backend/internal/intros/service"
	"intro_sales_backend/internal/intros/transport"
	"intro_sales_backend/platform/config"
	"intro_sales_backend/platform/logger"
	"intro_sales_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the intros domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// Options carries the optional background wiring.
type Options struct {
	Guard    service.AutoFixGuard
	LockTTL  time.Duration
	Enqueuer service.AutoFixEnqueuer
}

// NewModule creates a new intros module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, bus events.Bus, cfg config.FollowUpConfig, log *logger.Logger, opts Options) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, bus, cfg, log)
	if opts.Guard != nil {
		svc.SetAutoFixGuard(opts.Guard, opts.LockTTL)
	}
	if opts.Enqueuer != nil {
		svc.SetAutoFixEnqueuer(opts.Enqueuer)
	}

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}, nil
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "intros"
}

// RegisterRoutes registers the module's routes under /api/v1/intros
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/intros")
	var write = ctx.WriteRateLimiter
	if write != nil {
		m.handler.RegisterRoutes(group, write.RateLimit())
		return
	}
	m.handler.RegisterRoutes(group, nil)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
