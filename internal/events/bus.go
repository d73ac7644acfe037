// Package events re-exports the platform event bus for convenience.
// This allows internal modules to import events from internal/events
// while the implementation lives in platform/events.
package events

import (
	"context"

	platformevents "intro_sales_backend/platform/events"
	"intro_sales_backend/platform/logger"
)

// InMemoryBus is a type alias to the platform InMemoryBus
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
// This is a convenience re-export from platform/events.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// SubscribeActivityLog writes every intro event to the structured log so
// attribution changes leave a trail.
func SubscribeActivityLog(bus Bus, log *logger.Logger) {
	handler := HandlerFunc(func(ctx context.Context, event Event) error {
		log.WithContext(ctx).Info("intro_event", "event", event.EventName(), "payload", event)
		return nil
	})
	for _, name := range []string{
		IntroOwnerAssigned{}.EventName(),
		IntroOwnerOverridden{}.EventName(),
		IntroOwnerCleared{}.EventName(),
		AuditFixApplied{}.EventName(),
		FollowUpContactLogged{}.EventName(),
		FollowUpDismissed{}.EventName(),
	} {
		bus.Subscribe(name, handler)
	}
}
