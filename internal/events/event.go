// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"intro_sales_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Intro Attribution Events
// =============================================================================

// IntroOwnerAssigned is published when a booking's owner is set from a run.
type IntroOwnerAssigned struct {
	BaseEvent
	BookingID     uuid.UUID `json:"bookingId"`
	RunID         uuid.UUID `json:"runId"`
	Owner         string    `json:"owner"`
	PreviousOwner string    `json:"previousOwner,omitempty"`
	EditedBy      string    `json:"editedBy"`
}

func (e IntroOwnerAssigned) EventName() string { return "intros.owner.assigned" }

// IntroOwnerOverridden is published when staff change an owner through the override path.
type IntroOwnerOverridden struct {
	BaseEvent
	BookingID     uuid.UUID `json:"bookingId"`
	Owner         string    `json:"owner"`
	PreviousOwner string    `json:"previousOwner,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	EditedBy      string    `json:"editedBy"`
}

func (e IntroOwnerOverridden) EventName() string { return "intros.owner.overridden" }

// IntroOwnerCleared is published when an owner is cleared and unlocked.
type IntroOwnerCleared struct {
	BaseEvent
	BookingID     uuid.UUID `json:"bookingId"`
	PreviousOwner string    `json:"previousOwner,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	EditedBy      string    `json:"editedBy"`
}

func (e IntroOwnerCleared) EventName() string { return "intros.owner.cleared" }

// =============================================================================
// Audit Events
// =============================================================================

// AuditFixApplied is published after an auto-fix batch finishes.
type AuditFixApplied struct {
	BaseEvent
	Trigger   string `json:"trigger"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	EditedBy  string `json:"editedBy"`
}

func (e AuditFixApplied) EventName() string { return "intros.audit.fix_applied" }

// =============================================================================
// Follow-up Events
// =============================================================================

// FollowUpContactLogged is published when an outbound contact is logged.
type FollowUpContactLogged struct {
	BaseEvent
	BookingID  uuid.UUID `json:"bookingId"`
	MemberName string    `json:"memberName"`
	Channel    string    `json:"channel"`
	SentBy     string    `json:"sentBy"`
	SentAt     time.Time `json:"sentAt"`
}

func (e FollowUpContactLogged) EventName() string { return "intros.followup.contact_logged" }

// FollowUpDismissed is published when a booking is dismissed from the queue.
type FollowUpDismissed struct {
	BaseEvent
	BookingID uuid.UUID `json:"bookingId"`
	EditedBy  string    `json:"editedBy"`
}

func (e FollowUpDismissed) EventName() string { return "intros.followup.dismissed" }
