// Package followup classifies prospects into the follow-up queue buckets.
//
// Classification is a pure function of a snapshot: it recomputes everything
// on every call and keeps no state between calls.
package followup

import (
	"time"

	"intro_sales_backend/internal/intros/domain"
)

// Bucket is one of the four follow-up lists.
type Bucket string

const (
	BucketNoShow      Bucket = "no_show"
	BucketFollowUp    Bucket = "follow_up"
	BucketSecondIntro Bucket = "second_intro_pending"
	BucketReschedule  Bucket = "plans_to_reschedule"
)

// Badge qualifies items in the follow-up bucket.
type Badge string

const (
	BadgeNone      Badge = ""
	BadgeA         Badge = "A"
	BadgeB         Badge = "B"
	BadgeNoOutcome Badge = "no-outcome"
)

// Substate is the unresolved sub-state a prospect is in.
type Substate string

const (
	SubstateNoShow             Substate = "no_show"
	SubstateFollowUpA          Substate = "follow_up_a"
	SubstateFollowUpB          Substate = "follow_up_b"
	SubstateNoOutcome          Substate = "no_outcome"
	SubstateSecondIntroPending Substate = "second_intro_pending"
	SubstatePlanningReschedule Substate = "planning_reschedule"
)

// Next-contact offsets in days from the anchor date.
const (
	noShowContactDays      = 1
	followUpContactDays    = 2
	noOutcomeContactDays   = 3
	secondIntroContactDays = 3
	rescheduleContactDays  = 2
)

// TerminalReason says why a prospect left the follow-up flow.
type TerminalReason string

const (
	TerminalPurchased     TerminalReason = "purchased"
	TerminalNotInterested TerminalReason = "not_interested"
)

// State is the per-prospect classification: Terminal, Unresolved or Settled.
type State interface {
	isState()
}

// Terminal is a sink; it suppresses every bucket for the prospect.
type Terminal struct {
	Reason TerminalReason
}

// Unresolved is a prospect with outstanding follow-up work.
type Unresolved struct {
	Substate Substate
	Anchor   Anchor
}

// Settled is a prospect with nothing to follow up right now, e.g. a future
// session already booked.
type Settled struct{}

func (Terminal) isState()   {}
func (Unresolved) isState() {}
func (Settled) isState()    {}

// Anchor is the booking (and run, if any) a state was derived from.
type Anchor struct {
	Booking     domain.Booking
	Run         *domain.Run
	Date        time.Time
	NextContact *time.Time
}

// BucketOf maps a state to its bucket and badge. ok is false for states that
// belong to no bucket.
func BucketOf(s State) (bucket Bucket, badge Badge, ok bool) {
	u, isUnresolved := s.(Unresolved)
	if !isUnresolved {
		return "", BadgeNone, false
	}
	switch u.Substate {
	case SubstateNoShow:
		return BucketNoShow, BadgeNone, true
	case SubstateFollowUpA:
		return BucketFollowUp, BadgeA, true
	case SubstateFollowUpB:
		return BucketFollowUp, BadgeB, true
	case SubstateNoOutcome:
		return BucketFollowUp, BadgeNoOutcome, true
	case SubstateSecondIntroPending:
		return BucketSecondIntro, BadgeNone, true
	case SubstatePlanningReschedule:
		return BucketReschedule, BadgeNone, true
	}
	return "", BadgeNone, false
}

// precedence breaks ties between candidates anchored on the same date.
func (s Substate) precedence() int {
	switch s {
	case SubstateSecondIntroPending:
		return 0
	case SubstateFollowUpB:
		return 1
	case SubstateFollowUpA:
		return 2
	case SubstateNoOutcome:
		return 3
	case SubstateNoShow:
		return 4
	case SubstatePlanningReschedule:
		return 5
	}
	return 6
}

func (s Substate) takesStoredContactDate() bool {
	return s == SubstateNoShow || s == SubstatePlanningReschedule
}
