package transport

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON records presence; null leaves Value nil.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MarshalJSON writes the value or null.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// OverrideOwnerRequest sets or clears (owner: null) a booking's intro owner.
type OverrideOwnerRequest struct {
	Owner  OptionalString `json:"owner"`
	Reason string         `json:"reason" validate:"max=500"`
}

// UpdateBookingStatusRequest changes a booking's lifecycle status.
type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,max=50"`
}

// SetIgnoredRequest toggles ignore-from-metrics on a booking or run.
type SetIgnoredRequest struct {
	Ignore bool `json:"ignore"`
}

// HardDeleteRequest must carry the confirmation literal.
type HardDeleteRequest struct {
	Confirmation string `json:"confirmation"`
}

// CreateRunRequest logs what happened at an intro.
type CreateRunRequest struct {
	MemberName       string     `json:"memberName" validate:"required,min=1,max=200"`
	LinkedBookingID  *uuid.UUID `json:"linkedBookingId,omitempty"`
	RunDate          string     `json:"runDate" validate:"required,datetime=2006-01-02"`
	ClassTime        *string    `json:"classTime,omitempty" validate:"omitempty,max=20"`
	Result           string     `json:"result" validate:"max=100"`
	IntroOwner       *string    `json:"introOwner,omitempty" validate:"omitempty,staffname"`
	RanBy            *string    `json:"ranBy,omitempty" validate:"omitempty,staffname"`
	LeadSource       *string    `json:"leadSource,omitempty" validate:"omitempty,max=100"`
	CommissionAmount *float64   `json:"commissionAmount,omitempty" validate:"omitempty,gte=0"`
	Notes            *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// LinkRunRequest attaches a run to a booking.
type LinkRunRequest struct {
	BookingID uuid.UUID `json:"bookingId" validate:"required"`
}

// ResolveOutcomeRequest rewrites a run's result. A blank result picks the
// nearest controlled value.
type ResolveOutcomeRequest struct {
	Result string `json:"result" validate:"max=100"`
}

// AssignBookedByRequest fills booked-by on many bookings at once.
type AssignBookedByRequest struct {
	BookingIDs []uuid.UUID `json:"bookingIds" validate:"required,min=1,max=500"`
	BookedBy   string      `json:"bookedBy" validate:"required,staffname"`
}

// RescheduleContactRequest sets or clears (date: null) the stored next-contact date.
type RescheduleContactRequest struct {
	Date *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// LogContactRequest records an outbound contact with a prospect.
type LogContactRequest struct {
	Channel string     `json:"channel" validate:"required,oneof=call text email dm in_person"`
	Summary *string    `json:"summary,omitempty" validate:"omitempty,max=1000"`
	SentAt  *time.Time `json:"sentAt,omitempty"`
}

// AutoFixQuery selects between inline and queued auto-fix.
type AutoFixQuery struct {
	Async bool `form:"async"`
}

// FollowUpQuery optionally narrows the queue to one bucket.
type FollowUpQuery struct {
	Bucket string `form:"bucket" validate:"omitempty,oneof=no_show follow_up second_intro_pending plans_to_reschedule"`
}
