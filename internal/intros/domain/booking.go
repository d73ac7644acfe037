// Package domain holds the record types and pure rules shared by the intro
// attribution, audit and follow-up components.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle status of a booking.
type BookingStatus string

const (
	BookingStatusActive             BookingStatus = "Active"
	BookingStatusNoShow             BookingStatus = "No-show"
	BookingStatusNotInterested      BookingStatus = "Not interested"
	BookingStatusClosedPurchased    BookingStatus = "Closed (Purchased)"
	BookingStatusDeletedSoft        BookingStatus = "Deleted (soft)"
	BookingStatusUnscheduled        BookingStatus = "Unscheduled"
	BookingStatusPlanningReschedule BookingStatus = "Planning to reschedule"
)

// BookingStatuses lists every accepted status literal.
var BookingStatuses = []BookingStatus{
	BookingStatusActive,
	BookingStatusNoShow,
	BookingStatusNotInterested,
	BookingStatusClosedPurchased,
	BookingStatusDeletedSoft,
	BookingStatusUnscheduled,
	BookingStatusPlanningReschedule,
}

// ParseBookingStatus accepts a status literal case-insensitively.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range BookingStatuses {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return "", false
}

// IsCancelled reports statuses that take a booking out of the follow-up flow.
func (s BookingStatus) IsCancelled() bool {
	switch s {
	case BookingStatusNotInterested, BookingStatusDeletedSoft, BookingStatusUnscheduled:
		return true
	}
	return false
}

// BookingType separates regular intros from VIP and comp sessions, which never
// enter the follow-up queue.
type BookingType string

const (
	BookingTypeRegular BookingType = "Regular"
	BookingTypeVIP     BookingType = "VIP"
	BookingTypeComp    BookingType = "Comp"
)

// ExcludedFromFollowUp reports booking types the follow-up queue ignores.
func (t BookingType) ExcludedFromFollowUp() bool {
	return t == BookingTypeVIP || t == BookingTypeComp
}

// Audit stamps who last edited a record and why.
type Audit struct {
	LastEditedAt     *time.Time
	LastEditedBy     *string
	LastEditedReason *string
}

// Booking is a scheduled (or formerly scheduled) intro session for a prospect.
type Booking struct {
	ID                    uuid.UUID
	MemberName            string
	Phone                 *string
	ClassDate             time.Time
	IntroTime             *string
	Status                BookingStatus
	Type                  BookingType
	IntroOwner            *string
	IntroOwnerLocked      bool
	OriginatingBookingID  *uuid.UUID
	LeadSource            *string
	CoachName             *string
	BookedBy              *string
	RescheduleContactDate *time.Time
	FollowUpDismissedAt   *time.Time
	IgnoreFromMetrics     bool
	DeletedAt             *time.Time
	CreatedAt             time.Time
	Audit
}

// IdentityKey returns the prospect key for this booking.
func (b Booking) IdentityKey() string {
	return IdentityKeyOf(b.MemberName)
}

// IsSecondIntro reports whether the booking was rebooked from an earlier one.
func (b Booking) IsSecondIntro() bool {
	return b.OriginatingBookingID != nil
}

// IsDeleted reports soft-deleted bookings.
func (b Booking) IsDeleted() bool {
	return b.DeletedAt != nil || b.Status == BookingStatusDeletedSoft
}

// Owner returns the trimmed intro owner or "".
func (b Booking) Owner() string {
	return Deref(b.IntroOwner)
}

// HasLockedOwner reports a lock that actually guards a value. A lock flag
// with no owner protects nothing.
func (b Booking) HasLockedOwner() bool {
	return b.IntroOwnerLocked && b.Owner() != ""
}

// Deref returns the trimmed value of s, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// StringPtr returns a pointer to the trimmed value, or nil when blank.
func StringPtr(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
