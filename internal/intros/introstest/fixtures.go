package introstest

import (
	"time"

	"intro_sales_backend/internal/intros/domain"

	"github.com/google/uuid"
)

// Today is the fixed calendar date fixtures are built around.
var Today = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

// Day returns Today shifted by offset days.
func Day(offset int) time.Time {
	return domain.AddDays(Today, offset)
}

// NewBooking returns an active regular first-intro booking.
func NewBooking(name string, classOffset int) domain.Booking {
	return domain.Booking{
		ID:         uuid.New(),
		MemberName: name,
		ClassDate:  Day(classOffset),
		Status:     domain.BookingStatusActive,
		Type:       domain.BookingTypeRegular,
		BookedBy:   domain.StringPtr("Front Desk"),
		CreatedAt:  Day(classOffset - 7),
	}
}

// NewRun returns a run linked to b with the given result.
func NewRun(b domain.Booking, result string, ranBy string) domain.Run {
	id := b.ID
	return domain.Run{
		ID:              uuid.New(),
		MemberName:      b.MemberName,
		LinkedBookingID: &id,
		RunDate:         b.ClassDate,
		Result:          result,
		RanBy:           domain.StringPtr(ranBy),
		CreatedAt:       b.ClassDate.Add(time.Hour),
	}
}

// SecondIntro returns a booking rebooked from origin.
func SecondIntro(origin domain.Booking, classOffset int) domain.Booking {
	b := NewBooking(origin.MemberName, classOffset)
	originID := origin.ID
	b.OriginatingBookingID = &originID
	return b
}
