package domain

// Snapshot is one consistent read of the record store. Engines compute over
// a snapshot and never reach back into the store.
type Snapshot struct {
	Bookings []Booking
	Runs     []Run
	Outreach []OutreachRecord
}
