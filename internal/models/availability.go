package models

// SlotAvailability reports whether a room/date/slot triple is free and,
// when it is not, who occupies it. Pending and approved bookings both
// occupy a slot for display purposes; the status lets callers tell them
// apart. Advisory only: occupancy never blocks new requests.
type SlotAvailability struct {
	Slot      TimeSlot      `json:"slot"`
	Available bool          `json:"available"`
	Status    BookingStatus `json:"status,omitempty"`
	UserName  string        `json:"user_name,omitempty"`
	Purpose   string        `json:"purpose,omitempty"`
}

// DayAvailability groups slot availability for a single date.
type DayAvailability struct {
	Date  string             `json:"date"`
	Slots []SlotAvailability `json:"slots"`
}

// CatalogSnapshot is the bulk payload the presentation layer loads on
// startup: every room plus the reviews and bookings to render against.
type CatalogSnapshot struct {
	Rooms    []Room    `json:"rooms"`
	Reviews  []Review  `json:"reviews"`
	Bookings []Booking `json:"bookings"`
}
