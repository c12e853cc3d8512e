package models

import "time"

// TimeSlot is the booking granularity for a given date. FULL subsumes
// both the morning and afternoon halves.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "FN"
	SlotAfternoon TimeSlot = "AN"
	SlotFullDay   TimeSlot = "FULL"
)

// Valid reports whether the slot is one of the enumerated values.
func (s TimeSlot) Valid() bool {
	switch s {
	case SlotMorning, SlotAfternoon, SlotFullDay:
		return true
	}
	return false
}

// Overlaps reports whether two slots on the same room and date contend
// for the same time. The rule is symmetric: equal slots overlap, and
// FULL overlaps everything.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s == other || s == SlotFullDay || other == SlotFullDay
}

// BookingStatus is the lifecycle state of a booking request.
type BookingStatus string

const (
	BookingPending  BookingStatus = "PENDING"
	BookingApproved BookingStatus = "APPROVED"
	BookingRejected BookingStatus = "REJECTED"
)

// Valid reports whether the status is one of the enumerated values.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted.
func (s BookingStatus) Terminal() bool {
	return s == BookingApproved || s == BookingRejected
}

// Booking is a request to reserve a room for a date and slot. The
// requester identity is snapshotted at creation time so later user
// edits never rewrite history. Bookings are never deleted; approved
// and rejected records persist as history.
type Booking struct {
	ID             string        `db:"id" json:"id"`
	RoomID         string        `db:"room_id" json:"room_id"`
	UserID         string        `db:"user_id" json:"user_id"`
	UserName       string        `db:"user_name" json:"user_name"`
	UserDepartment string        `db:"user_department" json:"user_department"`
	Date           string        `db:"date" json:"date"`
	Slot           TimeSlot      `db:"slot" json:"slot"`
	Purpose        string        `db:"purpose" json:"purpose"`
	Status         BookingStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter describes query params for listing bookings. Department
// filters on the room's owning department, not the requester's.
type BookingFilter struct {
	RoomID     string
	UserID     string
	Department string
	Status     BookingStatus
	Date       string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
