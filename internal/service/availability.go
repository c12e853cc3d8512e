package service

import (
	"time"

	"github.com/campusrooms/booking-api/internal/models"
)

// Availability engine: pure computations over a booking list. Advisory
// only. Occupancy feeds the calendar view and never blocks a new
// request; the incharge resolves contention by approving one of the
// pending requests.

var allSlots = []models.TimeSlot{models.SlotMorning, models.SlotAfternoon, models.SlotFullDay}

// SlotAvailability determines whether the given room/date/slot is free.
// A stored booking occupies the queried slot when the slots overlap
// (equal, or either side is FULL). Rejected bookings never occupy a
// slot: only pending and approved requests block it for display.
func SlotAvailability(bookings []models.Booking, roomID, date string, slot models.TimeSlot) models.SlotAvailability {
	for _, b := range bookings {
		if b.RoomID != roomID || b.Date != date {
			continue
		}
		if b.Status == models.BookingRejected {
			continue
		}
		if b.Slot.Overlaps(slot) {
			return models.SlotAvailability{
				Slot:      slot,
				Available: false,
				Status:    b.Status,
				UserName:  b.UserName,
				Purpose:   b.Purpose,
			}
		}
	}
	return models.SlotAvailability{Slot: slot, Available: true}
}

// DayAvailability reports all three slots for a single date.
func DayAvailability(bookings []models.Booking, roomID, date string) models.DayAvailability {
	day := models.DayAvailability{Date: date, Slots: make([]models.SlotAvailability, 0, len(allSlots))}
	for _, slot := range allSlots {
		day.Slots = append(day.Slots, SlotAvailability(bookings, roomID, date, slot))
	}
	return day
}

// WeekAvailability reports seven consecutive days starting at the
// Monday of the week containing the given date, mirroring the booking
// calendar view.
func WeekAvailability(bookings []models.Booking, roomID string, date time.Time) []models.DayAvailability {
	monday := date.AddDate(0, 0, -mondayOffset(date.Weekday()))
	days := make([]models.DayAvailability, 0, 7)
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i).Format("2006-01-02")
		days = append(days, DayAvailability(bookings, roomID, d))
	}
	return days
}

func parseISODate(date string) (time.Time, error) {
	return time.Parse("2006-01-02", date)
}

func mondayOffset(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d) - int(time.Monday)
}
