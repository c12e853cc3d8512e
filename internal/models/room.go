package models

import (
	"time"

	"github.com/lib/pq"
)

// RoomType enumerates the kinds of bookable spaces.
type RoomType string

const (
	RoomTypeClassroom   RoomType = "classroom"
	RoomTypeSeminarHall RoomType = "seminar-hall"
	RoomTypeMeetingHall RoomType = "meeting-hall"
	RoomTypeLab         RoomType = "lab"
)

// Valid reports whether the room type is one of the enumerated values.
func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeClassroom, RoomTypeSeminarHall, RoomTypeMeetingHall, RoomTypeLab:
		return true
	}
	return false
}

// Room models a bookable space owned by a department. Rooms are
// read-mostly; only admins mutate them.
type Room struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Type        RoomType       `db:"type" json:"type"`
	Department  string         `db:"department" json:"department"`
	Capacity    int            `db:"capacity" json:"capacity"`
	Description string         `db:"description" json:"description"`
	Image       string         `db:"image" json:"image"`
	Features    pq.StringArray `db:"features" json:"features"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// RoomFilter describes query params for listing rooms.
type RoomFilter struct {
	Type        RoomType
	Department  string
	MinCapacity int
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
