package domain

import (
	"strconv"
	"time"
)

const DefaultLockerCapacity = 3

type LockerState string

const (
	LockerEmpty   LockerState = "EMPTY"
	LockerPartial LockerState = "PARTIAL"
	LockerFull    LockerState = "FULL"
)

type Locker struct {
	ID            int            `json:"id"`
	Code          string         `json:"code"`
	Type          string         `json:"type"`
	Capacity      int            `json:"capacity"`
	CurrentItems  int            `json:"currentItems"`
	Description   *string        `json:"description"`
	Position      int            `json:"position"`
	Status        string         `json:"status"`
	Campus        string         `json:"campus"`
	IsActive      bool           `json:"isActive"`
	LockerDetails []LockerDetail `json:"lockerDetails"`
}

// LockerDetail is one occupied slot. User is a copy taken at check-in time.
type LockerDetail struct {
	ID          int64      `json:"id"`
	TicketCode  TicketCode `json:"ticketCode"`
	TeamCode    string     `json:"teamCode,omitempty"`
	Description string     `json:"description,omitempty"`
	InTime      Timestamp  `json:"inTime"`
	OutTime     *Timestamp `json:"outTime,omitempty"`
	User        User       `json:"user"`
}

func (l *Locker) EffectiveCapacity() int {
	if l.Capacity <= 0 {
		return DefaultLockerCapacity
	}
	return l.Capacity
}

func (l *Locker) Occupancy() int {
	return len(l.LockerDetails)
}

func (l *Locker) HasRoom() bool {
	return l.Occupancy() < l.EffectiveCapacity()
}

// State is derived from the detail list on every call and never stored.
func (l *Locker) State() LockerState {
	switch n := l.Occupancy(); {
	case n == 0:
		return LockerEmpty
	case n < l.EffectiveCapacity():
		return LockerPartial
	default:
		return LockerFull
	}
}

func (l *Locker) DetailIndex(code TicketCode) int {
	for i := range l.LockerDetails {
		if l.LockerDetails[i].TicketCode == code {
			return i
		}
	}
	return -1
}

// Clone deep-copies the detail slice so callers can hold a snapshot while the cache mutates.
func (l Locker) Clone() Locker {
	if l.LockerDetails != nil {
		details := make([]LockerDetail, len(l.LockerDetails))
		copy(details, l.LockerDetails)
		l.LockerDetails = details
	}
	return l
}

// PlaceholderLockers is painted before any snapshot has ever been fetched.
func PlaceholderLockers(count, capacity int, campus string) []Locker {
	lockers := make([]Locker, 0, count)
	for i := 1; i <= count; i++ {
		lockers = append(lockers, Locker{
			ID:            i,
			Code:          "LS-" + strconv.Itoa(i),
			Type:          "LOCKER",
			Capacity:      capacity,
			Position:      i,
			Status:        "AVAILABLE",
			Campus:        campus,
			IsActive:      true,
			LockerDetails: []LockerDetail{},
		})
	}
	return lockers
}

// Occupant is what an operator supplies when filling a slot.
type Occupant struct {
	TicketCode  TicketCode
	TeamCode    string
	Description string
	User        User
	CheckedInAt time.Time
}

// CheckInItem is one element of the POST /lockers/{id}/transactions/check-in body.
type CheckInItem struct {
	DocumentNumber int64      `json:"documentNumber"`
	TeamCode       string     `json:"teamCode"`
	TicketCode     TicketCode `json:"ticketCode"`
}
