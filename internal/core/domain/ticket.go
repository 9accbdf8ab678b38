package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type TicketCode string

type TicketStatus string

const (
	TicketAvailable TicketStatus = "AVAILABLE"
	TicketInUse     TicketStatus = "IN_USE"
)

// RemoteTicket is a row of GET /tickets/active.
type RemoteTicket struct {
	ID       int64        `json:"id"`
	Code     TicketCode   `json:"code"`
	Status   TicketStatus `json:"status"`
	IsActive bool         `json:"isActive"`
}

// Occupied reports whether the server considers the ticket unavailable for a new check-in.
// Retired tickets are never handed out.
func (t RemoteTicket) Occupied() bool {
	return t.Status != TicketAvailable || !t.IsActive
}

// TicketNumbering describes the ticket universe: codes <Prefix>-<n> for n in [1, Total].
type TicketNumbering struct {
	Prefix   string
	Total    int
	PadWidth int
}

func (n TicketNumbering) Code(number int) TicketCode {
	if n.PadWidth > 0 {
		return TicketCode(fmt.Sprintf("%s-%0*d", n.Prefix, n.PadWidth, number))
	}
	return TicketCode(fmt.Sprintf("%s-%d", n.Prefix, number))
}

// Number parses the numeric suffix of code. It fails for foreign prefixes and numbers outside the universe.
func (n TicketNumbering) Number(code TicketCode) (int, bool) {
	prefix, suffix, ok := strings.Cut(string(code), "-")
	if !ok || prefix != n.Prefix || suffix == "" {
		return 0, false
	}
	number, err := strconv.Atoi(suffix)
	if err != nil || number < 1 || number > n.Total {
		return 0, false
	}
	return number, true
}

func (n TicketNumbering) Contains(code TicketCode) bool {
	_, ok := n.Number(code)
	return ok
}

// Universe returns every code in ascending numeric order.
func (n TicketNumbering) Universe() []TicketCode {
	codes := make([]TicketCode, 0, n.Total)
	for i := 1; i <= n.Total; i++ {
		codes = append(codes, n.Code(i))
	}
	return codes
}

// Normalize turns operator input ("12", "ts-12", "TS-012") into a canonical code.
func (n TicketNumbering) Normalize(input string) (TicketCode, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if _, suffix, ok := strings.Cut(input, "-"); ok {
		if !strings.EqualFold(input[:len(input)-len(suffix)-1], n.Prefix) {
			return "", false
		}
		input = suffix
	}
	number, err := strconv.Atoi(input)
	if err != nil || number < 1 || number > n.Total {
		return "", false
	}
	return n.Code(number), true
}

// TicketState is the persisted form of the ledger under the "ticketState" key.
type TicketState struct {
	Available []TicketCode `json:"available"`
	Assigned  []TicketCode `json:"assigned"`
	Reserved  []TicketCode `json:"reserved"`
}

// TicketTransaction is the answer of GET /tickets/transaction.
type TicketTransaction struct {
	ID         int64      `json:"id"`
	TicketCode TicketCode `json:"ticketCode"`
	LockerCode string     `json:"lockerCode"`
	InTime     Timestamp  `json:"inTime"`
	OutTime    *Timestamp `json:"outTime,omitempty"`
	User       User       `json:"user"`
}

// LockerNumber extracts n from a locker code such as "LS-7".
func (t TicketTransaction) LockerNumber() (int, bool) {
	_, suffix, ok := strings.Cut(t.LockerCode, "-")
	if !ok {
		return 0, false
	}
	number, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return number, true
}
