package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
)

type persistedTicketState struct {
	domain.TicketState
	ReservedAt map[domain.TicketCode]time.Time `json:"reservedAt,omitempty"`
}

// TicketLedger partitions the ticket universe into available, assigned and reserved.
// Every code is in exactly one set and available stays sorted by numeric suffix,
// so the lowest free ticket is always at the front.
type TicketLedger struct {
	mu         sync.Mutex
	store      ports.StateStore
	numbering  domain.TicketNumbering
	available  []domain.TicketCode
	assigned   []domain.TicketCode
	reserved   []domain.TicketCode
	reservedAt map[domain.TicketCode]time.Time
	now        func() time.Time
}

func NewTicketLedger(store ports.StateStore, numbering domain.TicketNumbering) *TicketLedger {
	return &TicketLedger{
		store:      store,
		numbering:  numbering,
		available:  numbering.Universe(),
		assigned:   []domain.TicketCode{},
		reserved:   []domain.TicketCode{},
		reservedAt: make(map[domain.TicketCode]time.Time),
		now:        time.Now,
	}
}

func (l *TicketLedger) Numbering() domain.TicketNumbering {
	return l.numbering
}

// Load restores the persisted partition. A state that is not a partition of the
// current universe (for example after a prefix change) is discarded.
func (l *TicketLedger) Load(ctx context.Context) (bool, error) {
	var state persistedTicketState
	ok, err := l.store.Load(ctx, ticketStateKey, &state)
	if err != nil || !ok {
		return false, err
	}

	if !l.isPartition(state.TicketState) {
		log.Printf("ticket ledger: discarding persisted state that does not match %s-1..%d", l.numbering.Prefix, l.numbering.Total)
		return false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.available = l.sorted(state.Available)
	l.assigned = l.sorted(state.Assigned)
	l.reserved = append([]domain.TicketCode{}, state.Reserved...)
	l.reservedAt = make(map[domain.TicketCode]time.Time, len(state.Reserved))
	now := l.now()
	for _, code := range state.Reserved {
		at, ok := state.ReservedAt[code]
		if !ok {
			at = now
		}
		l.reservedAt[code] = at
	}

	return true, nil
}

// ReserveForPreview moves the lowest available ticket to reserved. It returns
// false when nothing is available; that is a normal outcome, not a fault.
func (l *TicketLedger) ReserveForPreview(ctx context.Context) (domain.TicketCode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	code, ok := l.popLowest()
	if !ok {
		return "", false
	}
	l.reserved = append(l.reserved, code)
	l.reservedAt[code] = l.now()
	l.persist(ctx)

	return code, true
}

// Assign confirms a previously reserved ticket, or takes the lowest available one
// directly when reserved is empty or no longer held.
func (l *TicketLedger) Assign(ctx context.Context, reserved domain.TicketCode) (domain.TicketCode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, ok := l.canonical(reserved); ok {
		if rest, removed := removeCode(l.reserved, code); removed {
			l.reserved = rest
			delete(l.reservedAt, code)
			l.assigned = l.insertSorted(l.assigned, code)
			l.persist(ctx)
			return code, true
		}
	}

	code, ok := l.popLowest()
	if !ok {
		return "", false
	}
	l.assigned = l.insertSorted(l.assigned, code)
	l.persist(ctx)

	return code, true
}

// Release returns a reserved or assigned ticket to available. Releasing an
// available or unknown code is a no-op.
func (l *TicketLedger) Release(ctx context.Context, ticket domain.TicketCode) {
	code, ok := l.canonical(ticket)
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rest, removed := removeCode(l.reserved, code); removed {
		l.reserved = rest
		delete(l.reservedAt, code)
	} else if rest, removed := removeCode(l.assigned, code); removed {
		l.assigned = rest
	} else {
		return
	}

	l.available = l.insertSorted(l.available, code)
	l.persist(ctx)
}

// ReleaseReserved returns code to available only if it is still reserved. It
// reports whether anything changed, so a ticket a resync has since marked
// assigned is never freed by a stale dialog.
func (l *TicketLedger) ReleaseReserved(ctx context.Context, ticket domain.TicketCode) bool {
	code, ok := l.canonical(ticket)
	if !ok {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rest, removed := removeCode(l.reserved, code)
	if !removed {
		return false
	}
	l.reserved = rest
	delete(l.reservedAt, code)
	l.available = l.insertSorted(l.available, code)
	l.persist(ctx)

	return true
}

// ReleaseAllReserved returns every reservation to available and reports how many there were.
func (l *TicketLedger) ReleaseAllReserved(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := len(l.reserved)
	if count == 0 {
		return 0
	}
	for _, code := range l.reserved {
		l.available = l.insertSorted(l.available, code)
	}
	l.reserved = []domain.TicketCode{}
	l.reservedAt = make(map[domain.TicketCode]time.Time)
	l.persist(ctx)

	return count
}

// ExpireReservations releases reservations held longer than maxAge, except the
// codes in keep.
func (l *TicketLedger) ExpireReservations(ctx context.Context, maxAge time.Duration, keep ...domain.TicketCode) []domain.TicketCode {
	skip := make(map[domain.TicketCode]bool, len(keep))
	for _, raw := range keep {
		if code, ok := l.canonical(raw); ok {
			skip[code] = true
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	var expired []domain.TicketCode
	kept := l.reserved[:0]
	for _, code := range l.reserved {
		if !skip[code] && l.reservedAt[code].Before(cutoff) {
			expired = append(expired, code)
			delete(l.reservedAt, code)
			l.available = l.insertSorted(l.available, code)
			continue
		}
		kept = append(kept, code)
	}
	l.reserved = kept

	if len(expired) > 0 {
		l.persist(ctx)
	}
	return expired
}

// ResyncFromAuthoritative rebuilds the partition from the server's occupied set:
// assigned becomes occupied, reserved is cleared and the rest is available.
// Codes outside the universe are ignored.
func (l *TicketLedger) ResyncFromAuthoritative(ctx context.Context, occupied []domain.TicketCode) {
	taken := make(map[domain.TicketCode]bool, len(occupied))
	ignored := 0
	for _, raw := range occupied {
		code, ok := l.canonical(raw)
		if !ok {
			ignored++
			continue
		}
		taken[code] = true
	}
	if ignored > 0 {
		log.Printf("ticket ledger: ignored %d occupied codes outside %s-1..%d", ignored, l.numbering.Prefix, l.numbering.Total)
	}

	universe := l.numbering.Universe()
	available := make([]domain.TicketCode, 0, len(universe))
	assigned := make([]domain.TicketCode, 0, len(taken))
	for _, code := range universe {
		if taken[code] {
			assigned = append(assigned, code)
		} else {
			available = append(available, code)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.available = available
	l.assigned = assigned
	l.reserved = []domain.TicketCode{}
	l.reservedAt = make(map[domain.TicketCode]time.Time)
	l.persist(ctx)
}

// SyncFromLockers treats every ticket found in a locker detail list as occupied.
func (l *TicketLedger) SyncFromLockers(ctx context.Context, lockers []domain.Locker) {
	var occupied []domain.TicketCode
	for _, locker := range lockers {
		for _, detail := range locker.LockerDetails {
			occupied = append(occupied, detail.TicketCode)
		}
	}
	l.ResyncFromAuthoritative(ctx, occupied)
}

func (l *TicketLedger) Snapshot() domain.TicketState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return domain.TicketState{
		Available: append([]domain.TicketCode{}, l.available...),
		Assigned:  append([]domain.TicketCode{}, l.assigned...),
		Reserved:  append([]domain.TicketCode{}, l.reserved...),
	}
}

func (l *TicketLedger) IsReserved(ticket domain.TicketCode) bool {
	code, ok := l.canonical(ticket)
	if !ok {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.reservedAt[code]
	return held
}

func (l *TicketLedger) persist(ctx context.Context) {
	state := persistedTicketState{
		TicketState: domain.TicketState{
			Available: l.available,
			Assigned:  l.assigned,
			Reserved:  l.reserved,
		},
		ReservedAt: l.reservedAt,
	}
	if err := l.store.Save(ctx, ticketStateKey, state); err != nil {
		log.Printf("ticket ledger: persist failed: %v", err)
	}
}

func (l *TicketLedger) popLowest() (domain.TicketCode, bool) {
	if len(l.available) == 0 {
		return "", false
	}
	code := l.available[0]
	l.available = l.available[1:]
	return code, true
}

func (l *TicketLedger) canonical(code domain.TicketCode) (domain.TicketCode, bool) {
	if code == "" {
		return "", false
	}
	n, ok := l.numbering.Number(code)
	if !ok {
		return "", false
	}
	return l.numbering.Code(n), true
}

func (l *TicketLedger) number(code domain.TicketCode) int {
	n, _ := l.numbering.Number(code)
	return n
}

func (l *TicketLedger) insertSorted(list []domain.TicketCode, code domain.TicketCode) []domain.TicketCode {
	n := l.number(code)
	i := sort.Search(len(list), func(i int) bool { return l.number(list[i]) >= n })
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = code
	return list
}

func (l *TicketLedger) sorted(codes []domain.TicketCode) []domain.TicketCode {
	out := make([]domain.TicketCode, 0, len(codes))
	for _, code := range codes {
		out = l.insertSorted(out, code)
	}
	return out
}

func (l *TicketLedger) isPartition(state domain.TicketState) bool {
	seen := make(map[domain.TicketCode]bool, l.numbering.Total)
	for _, set := range [][]domain.TicketCode{state.Available, state.Assigned, state.Reserved} {
		for _, code := range set {
			canonical, ok := l.canonical(code)
			if !ok || canonical != code || seen[code] {
				return false
			}
			seen[code] = true
		}
	}
	return len(seen) == l.numbering.Total
}

func removeCode(list []domain.TicketCode, code domain.TicketCode) ([]domain.TicketCode, bool) {
	for i, c := range list {
		if c == code {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}
