package services

import (
	"context"
	"fmt"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/platform/events"
)

// TicketHolder reports tickets held locally that the server does not know about.
type TicketHolder interface {
	HeldTickets(ctx context.Context) []domain.TicketCode
}

// Reconciler rewrites the ledger and the locker cache from the server. It never
// merges: whatever the server returns wins.
type Reconciler struct {
	tickets ports.TicketAPI
	ledger  *TicketLedger
	cache   *LockerCache
	bus     *events.Bus
	holders []TicketHolder
}

func NewReconciler(tickets ports.TicketAPI, ledger *TicketLedger, cache *LockerCache, bus *events.Bus, holders ...TicketHolder) *Reconciler {
	return &Reconciler{
		tickets: tickets,
		ledger:  ledger,
		cache:   cache,
		bus:     bus,
		holders: holders,
	}
}

// SyncWithServer resyncs the ledger from GET /tickets/active and returns the
// resulting available tickets. On failure the ledger is left untouched.
func (r *Reconciler) SyncWithServer(ctx context.Context) ([]domain.TicketCode, error) {
	remote, err := r.tickets.ActiveTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync tickets: %w", err)
	}

	var occupied []domain.TicketCode
	for _, ticket := range remote {
		if ticket.Occupied() {
			occupied = append(occupied, ticket.Code)
		}
	}
	for _, holder := range r.holders {
		occupied = append(occupied, holder.HeldTickets(ctx)...)
	}

	r.ledger.ResyncFromAuthoritative(ctx, occupied)
	if r.bus != nil {
		r.bus.Publish(events.Event{Kind: events.TicketsChanged, Source: events.SourceServer})
	}

	return r.ledger.Snapshot().Available, nil
}

// FetchLockerSnapshot replaces the locker cache with GET /lockers/active/with-details.
func (r *Reconciler) FetchLockerSnapshot(ctx context.Context) ([]domain.Locker, error) {
	if _, err := r.cache.Refresh(ctx, true); err != nil {
		return nil, fmt.Errorf("fetch lockers: %w", err)
	}
	return r.cache.Lockers(), nil
}

// LowestAvailableFromServer picks the lowest-numbered AVAILABLE ticket straight
// from the server, bypassing the ledger.
func (r *Reconciler) LowestAvailableFromServer(ctx context.Context) (domain.TicketCode, bool, error) {
	remote, err := r.tickets.ActiveTickets(ctx)
	if err != nil {
		return "", false, fmt.Errorf("fetch tickets: %w", err)
	}

	numbering := r.ledger.Numbering()
	var best domain.TicketCode
	bestNumber := 0
	for _, ticket := range remote {
		if ticket.Occupied() {
			continue
		}
		n, ok := numbering.Number(ticket.Code)
		if !ok {
			continue
		}
		if bestNumber == 0 || n < bestNumber {
			best, bestNumber = numbering.Code(n), n
		}
	}

	return best, bestNumber > 0, nil
}
