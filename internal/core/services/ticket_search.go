package services

import (
	"context"
	"fmt"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
)

type TicketSearch struct {
	tickets   ports.TicketAPI
	numbering domain.TicketNumbering
}

func NewTicketSearch(tickets ports.TicketAPI, numbering domain.TicketNumbering) *TicketSearch {
	return &TicketSearch{tickets: tickets, numbering: numbering}
}

// Find accepts a bare number or a full code and returns the ticket's open transaction.
func (s *TicketSearch) Find(ctx context.Context, input string) (*domain.TicketTransaction, error) {
	code, ok := s.numbering.Normalize(input)
	if !ok {
		return nil, ErrInvalidTicket
	}

	tx, err := s.tickets.TicketTransaction(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find ticket %s: %w", code, err)
	}
	if tx == nil {
		return nil, ErrTicketNotFound
	}
	return tx, nil
}
