package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/platform/events"
)

type EmergencyRequest struct {
	DocumentNumber string `json:"dni"`
	Location       string `json:"location"`
	Description    string `json:"description"`
}

// EmergencyService registers items kept outside the locker grid. Their tickets
// come from the local ledger and are never reported to the custody API, so the
// service is also a TicketHolder for the reconciler.
type EmergencyService struct {
	mu       sync.Mutex
	store    ports.StateStore
	ledger   *TicketLedger
	activity activityRecorder
	bus      *events.Bus
	now      func() time.Time
}

func NewEmergencyService(store ports.StateStore, ledger *TicketLedger, activity ports.ActivityRepository, bus *events.Bus) *EmergencyService {
	return &EmergencyService{
		store:    store,
		ledger:   ledger,
		activity: activityRecorder{repo: activity, bus: bus, now: time.Now},
		bus:      bus,
		now:      time.Now,
	}
}

func (s *EmergencyService) Register(ctx context.Context, req EmergencyRequest) (domain.EmergencyItem, error) {
	req.DocumentNumber = strings.TrimSpace(req.DocumentNumber)
	if !domain.ValidDocumentNumber(req.DocumentNumber) {
		return domain.EmergencyItem{}, ErrInvalidDocument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return domain.EmergencyItem{}, err
	}

	ticket, ok := s.ledger.Assign(ctx, "")
	if !ok {
		return domain.EmergencyItem{}, ErrNoTicket
	}

	item := domain.EmergencyItem{
		DocumentNumber: req.DocumentNumber,
		TicketCode:     ticket,
		Location:       req.Location,
		Description:    req.Description,
		Timestamp:      s.now(),
	}
	items = append(items, item)

	if err := s.store.Save(ctx, emergencyItemsKey, items); err != nil {
		s.ledger.Release(ctx, ticket)
		return domain.EmergencyItem{}, fmt.Errorf("save emergency items: %w", err)
	}

	s.activity.record(ctx, domain.ActivityEmergency, 0, domain.ActivityItem{
		DocumentNumber: item.DocumentNumber,
		TicketCode:     item.TicketCode,
		Location:       item.Location,
		Description:    item.Description,
		IsEmergency:    true,
	})
	s.publish(item.TicketCode)

	return item, nil
}

// Deliver hands back the item at index and frees its ticket.
func (s *EmergencyService) Deliver(ctx context.Context, index int) (domain.EmergencyItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return domain.EmergencyItem{}, err
	}
	if index < 0 || index >= len(items) {
		return domain.EmergencyItem{}, ErrEmergencyNotFound
	}

	item := items[index]
	rest := append(items[:index:index], items[index+1:]...)
	if err := s.store.Save(ctx, emergencyItemsKey, rest); err != nil {
		return domain.EmergencyItem{}, fmt.Errorf("save emergency items: %w", err)
	}

	s.ledger.Release(ctx, item.TicketCode)
	s.activity.record(ctx, domain.ActivityRemove, 0, domain.ActivityItem{
		DocumentNumber: item.DocumentNumber,
		TicketCode:     item.TicketCode,
		Location:       item.Location,
		Description:    item.Description,
		IsEmergency:    true,
	})
	s.publish(item.TicketCode)

	return item, nil
}

func (s *EmergencyService) List(ctx context.Context) ([]domain.EmergencyItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *EmergencyService) HeldTickets(ctx context.Context) []domain.TicketCode {
	items, err := s.List(ctx)
	if err != nil {
		log.Printf("emergency items: load failed, no local holds applied: %v", err)
		return nil
	}
	codes := make([]domain.TicketCode, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.TicketCode)
	}
	return codes
}

func (s *EmergencyService) load(ctx context.Context) ([]domain.EmergencyItem, error) {
	items := []domain.EmergencyItem{}
	if _, err := s.store.Load(ctx, emergencyItemsKey, &items); err != nil {
		return nil, fmt.Errorf("load emergency items: %w", err)
	}
	return items, nil
}

func (s *EmergencyService) publish(ticket domain.TicketCode) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Kind: events.EmergencyItemAdded, Source: events.SourceLocal, Ticket: string(ticket)})
	s.bus.Publish(events.Event{Kind: events.TicketsChanged, Source: events.SourceLocal, Ticket: string(ticket)})
}
