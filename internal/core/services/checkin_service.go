package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/srgjo27/custodia/internal/core/ports"
	"github.com/srgjo27/custodia/internal/platform/events"
)

type CheckInState string

const (
	CheckInIdle              CheckInState = "IDLE"
	CheckInReserving         CheckInState = "RESERVING"
	CheckInOptimisticApplied CheckInState = "OPTIMISTIC_APPLIED"
	CheckInConfirming        CheckInState = "CONFIRMING"
	CheckInConfirmed         CheckInState = "CONFIRMED"
	CheckInCompensating      CheckInState = "COMPENSATING"
	CheckInCancelled         CheckInState = "CANCELLED"
)

// CheckInDraft is an open check-in dialog holding a previewed ticket.
type CheckInDraft struct {
	ID         string            `json:"id"`
	LockerID   int               `json:"lockerId"`
	Ticket     domain.TicketCode `json:"ticket,omitempty"`
	FromServer bool              `json:"fromServer,omitempty"`
	State      CheckInState      `json:"state"`
	OpenedAt   time.Time         `json:"openedAt"`
}

type CheckInResult struct {
	DraftID  string              `json:"draftId"`
	LockerID int                 `json:"lockerId"`
	Ticket   domain.TicketCode   `json:"ticket"`
	Detail   domain.LockerDetail `json:"detail"`
	State    CheckInState        `json:"state"`
}

type CheckInOptions struct {
	ConfirmRefreshDelay time.Duration
	ReservationTTL      time.Duration
}

type slotKey struct {
	lockerID int
	ticket   domain.TicketCode
}

const compensationTimeout = 15 * time.Second

// CheckInService runs check-in and check-out: reserve, apply optimistically,
// call the server, then reconcile. A failed call is compensated by an immediate
// snapshot refresh; a successful one by a deferred refresh.
type CheckInService struct {
	ledger     *TicketLedger
	cache      *LockerCache
	reconciler *Reconciler
	lockers    ports.LockerAPI
	activity   activityRecorder
	bus        *events.Bus
	opts       CheckInOptions

	mu            sync.Mutex
	drafts        map[string]*CheckInDraft
	confirming    map[int]bool
	delivering    map[slotKey]bool
	deliveringAny bool

	pending sync.WaitGroup
	now     func() time.Time
}

func NewCheckInService(ledger *TicketLedger, cache *LockerCache, reconciler *Reconciler, lockers ports.LockerAPI, activity ports.ActivityRepository, bus *events.Bus, opts CheckInOptions) *CheckInService {
	return &CheckInService{
		ledger:     ledger,
		cache:      cache,
		reconciler: reconciler,
		lockers:    lockers,
		activity:   activityRecorder{repo: activity, bus: bus, now: time.Now},
		bus:        bus,
		opts:       opts,
		drafts:     make(map[string]*CheckInDraft),
		confirming: make(map[int]bool),
		delivering: make(map[slotKey]bool),
		now:        time.Now,
	}
}

// Open syncs tickets and reserves a preview ticket for lockerID. A draft with an
// empty Ticket means no tickets are available; that is not an error.
func (s *CheckInService) Open(ctx context.Context, lockerID int) (CheckInDraft, error) {
	if _, ok := s.cache.Locker(lockerID); !ok {
		return CheckInDraft{}, ErrLockerNotFound
	}

	draft := &CheckInDraft{
		ID:       uuid.NewString(),
		LockerID: lockerID,
		State:    CheckInReserving,
		OpenedAt: s.now(),
	}

	if _, err := s.reconciler.SyncWithServer(ctx); err != nil {
		log.Printf("check-in: ticket sync failed, using local ledger: %v", err)
	}

	if code, ok := s.ledger.ReserveForPreview(ctx); ok {
		draft.Ticket = code
	} else if code, ok, err := s.reconciler.LowestAvailableFromServer(ctx); err != nil {
		log.Printf("check-in: no local ticket and server fallback failed: %v", err)
	} else if ok {
		draft.Ticket = code
		draft.FromServer = true
	}

	s.mu.Lock()
	s.drafts[draft.ID] = draft
	out := *draft
	s.mu.Unlock()

	s.publishTickets(lockerID, draft.Ticket)
	return out, nil
}

// CanCheckIn evaluates the confirm guard without acting on it.
func (s *CheckInService) CanCheckIn(draftID string, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[draftID]
	if !ok {
		return ErrDraftNotFound
	}
	return s.guardLocked(draft, user)
}

// Confirm turns the draft's preview into an assignment and checks the occupant in.
// The guard is evaluated again here, not only when the dialog was rendered.
func (s *CheckInService) Confirm(ctx context.Context, draftID string, user *domain.User, teamCode string) (CheckInResult, error) {
	s.mu.Lock()
	draft, ok := s.drafts[draftID]
	if !ok {
		s.mu.Unlock()
		return CheckInResult{}, ErrDraftNotFound
	}
	if err := s.guardLocked(draft, user); err != nil {
		s.mu.Unlock()
		return CheckInResult{}, err
	}
	lockerID, preview := draft.LockerID, draft.Ticket
	draft.State = CheckInConfirming
	s.confirming[lockerID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.confirming, lockerID)
		delete(s.drafts, draftID)
		s.mu.Unlock()
	}()

	if _, err := s.reconciler.SyncWithServer(ctx); err != nil {
		log.Printf("check-in: ticket sync before confirm failed: %v", err)
	}

	ticket, ok := s.ledger.Assign(ctx, preview)
	if !ok {
		log.Printf("check-in: ledger exhausted, using previewed ticket %s", preview)
		ticket = preview
	}

	team := teamCode
	if team == "" {
		team = user.SuggestedTeam
	}

	detail, err := s.cache.OptimisticCheckIn(ctx, lockerID, domain.Occupant{
		TicketCode: ticket,
		TeamCode:   team,
		User:       *user,
	})
	if err != nil {
		s.ledger.Release(ctx, ticket)
		s.setState(draft, CheckInCancelled)
		return CheckInResult{}, err
	}
	s.setState(draft, CheckInOptimisticApplied)

	documentNumber, _ := strconv.ParseInt(user.DocumentNumber, 10, 64)
	item := domain.CheckInItem{
		DocumentNumber: documentNumber,
		TeamCode:       team,
		TicketCode:     ticket,
	}

	s.setState(draft, CheckInConfirming)
	result := CheckInResult{DraftID: draftID, LockerID: lockerID, Ticket: ticket, Detail: detail}

	if err := s.lockers.CheckIn(context.WithoutCancel(ctx), lockerID, []domain.CheckInItem{item}); err != nil {
		s.setState(draft, CheckInCompensating)
		s.compensate(ctx)
		result.State = CheckInCompensating
		return result, fmt.Errorf("check-in failed: %w", err)
	}

	s.setState(draft, CheckInConfirmed)
	result.State = CheckInConfirmed

	s.activity.record(ctx, domain.ActivityAdd, lockerID, domain.ActivityItem{
		DocumentNumber: user.DocumentNumber,
		TicketCode:     ticket,
	})
	s.publishTickets(lockerID, ticket)
	s.scheduleRefresh()

	return result, nil
}

// Cancel closes a draft without confirming and returns its ticket if it is still reserved.
func (s *CheckInService) Cancel(ctx context.Context, draftID string) error {
	s.mu.Lock()
	draft, ok := s.drafts[draftID]
	if !ok {
		s.mu.Unlock()
		return ErrDraftNotFound
	}
	if draft.State != CheckInReserving {
		s.mu.Unlock()
		return ErrCheckInInProgress
	}
	delete(s.drafts, draftID)
	draft.State = CheckInCancelled
	ticket := draft.Ticket
	s.mu.Unlock()

	if ticket != "" && s.ledger.ReleaseReserved(ctx, ticket) {
		s.publishTickets(draft.LockerID, ticket)
	}
	return nil
}

// CancelAll abandons every open draft. With no confirm in flight every
// reservation is released; otherwise only the tickets of the cancelled drafts
// are, so a confirm never loses its preview.
func (s *CheckInService) CancelAll(ctx context.Context) int {
	s.mu.Lock()
	var tickets []domain.TicketCode
	for id, draft := range s.drafts {
		if draft.State == CheckInReserving {
			draft.State = CheckInCancelled
			delete(s.drafts, id)
			if draft.Ticket != "" {
				tickets = append(tickets, draft.Ticket)
			}
		}
	}
	inFlight := len(s.drafts) > 0
	s.mu.Unlock()

	released := 0
	if inFlight {
		for _, ticket := range tickets {
			if s.ledger.ReleaseReserved(ctx, ticket) {
				released++
			}
		}
	} else {
		released = s.ledger.ReleaseAllReserved(ctx)
	}
	if released > 0 {
		s.publishTickets(0, "")
	}
	return released
}

// CheckOut removes an occupant. Only one delivery runs at a time, kiosk-wide.
func (s *CheckInService) CheckOut(ctx context.Context, lockerID int, ticket domain.TicketCode) error {
	key := slotKey{lockerID: lockerID, ticket: ticket}

	s.mu.Lock()
	if s.delivering[key] {
		s.mu.Unlock()
		return ErrCheckOutInProgress
	}
	if s.deliveringAny {
		s.mu.Unlock()
		return ErrDeliveryInProgress
	}
	s.delivering[key] = true
	s.deliveringAny = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.delivering, key)
		s.deliveringAny = false
		s.mu.Unlock()
	}()

	detail, err := s.cache.OptimisticCheckOut(ctx, lockerID, ticket)
	if err != nil {
		return err
	}

	s.activity.record(ctx, domain.ActivityRemove, lockerID, domain.ActivityItem{
		DocumentNumber: detail.User.DocumentNumber,
		TicketCode:     ticket,
	})

	if err := s.lockers.CheckOut(context.WithoutCancel(ctx), lockerID, []domain.TicketCode{ticket}); err != nil {
		s.compensate(ctx)
		return fmt.Errorf("check-out failed: %w", err)
	}

	s.ledger.Release(ctx, ticket)
	s.publishTickets(lockerID, ticket)
	s.scheduleRefresh()

	return nil
}

func (s *CheckInService) Delivering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveringAny
}

func (s *CheckInService) Draft(id string) (CheckInDraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[id]
	if !ok {
		return CheckInDraft{}, false
	}
	return *draft, true
}

func (s *CheckInService) Drafts() []CheckInDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CheckInDraft, 0, len(s.drafts))
	for _, draft := range s.drafts {
		out = append(out, *draft)
	}
	return out
}

// Wait blocks until every deferred refresh has run.
func (s *CheckInService) Wait() {
	s.pending.Wait()
}

func (s *CheckInService) RunBackgroundCleanup(ctx context.Context) {
	interval := time.Minute
	if s.opts.ReservationTTL > 0 && s.opts.ReservationTTL/2 < interval {
		interval = s.opts.ReservationTTL / 2
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Background Worker started: Checking abandoned check-ins every %s...", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Background Worker stopped.")
			return
		case <-ticker.C:
			s.processExpiredDrafts(ctx)
		}
	}
}

func (s *CheckInService) processExpiredDrafts(ctx context.Context) {
	if s.opts.ReservationTTL <= 0 {
		return
	}
	cutoff := s.now().Add(-s.opts.ReservationTTL)

	s.mu.Lock()
	var expired []string
	var busy []domain.TicketCode
	for id, draft := range s.drafts {
		switch {
		case draft.State == CheckInReserving && draft.OpenedAt.Before(cutoff):
			expired = append(expired, id)
		case draft.State != CheckInReserving && draft.Ticket != "":
			busy = append(busy, draft.Ticket)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		if err := s.Cancel(ctx, id); err != nil {
			log.Printf("Failed to cancel check-in %s: %v", id, err)
		} else {
			log.Printf("Check-in %s expired and ticket released.", id)
		}
	}

	if orphans := s.ledger.ExpireReservations(ctx, s.opts.ReservationTTL, busy...); len(orphans) > 0 {
		log.Printf("Released %d orphaned reservations: %v", len(orphans), orphans)
		s.publishTickets(0, "")
	}
}

func (s *CheckInService) guardLocked(draft *CheckInDraft, user *domain.User) error {
	if user == nil || user.DocumentNumber == "" {
		return ErrUserRequired
	}
	if !domain.ValidDocumentNumber(user.DocumentNumber) {
		return ErrInvalidDocument
	}
	if draft.Ticket == "" {
		return ErrNoTicket
	}
	if draft.State != CheckInReserving || s.confirming[draft.LockerID] {
		return ErrCheckInInProgress
	}
	locker, ok := s.cache.Locker(draft.LockerID)
	if !ok {
		return ErrLockerNotFound
	}
	if !locker.HasRoom() {
		return ErrLockerFull
	}
	return nil
}

func (s *CheckInService) setState(draft *CheckInDraft, state CheckInState) {
	s.mu.Lock()
	draft.State = state
	s.mu.Unlock()
}

// compensate discards optimistic edits by pulling the server snapshot right away.
func (s *CheckInService) compensate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if _, err := s.cache.Refresh(ctx, true); err != nil {
		log.Printf("check-in: compensating refresh failed: %v", err)
	}
}

func (s *CheckInService) scheduleRefresh() {
	s.pending.Add(1)
	time.AfterFunc(s.opts.ConfirmRefreshDelay, func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
		defer cancel()

		if _, err := s.cache.Refresh(ctx, true); err != nil {
			log.Printf("check-in: deferred refresh failed: %v", err)
		}
	})
}

func (s *CheckInService) publishTickets(lockerID int, ticket domain.TicketCode) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Kind:     events.TicketsChanged,
		Source:   events.SourceLocal,
		LockerID: lockerID,
		Ticket:   string(ticket),
	})
}
