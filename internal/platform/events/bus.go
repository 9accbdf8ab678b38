package events

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	LockersUpdated     Kind = "lockers.updated"
	TicketsChanged     Kind = "tickets.changed"
	EmergencyItemAdded Kind = "emergency.item_added"
	ActivityAppended   Kind = "activity.appended"
)

// Source tells subscribers what produced an event: a local mutation, a server
// snapshot, or a view asking for revalidation.
type Source string

const (
	SourceLocal   Source = "local"
	SourceServer  Source = "server"
	SourceRequest Source = "request"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	Source   Source    `json:"source,omitempty"`
	LockerID int       `json:"lockerId,omitempty"`
	Ticket   string    `json:"ticket,omitempty"`
	Version  uint64    `json:"version,omitempty"`
	At       time.Time `json:"at"`
}

type Subscription struct {
	ID    string
	C     <-chan Event
	ch    chan Event
	kinds map[Kind]bool
}

func (s *Subscription) wants(kind Kind) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

// Bus is a same-process broadcast. Slow subscribers lose events instead of blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func New() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscribe registers for the given kinds, or for every kind when none are given.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch, kinds: make(map[Kind]bool, len(kinds))}
	for _, kind := range kinds {
		sub.kinds[kind] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.ID] = sub
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; !ok {
		return
	}
	delete(b.subs, sub.ID)
	close(sub.ch)
}

func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Printf("drop event %s for subscriber %s", ev.Kind, sub.ID)
		}
	}
}
