package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"

	"github.com/srgjo27/custodia/internal/platform/events"
)

// Refresher is asked to revalidate the locker snapshot when a browser requests it.
type Refresher interface {
	RequestRefresh()
}

type Client struct {
	ID    string
	Send  chan []byte
	kinds map[events.Kind]bool
}

type Envelope struct {
	Type      events.Kind  `json:"type"`
	Payload   events.Event `json:"payload"`
	CreatedAt time.Time    `json:"created_at"`
}

type ClientMessage struct {
	Action string        `json:"action"`
	Kinds  []events.Kind `json:"kinds,omitempty"`
}

// Hub fans bus events out to connected browsers.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	bus       *events.Bus
	refresher Refresher
}

func New(bus *events.Bus, refresher Refresher) *Hub {
	return &Hub{clients: make(map[string]*Client), bus: bus, refresher: refresher}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, kinds []events.Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.kinds = make(map[events.Kind]bool, len(kinds))
	for _, kind := range kinds {
		client.kinds[kind] = true
	}
}

func (h *Hub) Broadcast(ev events.Event) {
	payload, err := json.Marshal(Envelope{Type: ev.Kind, Payload: ev, CreatedAt: ev.At})
	if err != nil {
		log.Printf("realtime: encode %s: %v", ev.Kind, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if len(client.kinds) > 0 && !client.kinds[ev.Kind] {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

// Run forwards every bus event until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	sub := h.bus.Subscribe(64)
	defer h.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

func (h *Hub) Handler(prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, h.serveSession)
}

func (h *Hub) serveSession(session sockjs.Session) {
	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
	h.Register(client)
	defer h.Unregister(client)

	go func() {
		for msg := range client.Send {
			_ = session.Send(string(msg))
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		h.handleMessage(client, []byte(msg))
	}
}

func (h *Hub) handleMessage(client *Client, data []byte) {
	parsed, ok := ParseClientMessage(data)
	if !ok {
		return
	}
	switch parsed.Action {
	case "subscribe":
		h.UpdateSubscription(client, parsed.Kinds)
	case "unsubscribe":
		h.UpdateSubscription(client, nil)
	case "refresh":
		if h.refresher != nil {
			h.refresher.RequestRefresh()
		}
	}
}

func ParseClientMessage(data []byte) (ClientMessage, bool) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, false
	}
	switch msg.Action {
	case "subscribe", "unsubscribe", "refresh":
		return msg, true
	}
	return ClientMessage{}, false
}
