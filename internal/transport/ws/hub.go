package ws

import (
	"sync"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/protocol"
)

type client struct {
	id  uint64
	uid string
	out chan []byte

	// evicted is closed when the client fell too far behind to stay consistent.
	evicted   chan struct{}
	evictOnce sync.Once
}

func newClient(id uint64, uid string, queue int) *client {
	return &client{id: id, uid: uid, out: make(chan []byte, queue), evicted: make(chan struct{})}
}

func (c *client) evict() { c.evictOnce.Do(func() { close(c.evicted) }) }

// Hub fans replication messages out to connected clients. Broadcast never blocks the
// simulation. Snapshots and removals are never resent, so a client whose outbox is full
// is evicted and has to rejoin for a fresh snapshot.
type Hub struct {
	mu      deadlock.Mutex
	clients map[uint64]*client

	evicted atomic.Int64
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{clients: map[uint64]*client{}, log: log}
}

func (h *Hub) Broadcast(m protocol.Message) {
	b, err := protocol.Encode(m)
	if err != nil {
		h.log.WithError(err).WithField("type", m.MessageType()).Error("encode broadcast")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueue(c, b)
	}
}

func (h *Hub) enqueue(c *client, b []byte) {
	select {
	case c.out <- b:
	default:
		delete(h.clients, c.id)
		c.evict()
		h.evicted.Add(1)
		h.log.WithFields(logrus.Fields{"client": c.id, "player_uid": c.uid}).Warn("outbox full, evicting client")
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Evicted counts clients disconnected because their outbox overflowed.
func (h *Hub) Evicted() int64 { return h.evicted.Load() }
