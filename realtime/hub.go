package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Event types
const (
	EventChange         = "change"
	EventResyncRequired = "resync_required"
)

const (
	writeWait = 10 * time.Second
	queueSize = 64
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Event adalah satu mutasi yang sudah di-commit, seperti yang dikirim
// ke subscriber: entity + aksi + snapshot baris + sequence number.
type Event struct {
	Seq      uint64          `json:"seq"`
	Entity   string          `json:"entity"`
	Action   string          `json:"action"`
	RecordID uint            `json:"record_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Subscriber adalah satu koneksi websocket milik satu team.
// Lifecycle: Subscribe -> writePump jalan -> Unsubscribe.
type Subscriber struct {
	TeamID uint

	conn       *websocket.Conn
	queue      chan Event
	done       chan struct{}
	closeOnce  sync.Once
	overflowed atomic.Bool
}

// Hub menampung semua subscriber per team dan menyiarkan event
// hanya ke subscriber dengan team yang sama.
type Hub struct {
	mu    sync.Mutex
	teams map[uint]map[*Subscriber]bool
}

func NewHub() *Hub {
	return &Hub{
		teams: make(map[uint]map[*Subscriber]bool),
	}
}

// Subscribe mendaftarkan koneksi untuk satu team dan memulai write pump.
func (h *Hub) Subscribe(teamID uint, conn *websocket.Conn) *Subscriber {
	s := &Subscriber{
		TeamID: teamID,
		conn:   conn,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.teams[teamID] == nil {
		h.teams[teamID] = make(map[*Subscriber]bool)
	}
	h.teams[teamID][s] = true
	h.mu.Unlock()

	go s.writePump()
	return s
}

// Unsubscribe melepaskan koneksi dan membebaskan queue-nya.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if subs, exists := h.teams[s.TeamID]; exists {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.teams, s.TeamID)
		}
	}
	h.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Publish mengirim event ke semua subscriber team tersebut.
// Tidak pernah memblokir publisher: kalau queue subscriber penuh,
// event di-drop dan subscriber ditandai harus resync.
func (h *Hub) Publish(teamID uint, ev Event) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.teams[teamID]))
	for s := range h.teams[teamID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.enqueue(ev)
	}
}

// SubscriberCount untuk monitoring/test
func (h *Hub) SubscriberCount(teamID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.teams[teamID])
}

// Enqueue memasukkan event langsung ke queue subscriber ini,
// dipakai untuk replay saat reconnect.
func (s *Subscriber) Enqueue(ev Event) {
	s.enqueue(ev)
}

func (s *Subscriber) enqueue(ev Event) {
	select {
	case s.queue <- ev:
	case <-s.done:
	default:
		// Subscriber lambat: jangan tahan writer, minta resync saja
		s.overflowed.Store(true)
	}
}

func (s *Subscriber) writePump() {
	for {
		select {
		case ev := <-s.queue:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(Message{Event: EventChange, Data: ev}); err != nil {
				s.closeOnce.Do(func() {
					close(s.done)
					s.conn.Close()
				})
				return
			}

			// Queue sempat penuh: kabari client setelah backlog habis
			if len(s.queue) == 0 && s.overflowed.CompareAndSwap(true, false) {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteJSON(Message{Event: EventResyncRequired}); err != nil {
					s.closeOnce.Do(func() {
						close(s.done)
						s.conn.Close()
					})
					return
				}
			}
		case <-s.done:
			return
		}
	}
}
