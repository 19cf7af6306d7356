package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialTestHub membuka server websocket kecil yang langsung subscribe
// ke hub untuk team tertentu.
func dialTestHub(t *testing.T, hub *Hub, teamID uint) (*websocket.Conn, func()) {
	subscribed := make(chan *Subscriber, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := hub.Subscribe(teamID, ws)
		subscribed <- sub
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unsubscribe(sub)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)

	<-subscribed

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, Event) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	assert.NoError(t, err)

	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(raw, &msg))

	var ev Event
	if len(msg.Data) > 0 {
		assert.NoError(t, json.Unmarshal(msg.Data, &ev))
	}
	return msg.Event, ev
}

func TestPublishDeliversInOrder(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialTestHub(t, hub, 1)
	defer cleanup()

	hub.Publish(1, Event{Seq: 1, Entity: "appointments", Action: "INSERT", RecordID: 10})
	hub.Publish(1, Event{Seq: 2, Entity: "appointments", Action: "UPDATE", RecordID: 10})
	hub.Publish(1, Event{Seq: 3, Entity: "notifications", Action: "DELETE", RecordID: 4})

	var seqs []uint64
	for i := 0; i < 3; i++ {
		event, ev := readEvent(t, conn)
		assert.Equal(t, EventChange, event)
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

// TestPublishFiltersByTeam: event team lain tidak pernah sampai
func TestPublishFiltersByTeam(t *testing.T) {
	hub := NewHub()
	conn1, cleanup1 := dialTestHub(t, hub, 1)
	defer cleanup1()
	conn2, cleanup2 := dialTestHub(t, hub, 2)
	defer cleanup2()

	hub.Publish(1, Event{Seq: 1, Entity: "appointments", Action: "INSERT", RecordID: 1})
	hub.Publish(2, Event{Seq: 2, Entity: "appointments", Action: "INSERT", RecordID: 2})

	_, ev1 := readEvent(t, conn1)
	assert.Equal(t, uint64(1), ev1.Seq)

	_, ev2 := readEvent(t, conn2)
	assert.Equal(t, uint64(2), ev2.Seq)

	// Tidak ada pesan kedua untuk conn1
	conn1.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn1.ReadMessage()
	assert.Error(t, err)
}

// wsPair membuka satu koneksi websocket mentah: sisi server + sisi client,
// tanpa subscribe ke hub.
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn, func()) {
	serverCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverCh <- ws
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)

	server := <-serverCh
	return server, client, func() {
		client.Close()
		server.Close()
		srv.Close()
	}
}

// TestSlowSubscriberOverflow: publish melebihi kapasitas queue ke
// subscriber yang pump-nya belum jalan. Publisher tidak boleh
// memblokir, dan setelah backlog terkirim client harus dapat
// resync_required.
func TestSlowSubscriberOverflow(t *testing.T) {
	server, client, cleanup := wsPair(t)
	defer cleanup()

	sub := &Subscriber{
		TeamID: 1,
		conn:   server,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}

	hub := NewHub()
	hub.teams[1] = map[*Subscriber]bool{sub: true}

	published := make(chan struct{})
	go func() {
		for i := 0; i < queueSize+20; i++ {
			hub.Publish(1, Event{Seq: uint64(i + 1), Entity: "appointments", Action: "INSERT", RecordID: 1})
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish memblokir pada queue penuh")
	}
	assert.True(t, sub.overflowed.Load())

	// Pump baru jalan sekarang; isi queue terkirim berurutan
	go sub.writePump()

	for i := 0; i < queueSize; i++ {
		event, ev := readEvent(t, client)
		assert.Equal(t, EventChange, event)
		assert.Equal(t, uint64(i+1), ev.Seq)
	}

	event, _ := readEvent(t, client)
	assert.Equal(t, EventResyncRequired, event)
}

func TestUnsubscribeReleasesSubscriber(t *testing.T) {
	hub := NewHub()
	conn, cleanup := dialTestHub(t, hub, 7)

	assert.Equal(t, 1, hub.SubscriberCount(7))

	conn.Close()
	assert.Eventually(t, func() bool {
		return hub.SubscriberCount(7) == 0
	}, 2*time.Second, 50*time.Millisecond)

	cleanup()

	// Publish ke team tanpa subscriber tidak boleh panik/blok
	hub.Publish(7, Event{Seq: 99})
}
