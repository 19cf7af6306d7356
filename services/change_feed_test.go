package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terminplaner/terminplaner-app/models"
	"github.com/terminplaner/terminplaner-app/realtime"
	"github.com/terminplaner/terminplaner-app/utils"
)

func setupFeedTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:feedtest?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Team{}, &models.ChangeLog{}))
	return db
}

var feedTestUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// dialFeedHub membuka server websocket kecil yang subscribe ke hub
// untuk satu team.
func dialFeedHub(t *testing.T, hub *realtime.Hub, teamID uint) (*websocket.Conn, func()) {
	subscribed := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := feedTestUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := hub.Subscribe(teamID, ws)
		subscribed <- struct{}{}
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

func readFeedEvent(t *testing.T, conn *websocket.Conn) realtime.Event {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	assert.NoError(t, err)

	var msg struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, realtime.EventChange, msg.Event)

	var ev realtime.Event
	assert.NoError(t, json.Unmarshal(msg.Data, &ev))
	return ev
}

func TestRecordAndDispatch(t *testing.T) {
	utils.InitLogger()
	db := setupFeedTestDB(t)
	feed := NewChangeFeed(db, realtime.NewHub())

	var entry *models.ChangeLog
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = feed.Record(tx, 1, models.EntityAppointments, models.ActionInsert, 42, map[string]interface{}{"id": 42})
		return err
	})
	assert.NoError(t, err)
	assert.NotZero(t, entry.ID)

	// Sebelum dispatch: belum processed
	var stored models.ChangeLog
	assert.NoError(t, db.First(&stored, entry.ID).Error)
	assert.False(t, stored.Processed)

	feed.Dispatch()

	assert.NoError(t, db.First(&stored, entry.ID).Error)
	assert.True(t, stored.Processed)
}

// TestDispatchDeliversCommitOrder: dua transaksi terpisah di-commit,
// lalu satu kali Dispatch harus mengantar keduanya urut sequence —
// termasuk baris dari transaksi lain yang belum sempat di-dispatch
// penulisnya sendiri.
func TestDispatchDeliversCommitOrder(t *testing.T) {
	utils.InitLogger()
	db := setupFeedTestDB(t)
	hub := realtime.NewHub()
	feed := NewChangeFeed(db, hub)

	conn, cleanup := dialFeedHub(t, hub, 3)
	defer cleanup()

	var first, second *models.ChangeLog
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = feed.Record(tx, 3, models.EntityAppointments, models.ActionInsert, 10, nil)
		return err
	})
	assert.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = feed.Record(tx, 3, models.EntityAppointments, models.ActionUpdate, 10, nil)
		return err
	})
	assert.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	feed.Dispatch()

	ev1 := readFeedEvent(t, conn)
	assert.Equal(t, first.ID, ev1.Seq)
	assert.Equal(t, models.ActionInsert, ev1.Action)

	ev2 := readFeedEvent(t, conn)
	assert.Equal(t, second.ID, ev2.Seq)
	assert.Equal(t, models.ActionUpdate, ev2.Action)

	// Dispatch kedua tidak boleh mengirim ulang
	feed.Dispatch()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, readErr := conn.ReadMessage()
	assert.Error(t, readErr)
}

func TestReplayReturnsOnlyNewerEntriesOfTeam(t *testing.T) {
	utils.InitLogger()
	db := setupFeedTestDB(t)
	feed := NewChangeFeed(db, realtime.NewHub())

	var first, second, foreign *models.ChangeLog
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if first, err = feed.Record(tx, 5, models.EntityAppointments, models.ActionInsert, 1, nil); err != nil {
			return err
		}
		if foreign, err = feed.Record(tx, 6, models.EntityAppointments, models.ActionInsert, 2, nil); err != nil {
			return err
		}
		second, err = feed.Record(tx, 5, models.EntityAppointments, models.ActionUpdate, 1, nil)
		return err
	})
	assert.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
	_ = foreign

	events, err := feed.Replay(5, first.ID)
	assert.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, second.ID, events[0].Seq)
	assert.Equal(t, models.ActionUpdate, events[0].Action)

	// Dari nol: semua event team 5, tidak ada milik team 6
	events, err = feed.Replay(5, 0)
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	for _, ev := range events {
		assert.NotEqual(t, foreign.ID, ev.Seq)
	}
}

func TestDispatchPicksUpLeftovers(t *testing.T) {
	utils.InitLogger()
	db := setupFeedTestDB(t)
	feed := NewChangeFeed(db, realtime.NewHub())

	// Baris yang commit tapi dispatch-nya gagal/hilang
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := feed.Record(tx, 9, models.EntityNotifications, models.ActionInsert, 3, nil)
		return err
	})
	assert.NoError(t, err)

	feed.Dispatch()

	var count int64
	db.Model(&models.ChangeLog{}).Where("processed = ? AND team_id = ?", false, 9).Count(&count)
	assert.Equal(t, int64(0), count)
}
