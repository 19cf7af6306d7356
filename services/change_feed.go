package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/terminplaner/terminplaner-app/models"
	"github.com/terminplaner/terminplaner-app/realtime"
	"github.com/terminplaner/terminplaner-app/utils"
	"gorm.io/gorm"
)

const dispatchBatch = 100

// ChangeFeed menulis change log di dalam transaksi penulis, lalu
// menyiarkannya ke hub setelah commit. Semua siaran lewat Dispatch
// yang diserialisasi mutex dan urut id, jadi urutan commit per team
// terjaga walau penulisnya paralel. Ticker di belakang memanggil
// Dispatch juga untuk menyapu baris yang tertinggal (misalnya proses
// mati sebelum sempat dispatch), jadi delivery at-least-once dan
// duplikat mungkin terjadi.
type ChangeFeed struct {
	DB       *gorm.DB
	Hub      *realtime.Hub
	StopChan chan struct{}
	Interval time.Duration

	dispatchMu sync.Mutex
}

func NewChangeFeed(db *gorm.DB, hub *realtime.Hub) *ChangeFeed {
	return &ChangeFeed{
		DB:       db,
		Hub:      hub,
		StopChan: make(chan struct{}),
		Interval: 1 * time.Second,
	}
}

// Record membuat baris change log di dalam transaksi tx.
// snapshot adalah post-image baris (atau hanya id untuk DELETE).
func (cf *ChangeFeed) Record(tx *gorm.DB, teamID uint, entity, action string, recordID uint, snapshot interface{}) (*models.ChangeLog, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	entry := &models.ChangeLog{
		TeamID:     teamID,
		Entity:     entity,
		ActionType: action,
		RecordID:   recordID,
		Payload:    string(payload),
		ChangedAt:  time.Now(),
		Processed:  false,
	}

	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Dispatch menyiarkan SEMUA baris change log yang belum terkirim,
// urut id, lalu menandainya processed. Penulis memanggil ini setelah
// commit; siapa pun yang kebagian giliran pertama ikut mengirim baris
// penulis lain yang commit lebih dulu, sehingga subscriber tidak pernah
// melihat seq N+1 sebelum N. Error di sini tidak boleh sampai ke penulis.
func (cf *ChangeFeed) Dispatch() {
	cf.dispatchMu.Lock()
	defer cf.dispatchMu.Unlock()

	for {
		var entries []models.ChangeLog
		if err := cf.DB.Where("processed = ?", false).
			Order("id ASC").
			Limit(dispatchBatch).
			Find(&entries).Error; err != nil {
			utils.ErrorLogger.Printf("Error fetching unprocessed changes: %v", err)
			return
		}

		if len(entries) == 0 {
			return
		}

		for i := range entries {
			entry := &entries[i]
			cf.Hub.Publish(entry.TeamID, eventFor(entry))

			if err := cf.DB.Model(&models.ChangeLog{}).
				Where("id = ?", entry.ID).
				Update("processed", true).Error; err != nil {
				utils.ErrorLogger.Printf("Error marking change %d as processed: %v", entry.ID, err)
			}
		}

		if len(entries) < dispatchBatch {
			return
		}
	}
}

// Replay mengambil change log suatu team setelah sequence tertentu,
// untuk resync subscriber yang reconnect.
func (cf *ChangeFeed) Replay(teamID uint, since uint64) ([]realtime.Event, error) {
	var entries []models.ChangeLog
	if err := cf.DB.Scopes(models.TeamScope(teamID)).
		Where("id > ?", since).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	events := make([]realtime.Event, 0, len(entries))
	for i := range entries {
		events = append(events, eventFor(&entries[i]))
	}
	return events, nil
}

func (cf *ChangeFeed) Start() {
	go func() {
		ticker := time.NewTicker(cf.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cf.Dispatch()
			case <-cf.StopChan:
				return
			}
		}
	}()
}

func (cf *ChangeFeed) Stop() {
	close(cf.StopChan)
}

func eventFor(entry *models.ChangeLog) realtime.Event {
	return realtime.Event{
		Seq:      entry.ID,
		Entity:   entry.Entity,
		Action:   entry.ActionType,
		RecordID: entry.RecordID,
		Payload:  json.RawMessage(entry.Payload),
	}
}
