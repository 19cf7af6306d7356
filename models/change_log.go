package models

import "time"

// Jenis aksi pada change log
const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Nama entity pada change log
const (
	EntityAppointments  = "appointments"
	EntityNotifications = "notifications"
)

// ChangeLog mencatat setiap mutasi yang sudah di-commit pada tabel
// appointments dan notifications. ID auto-increment dipakai sebagai
// sequence number per team: selalu naik, urut sesuai commit.
type ChangeLog struct {
	ID         uint64    `gorm:"primaryKey" json:"seq"`
	TeamID     uint      `gorm:"not null;index:idx_team_seq" json:"team_id"`
	Entity     string    `gorm:"type:varchar(50);not null" json:"entity"`
	ActionType string    `gorm:"type:varchar(10);not null" json:"action"`
	RecordID   uint      `gorm:"not null" json:"record_id"`
	Payload    string    `gorm:"type:text" json:"payload"`
	ChangedAt  time.Time `gorm:"not null" json:"changed_at"`
	Processed  bool      `gorm:"not null;default:false;index:idx_processed" json:"-"`
}
