package models

import "time"

// Tipe notifikasi yang diizinkan
const (
	NotifTypeNewTermin = "new_termin"
	NotifTypeReminder  = "reminder"
	NotifTypeCustom    = "custom"
)

type Notification struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	TeamID        uint         `gorm:"not null;index" json:"team_id"`
	Team          Team         `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	AppointmentID *uint        `gorm:"index" json:"appointment_id,omitempty"`
	Appointment   *Appointment `gorm:"foreignKey:AppointmentID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Title         string       `gorm:"type:varchar(100);not null" json:"title"`
	Message       string       `gorm:"type:text;not null" json:"message"`
	Type          string       `gorm:"type:varchar(20);not null;default:'custom'" json:"type"`
	Read          bool         `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

// IsValidNotifType memeriksa enum tipe notifikasi
func IsValidNotifType(t string) bool {
	return t == NotifTypeNewTermin || t == NotifTypeReminder || t == NotifTypeCustom
}
