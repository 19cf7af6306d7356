package models

import (
	"time"

	"gorm.io/gorm"
)

type Team struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChannelCode string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"channel_code"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`

	Appointments  []Appointment  `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications []Notification `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
}

// TeamScope membatasi query ke baris milik satu team.
// Semua query store wajib lewat scope ini.
func TeamScope(teamID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("team_id = ?", teamID)
	}
}
