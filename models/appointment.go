package models

import "time"

// Status yang diizinkan untuk appointment
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

// Pembuat default
const (
	CreatorChef    = "chef"
	CreatorKollege = "kollege"
)

type Appointment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TeamID          uint      `gorm:"not null;index" json:"team_id"`
	Team            Team      `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"-"`
	CustomerName    string    `gorm:"type:varchar(255);not null" json:"customer_name"`
	Phone           string    `gorm:"type:varchar(50);default:''" json:"phone"`
	Date            string    `gorm:"type:date;not null" json:"date"`
	Time            string    `gorm:"type:varchar(5);not null" json:"time"`
	Note            string    `gorm:"type:text" json:"note"`
	ReminderMinutes int       `gorm:"not null" json:"reminder_minutes"`
	Status          string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedBy       string    `gorm:"type:varchar(50);not null;default:'chef'" json:"created_by"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

// IsValidStatus memeriksa enum status
func IsValidStatus(s string) bool {
	return s == StatusPending || s == StatusConfirmed
}
