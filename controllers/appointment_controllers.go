package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/terminplaner/terminplaner-app/models"
	"github.com/terminplaner/terminplaner-app/services"
	"github.com/terminplaner/terminplaner-app/utils"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type AppointmentController struct {
	DB   *gorm.DB
	Feed *services.ChangeFeed
}

func NewAppointmentController(db *gorm.DB, feed *services.ChangeFeed) *AppointmentController {
	return &AppointmentController{DB: db, Feed: feed}
}

// CreateAppointment -> termin baru. Dalam transaksi yang sama dibuat
// notifikasi new_termin plus baris change log untuk keduanya.
func (ac *AppointmentController) CreateAppointment(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	var req struct {
		CustomerName    string `json:"customer_name" binding:"required"`
		Phone           string `json:"phone"`
		Date            string `json:"date" binding:"required"`
		Time            string `json:"time" binding:"required"`
		Note            string `json:"note"`
		ReminderMinutes *int   `json:"reminder_minutes"`
		Status          string `json:"status"`
		CreatedBy       string `json:"created_by"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", req.Date))
		return
	}
	if _, err := time.Parse(timeLayout, req.Time); err != nil {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid time %q, expected HH:MM", req.Time))
		return
	}

	appt := models.Appointment{
		TeamID:          teamID,
		CustomerName:    req.CustomerName,
		Phone:           req.Phone,
		Date:            req.Date,
		Time:            req.Time,
		Note:            req.Note,
		ReminderMinutes: 15,
		Status:          models.StatusPending,
		CreatedBy:       models.CreatorChef,
	}

	if req.ReminderMinutes != nil {
		if *req.ReminderMinutes < 0 {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("reminder_minutes must be >= 0"))
			return
		}
		appt.ReminderMinutes = *req.ReminderMinutes
	}
	if req.Status != "" {
		if !models.IsValidStatus(req.Status) {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid status %q", req.Status))
			return
		}
		appt.Status = req.Status
	}
	if req.CreatedBy != "" {
		appt.CreatedBy = req.CreatedBy
	}

	err := runTx(ac.DB, func(tx *gorm.DB) error {
		if err := tx.Create(&appt).Error; err != nil {
			return err
		}

		notif := models.Notification{
			TeamID:        teamID,
			AppointmentID: &appt.ID,
			Title:         "Neuer Termin",
			Message:       fmt.Sprintf("%s am %s um %s", appt.CustomerName, appt.Date, appt.Time),
			Type:          models.NotifTypeNewTermin,
		}
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}

		if _, err := ac.Feed.Record(tx, teamID, models.EntityAppointments, models.ActionInsert, appt.ID, appt); err != nil {
			return err
		}
		_, err := ac.Feed.Record(tx, teamID, models.EntityNotifications, models.ActionInsert, notif.ID, notif)
		return err
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	// Dispatch hanya setelah commit; gagal kirim tidak membatalkan apa pun
	ac.Feed.Dispatch()

	utils.InfoLogger.Printf("Appointment %d created for team %d", appt.ID, teamID)
	utils.RespondJSON(c, http.StatusCreated, "Appointment created", appt)
}

// GetAllAppointments -> list termin milik team, filter opsional
// ?status=, ?from=, ?to= (rentang tanggal), urut tanggal lalu jam.
func (ac *AppointmentController) GetAllAppointments(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	query := ac.DB.Scopes(models.TeamScope(teamID))

	if status := c.Query("status"); status != "" {
		if !models.IsValidStatus(status) {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid status %q", status))
			return
		}
		query = query.Where("status = ?", status)
	}
	if from := c.Query("from"); from != "" {
		if _, err := time.Parse(dateLayout, from); err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid from date %q", from))
			return
		}
		query = query.Where("date >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		if _, err := time.Parse(dateLayout, to); err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid to date %q", to))
			return
		}
		query = query.Where("date <= ?", to)
	}

	var appts []models.Appointment
	if err := query.Order("date ASC, time ASC").Find(&appts).Error; err != nil {
		respondStorageError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of appointments", appts)
}

// GetAppointmentByID -> detail satu termin
func (ac *AppointmentController) GetAppointmentByID(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	id, _ := strconv.Atoi(c.Param("appointment_id"))

	var appt models.Appointment
	if err := ac.DB.Scopes(models.TeamScope(teamID)).First(&appt, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotFound)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Appointment detail", appt)
}

// UpdateAppointment -> partial update, last-writer-wins.
// updated_at selalu di-refresh oleh gorm saat Save.
func (ac *AppointmentController) UpdateAppointment(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	id, _ := strconv.Atoi(c.Param("appointment_id"))

	var req struct {
		CustomerName    *string `json:"customer_name"`
		Phone           *string `json:"phone"`
		Date            *string `json:"date"`
		Time            *string `json:"time"`
		Note            *string `json:"note"`
		ReminderMinutes *int    `json:"reminder_minutes"`
		Status          *string `json:"status"`
		CreatedBy       *string `json:"created_by"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var appt models.Appointment
	if err := ac.DB.Scopes(models.TeamScope(teamID)).First(&appt, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotFound)
		return
	}

	if req.CustomerName != nil {
		if *req.CustomerName == "" {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("customer_name must not be empty"))
			return
		}
		appt.CustomerName = *req.CustomerName
	}
	if req.Phone != nil {
		appt.Phone = *req.Phone
	}
	if req.Date != nil {
		if _, err := time.Parse(dateLayout, *req.Date); err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", *req.Date))
			return
		}
		appt.Date = *req.Date
	}
	if req.Time != nil {
		if _, err := time.Parse(timeLayout, *req.Time); err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid time %q, expected HH:MM", *req.Time))
			return
		}
		appt.Time = *req.Time
	}
	if req.Note != nil {
		appt.Note = *req.Note
	}
	if req.ReminderMinutes != nil {
		if *req.ReminderMinutes < 0 {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("reminder_minutes must be >= 0"))
			return
		}
		appt.ReminderMinutes = *req.ReminderMinutes
	}
	if req.Status != nil {
		if !models.IsValidStatus(*req.Status) {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid status %q", *req.Status))
			return
		}
		appt.Status = *req.Status
	}
	if req.CreatedBy != nil {
		appt.CreatedBy = *req.CreatedBy
	}

	err := runTx(ac.DB, func(tx *gorm.DB) error {
		if err := tx.Save(&appt).Error; err != nil {
			return err
		}
		_, err := ac.Feed.Record(tx, teamID, models.EntityAppointments, models.ActionUpdate, appt.ID, appt)
		return err
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	ac.Feed.Dispatch()

	utils.InfoLogger.Printf("Appointment %d updated (team %d)", appt.ID, teamID)
	utils.RespondJSON(c, http.StatusOK, "Appointment updated", appt)
}

// DeleteAppointment -> hard delete. Notifikasi yang menunjuk termin ini
// TIDAK ikut terhapus: referensinya di-null-kan dalam transaksi yang sama.
func (ac *AppointmentController) DeleteAppointment(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	id, _ := strconv.Atoi(c.Param("appointment_id"))

	var appt models.Appointment
	if err := ac.DB.Scopes(models.TeamScope(teamID)).First(&appt, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotFound)
		return
	}

	err := runTx(ac.DB, func(tx *gorm.DB) error {
		var linked []models.Notification
		if err := tx.Scopes(models.TeamScope(teamID)).
			Where("appointment_id = ?", appt.ID).
			Find(&linked).Error; err != nil {
			return err
		}

		if len(linked) > 0 {
			if err := tx.Model(&models.Notification{}).
				Scopes(models.TeamScope(teamID)).
				Where("appointment_id = ?", appt.ID).
				Update("appointment_id", nil).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&appt).Error; err != nil {
			return err
		}

		if _, err := ac.Feed.Record(tx, teamID, models.EntityAppointments, models.ActionDelete, appt.ID, gin.H{"id": appt.ID}); err != nil {
			return err
		}

		for i := range linked {
			linked[i].AppointmentID = nil
			if _, err := ac.Feed.Record(tx, teamID, models.EntityNotifications, models.ActionUpdate, linked[i].ID, linked[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	ac.Feed.Dispatch()

	utils.InfoLogger.Printf("Appointment %d deleted (team %d)", appt.ID, teamID)
	utils.RespondJSON(c, http.StatusOK, "Appointment deleted", gin.H{"id": appt.ID})
}
