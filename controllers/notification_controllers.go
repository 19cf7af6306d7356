package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/terminplaner/terminplaner-app/models"
	"github.com/terminplaner/terminplaner-app/services"
	"github.com/terminplaner/terminplaner-app/utils"
	"gorm.io/gorm"
)

// errAppointmentLink: appointment_id menunjuk termin yang tidak ada
// atau milik team lain
var errAppointmentLink = errors.New("appointment not found for this team")

type NotificationController struct {
	DB   *gorm.DB
	Feed *services.ChangeFeed
}

func NewNotificationController(db *gorm.DB, feed *services.ChangeFeed) *NotificationController {
	return &NotificationController{DB: db, Feed: feed}
}

// GetAllNotifications -> list milik team, terbaru duluan, filter ?read=
func (nc *NotificationController) GetAllNotifications(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	query := nc.DB.Scopes(models.TeamScope(teamID))

	if read := c.Query("read"); read != "" {
		val, err := strconv.ParseBool(read)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid read filter %q", read))
			return
		}
		query = query.Where("is_read = ?", val)
	}

	var notifs []models.Notification
	if err := query.Order("created_at DESC, id DESC").Find(&notifs).Error; err != nil {
		respondStorageError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of notifications", notifs)
}

// CreateNotification -> notifikasi custom dari user. Kalau appointment_id
// diisi, termin itu harus milik team yang sama; link lintas team ditolak.
// Cek kepemilikan ikut di dalam transaksi insert supaya termin tidak bisa
// hilang di antara cek dan insert.
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	var req struct {
		Title         string `json:"title" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Type          string `json:"type"`
		AppointmentID *uint  `json:"appointment_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	notifType := models.NotifTypeCustom
	if req.Type != "" {
		if !models.IsValidNotifType(req.Type) {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid type %q", req.Type))
			return
		}
		notifType = req.Type
	}

	var notif models.Notification
	err := runTx(nc.DB, func(tx *gorm.DB) error {
		notif = models.Notification{
			TeamID:  teamID,
			Title:   req.Title,
			Message: req.Message,
			Type:    notifType,
		}

		if req.AppointmentID != nil {
			var appt models.Appointment
			if err := tx.Scopes(models.TeamScope(teamID)).First(&appt, *req.AppointmentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errAppointmentLink
				}
				return err
			}
			notif.AppointmentID = req.AppointmentID
		}

		if err := tx.Create(&notif).Error; err != nil {
			return err
		}
		_, err := nc.Feed.Record(tx, teamID, models.EntityNotifications, models.ActionInsert, notif.ID, notif)
		return err
	})
	if errors.Is(err, errAppointmentLink) {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("appointment %d not found", *req.AppointmentID))
		return
	}
	if err != nil {
		respondStorageError(c, err)
		return
	}

	nc.Feed.Dispatch()

	utils.InfoLogger.Printf("Notification %d created for team %d", notif.ID, teamID)
	utils.RespondJSON(c, http.StatusCreated, "Notification created", notif)
}

// GetNotificationByID
func (nc *NotificationController) GetNotificationByID(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	id, _ := strconv.Atoi(c.Param("notif_id"))

	var notif models.Notification
	if err := nc.DB.Scopes(models.TeamScope(teamID)).First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotFound)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification detail", notif)
}

// MarkNotificationRead -> set read flag. Idempotent: menandai yang sudah
// read bukan error dan tidak menghasilkan event baru.
func (nc *NotificationController) MarkNotificationRead(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	id, _ := strconv.Atoi(c.Param("notif_id"))

	var notif models.Notification
	if err := nc.DB.Scopes(models.TeamScope(teamID)).First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotFound)
		return
	}

	if notif.Read {
		utils.RespondJSON(c, http.StatusOK, "Notification already read", notif)
		return
	}

	notif.Read = true

	err := runTx(nc.DB, func(tx *gorm.DB) error {
		if err := tx.Model(&notif).Update("is_read", true).Error; err != nil {
			return err
		}
		_, err := nc.Feed.Record(tx, teamID, models.EntityNotifications, models.ActionUpdate, notif.ID, notif)
		return err
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	nc.Feed.Dispatch()

	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", notif)
}

// DeleteNotification
func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	id, _ := strconv.Atoi(c.Param("notif_id"))

	var notif models.Notification
	if err := nc.DB.Scopes(models.TeamScope(teamID)).First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNotFound)
		return
	}

	err := runTx(nc.DB, func(tx *gorm.DB) error {
		if err := tx.Delete(&notif).Error; err != nil {
			return err
		}
		_, err := nc.Feed.Record(tx, teamID, models.EntityNotifications, models.ActionDelete, notif.ID, gin.H{"id": notif.ID})
		return err
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	nc.Feed.Dispatch()

	utils.InfoLogger.Printf("Notification %d deleted (team %d)", notif.ID, teamID)
	utils.RespondJSON(c, http.StatusOK, "Notification deleted", gin.H{"id": notif.ID})
}
