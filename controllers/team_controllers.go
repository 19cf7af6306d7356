package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/terminplaner/terminplaner-app/models"
	"github.com/terminplaner/terminplaner-app/utils"
	"gorm.io/gorm"
)

const maxCodeAttempts = 5

type TeamController struct {
	DB *gorm.DB
}

func NewTeamController(db *gorm.DB) *TeamController {
	return &TeamController{DB: db}
}

// CreateTeam -> membuat team baru dengan channel code yang digenerate.
// Tabrakan code ditangkap oleh unique index dan di-retry dengan code baru.
func (tc *TeamController) CreateTeam(c *gin.Context) {
	var team models.Team

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := utils.GenerateChannelCode()
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}

		team = models.Team{ChannelCode: code}
		err = tc.DB.Create(&team).Error
		if err == nil {
			utils.InfoLogger.Printf("New team created: id=%d", team.ID)
			utils.RespondJSON(c, http.StatusCreated, "Team created", gin.H{
				"id":           team.ID,
				"channel_code": team.ChannelCode,
				"created_at":   team.CreatedAt,
			})
			return
		}

		if !isDuplicateKey(err) {
			c.Header("Retry-After", "5")
			utils.RespondError(c, http.StatusServiceUnavailable, ErrUnavailable)
			return
		}
		// duplicate code, generate ulang
	}

	c.Header("Retry-After", "5")
	utils.RespondError(c, http.StatusServiceUnavailable, ErrUnavailable)
}

// CreateSession -> tukar channel code dengan token session.
// Code adalah satu-satunya kredensial; lookup exact-match, case-sensitive.
func (tc *TeamController) CreateSession(c *gin.Context) {
	var input struct {
		ChannelCode string `json:"channel_code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var team models.Team
	if err := tc.DB.Where("channel_code = ?", input.ChannelCode).First(&team).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid channel code"))
		return
	}

	token, err := utils.GenerateToken(team.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Session opened for team %d", team.ID)
	utils.RespondJSON(c, http.StatusOK, "Session created", gin.H{
		"token":   token,
		"team_id": team.ID,
	})
}

// DeleteTeam -> teardown tenant. Appointment dan notification milik team
// ikut terhapus lewat cascade.
func (tc *TeamController) DeleteTeam(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", teamID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&models.Appointment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Team{}, teamID).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Team %d deleted", teamID)
	utils.RespondJSON(c, http.StatusOK, "Team deleted", gin.H{"id": teamID})
}

// isDuplicateKey mengenali pelanggaran unique constraint, baik lewat
// terjemahan gorm maupun pesan driver mysql/sqlite.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
