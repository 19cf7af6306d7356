package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/terminplaner/terminplaner-app/utils"
	"gorm.io/gorm"
)

// ErrNotFound dipakai untuk row yang tidak ada ATAU milik team lain.
// Keduanya sengaja tidak dibedakan keluar.
var ErrNotFound = errors.New("record not found")

var ErrUnavailable = errors.New("storage unavailable, please retry")

const maxTxAttempts = 3

// teamIDFrom membaca team dari context yang diisi AuthMiddleware.
// Handler tidak pernah menerima team_id dari input client.
func teamIDFrom(c *gin.Context) (uint, bool) {
	v, exists := c.Get("team_id")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("team not found in context"))
		return 0, false
	}

	teamID, ok := v.(uint)
	if !ok || teamID == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid team in context"))
		return 0, false
	}

	return teamID, true
}

// runTx menjalankan satu mutasi dengan retry terbatas untuk error
// storage transien sebelum menyerah. fn harus aman diulang dari awal.
func runTx(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = db.Transaction(fn)
		if err == nil || !isTransientError(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

// respondStorageError memetakan error storage: transien -> 503 dengan
// Retry-After, sisanya -> 500.
func respondStorageError(c *gin.Context, err error) {
	if isTransientError(err) {
		c.Header("Retry-After", "5")
		utils.RespondError(c, http.StatusServiceUnavailable, ErrUnavailable)
		return
	}
	utils.RespondError(c, http.StatusInternalServerError, err)
}

// isTransientError mengenali kegagalan sementara dari sqlite (lock)
// dan mysql (koneksi putus) yang pantas di-retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "invalid connection") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}
