package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/terminplaner/terminplaner-app/config"
	"github.com/terminplaner/terminplaner-app/models"
	"github.com/terminplaner/terminplaner-app/realtime"
	"github.com/terminplaner/terminplaner-app/router"
	"github.com/terminplaner/terminplaner-app/services"
	"github.com/terminplaner/terminplaner-app/utils"
	"gorm.io/gorm"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	utils.InitDB(db)

	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	// Hub + change feed: fan-out perubahan yang sudah commit ke subscriber
	hub := realtime.NewHub()
	feed := services.NewChangeFeed(db, hub)
	feed.Interval = 500 * time.Millisecond
	feed.Start()
	defer feed.Stop()

	r := router.SetupRouter(db, hub, feed)

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Team{},
		&models.Appointment{},
		&models.Notification{},
		&models.ChangeLog{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
