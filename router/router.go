package router

import (
	"github.com/gin-gonic/gin"
	"github.com/terminplaner/terminplaner-app/controllers"
	"github.com/terminplaner/terminplaner-app/middlewares"
	"github.com/terminplaner/terminplaner-app/realtime"
	"github.com/terminplaner/terminplaner-app/services"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, hub *realtime.Hub, feed *services.ChangeFeed) *gin.Engine {
	r := gin.Default()

	// Middleware harus terpasang sebelum route didaftarkan,
	// gin membekukan handler chain per route saat registrasi
	rateLimiter := middlewares.NewRateLimiter(50, 1)

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(rateLimiter.RateLimit())

	// Inisialisasi controller
	teamCtrl := controllers.NewTeamController(db)
	apptCtrl := controllers.NewAppointmentController(db, feed)
	notifCtrl := controllers.NewNotificationController(db, feed)
	streamCtrl := controllers.NewStreamController(hub, feed)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter ketat untuk pembuatan team & login via channel code
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/teams", teamCtrl.CreateTeam)
		public.POST("/sessions", teamCtrl.CreateSession)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	// TEAM teardown
	auth.DELETE("/teams", teamCtrl.DeleteTeam)

	// APPOINTMENTS
	auth.GET("/appointments", apptCtrl.GetAllAppointments)
	auth.POST("/appointments", apptCtrl.CreateAppointment)
	auth.GET("/appointments/:appointment_id", apptCtrl.GetAppointmentByID)
	auth.PATCH("/appointments/:appointment_id", apptCtrl.UpdateAppointment)
	auth.DELETE("/appointments/:appointment_id", apptCtrl.DeleteAppointment)

	// NOTIFICATIONS
	auth.GET("/notifications", notifCtrl.GetAllNotifications)
	auth.POST("/notifications", notifCtrl.CreateNotification)
	auth.GET("/notifications/:notif_id", notifCtrl.GetNotificationByID)
	auth.PATCH("/notifications/:notif_id", notifCtrl.MarkNotificationRead)
	auth.DELETE("/notifications/:notif_id", notifCtrl.DeleteNotification)

	// Realtime stream (token via query param)
	auth.GET("/stream", streamCtrl.StreamHandler)

	return r
}
