package controllers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/terminplaner/terminplaner-app/realtime"
	"github.com/terminplaner/terminplaner-app/services"
	"github.com/terminplaner/terminplaner-app/utils"
)

// Origin frontend yang sama dengan CORS middleware
const allowedStreamOrigin = "http://127.0.0.1:5500"

// Token session ikut di query string, jadi origin browser harus dibatasi.
// Request tanpa header Origin (client non-browser) tetap lolos.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if origin == allowedStreamOrigin {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

type StreamController struct {
	Hub  *realtime.Hub
	Feed *services.ChangeFeed
}

func NewStreamController(hub *realtime.Hub, feed *services.ChangeFeed) *StreamController {
	return &StreamController{Hub: hub, Feed: feed}
}

// StreamHandler -> endpoint websocket /stream. Team diambil dari token
// session, bukan dari client. ?since=<seq> me-replay change log lama
// sebelum event live; duplikat mungkin, client apply idempotent.
func (sc *StreamController) StreamHandler(c *gin.Context) {
	teamID, ok := teamIDFrom(c)
	if !ok {
		return
	}

	var since uint64
	if raw := c.Query("since"); raw != "" {
		val, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		since = val
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sub := sc.Hub.Subscribe(teamID, ws)
	utils.InfoLogger.Printf("Stream subscribed: team %d", teamID)

	if c.Query("since") != "" {
		events, err := sc.Feed.Replay(teamID, since)
		if err != nil {
			utils.ErrorLogger.Printf("Error replaying changes for team %d: %v", teamID, err)
		} else {
			for _, ev := range events {
				sub.Enqueue(ev)
			}
		}
	}

	// Baca sampai client putus
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	sc.Hub.Unsubscribe(sub)
	utils.InfoLogger.Printf("Stream closed: team %d", teamID)
}
