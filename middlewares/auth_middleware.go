package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/terminplaner/terminplaner-app/utils"
)

// AuthMiddleware memvalidasi token session dan menyimpan team_id ke context.
// Token dibaca dari header Authorization atau query param (untuk websocket).
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization token missing"))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(token, "Bearer ")
		claims, err := utils.ParseToken(tokenString)
		if err != nil || claims == nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
			c.Abort()
			return
		}

		if claims.TeamID == 0 {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid team in token"))
			c.Abort()
			return
		}

		c.Set("team_id", claims.TeamID)
		c.Next()
	}
}
