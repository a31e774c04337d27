package sessions

import (
	"github.com/gin-gonic/gin"

	store "github.com/pairslate/server/internal/sessions"
)

func RegisterRoutes(router *gin.RouterGroup, sessionStore *store.Store) {
	router.POST("/sessions", CreateSessionHandler(sessionStore))
	router.POST("/sessions/:id/join", JoinSessionHandler(sessionStore))
	router.GET("/sessions/:id/status", StatusHandler(sessionStore))
	router.GET("/sessions/stats", StatsHandler(sessionStore))
}
