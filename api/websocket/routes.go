package websocket

import (
	"github.com/gin-gonic/gin"

	"github.com/pairslate/server/internal/config"
	ws "github.com/pairslate/server/internal/websocket"
)

func RegisterRoutes(router *gin.RouterGroup, hub *ws.Hub, cfg *config.Config) {
	router.GET("/ws", Handler(hub, cfg))
}
