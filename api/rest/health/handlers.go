package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// returns the server health status
func Handler(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Status:    "OK",
		Service:   "pairslate",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// responds with pong for testing
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{
		Message: "pong",
	})
}
