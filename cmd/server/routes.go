package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/pairslate/server/api/rest/execute"
	"github.com/pairslate/server/api/rest/health"
	"github.com/pairslate/server/api/rest/sessions"
	"github.com/pairslate/server/api/websocket"
)

// per-IP request budget for the REST surface
var apiRate = limiter.Rate{
	Period: 15 * time.Minute,
	Limit:  100,
}

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(corsMiddleware(server))
	router.GET("/health", health.Handler)

	rateLimiter := mgin.NewMiddleware(limiter.New(memory.NewStore(), apiRate))

	v1 := router.Group("/api/v1")
	v1.Use(rateLimiter)

	{
		v1.GET("/ping", health.PingHandler)

		sessions.RegisterRoutes(v1, server.store)
		execute.RegisterRoutes(v1, server.store, server.executor)
		websocket.RegisterRoutes(v1, server.hub, server.config)
	}
}

func corsMiddleware(server *Server) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if server.config.Environment == "production" && len(server.config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = server.config.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	return cors.New(corsConfig)
}
