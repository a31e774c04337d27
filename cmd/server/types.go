package main

import (
	"github.com/gin-gonic/gin"

	"github.com/pairslate/server/internal/config"
	"github.com/pairslate/server/internal/executor"
	"github.com/pairslate/server/internal/sessions"
	ws "github.com/pairslate/server/internal/websocket"
)

// holds all dependencies and state for the API server
type Server struct {
	config   *config.Config
	store    *sessions.Store
	hub      *ws.Hub
	executor *executor.Executor
	sweeper  *sessions.Sweeper
	router   *gin.Engine
}
