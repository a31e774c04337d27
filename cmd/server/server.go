package main

import (
	"github.com/gin-gonic/gin"

	"github.com/pairslate/server/internal/config"
	"github.com/pairslate/server/internal/executor"
	"github.com/pairslate/server/internal/sessions"
	ws "github.com/pairslate/server/internal/websocket"
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	store := sessions.New(cfg.GraceWindow)
	exec := executor.New(cfg.ExecutionTimeout, cfg.MaxOutputSize)

	hub := ws.NewHub()

	// register websocket message handlers
	hub.RegisterHandler(ws.TypeJoinSession, ws.JoinSessionHandler(store))
	hub.RegisterHandler(ws.TypeDocumentOperation, ws.DocumentOperationHandler(store))
	hub.RegisterHandler(ws.TypeCursorPosition, ws.CursorPositionHandler())
	hub.RegisterHandler(ws.TypeTextSelected, ws.TextSelectedHandler(store))
	hub.RegisterHandler(ws.TypeConvertToCode, ws.ConvertToCodeHandler(store))
	hub.RegisterHandler(ws.TypeCodeUpdate, ws.CodeUpdateHandler(store))
	hub.RegisterHandler(ws.TypeTestCaseUpdate, ws.TestCaseUpdateHandler(store))
	hub.RegisterHandler(ws.TypeCodeExecutionResult, ws.CodeExecutionResultHandler(store))
	hub.RegisterHandler(ws.TypeSessionControl, ws.SessionControlHandler())
	hub.RegisterHandler(ws.TypeExportSession, ws.ExportSessionHandler(store))
	hub.RegisterHandler(ws.TypeHeartbeat, ws.HeartbeatHandler(store))
	hub.RegisterHandler(ws.TypePing, ws.PingHandler())

	// mark the participant inactive and tell the rest of the session when a
	// connection drops
	hub.OnClientDisconnect(ws.DisconnectNotifier(store, hub))

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	sweeper := sessions.NewSweeper(store, cfg.SweepInterval, cfg.SessionTimeout,
		func(sessionID string, reason string) {
			// notify connected clients before their session disappears
			hub.EndSession(sessionID, reason)
		},
	)

	server := &Server{
		config:   cfg,
		store:    store,
		hub:      hub,
		executor: exec,
		sweeper:  sweeper,
		router:   router,
	}

	RegisterRoutes(router, server)

	return server, nil
}
