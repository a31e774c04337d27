package sessions

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pairslate/server/internal/errors"
	"github.com/pairslate/server/internal/logger"
	store "github.com/pairslate/server/internal/sessions"
)

// creates a handler that allocates a fresh session. The creator joins
// separately; the request's role is only echoed back so the client can
// carry it into the join step.
func CreateSessionHandler(sessionStore *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		// body is optional; a missing or malformed one falls back to defaults
		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			req.Role = ""
		}

		if req.Role == "" {
			req.Role = store.RoleInterviewer
		}

		sessionID, err := sessionStore.CreateSession()
		if err != nil {
			errors.InternalError(c, "failed to create session", err)
			return
		}

		logger.Info("session created",
			"session_id", sessionID,
			"role", req.Role,
		)

		c.JSON(http.StatusCreated, CreateSessionResponse{
			SessionID: sessionID,
			Role:      req.Role,
		})
	}
}

// creates a handler for the HTTP-level join: mints (or reactivates) a
// participant for the requested role and returns the snapshot the client
// hydrates from before attaching its realtime connection
func JoinSessionHandler(sessionStore *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		var req JoinSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, "role is required", err)
			return
		}

		result, err := sessionStore.JoinSession(sessionID, req.Role)
		if err != nil {
			switch {
			case stderrors.Is(err, store.ErrSessionNotFound):
				errors.JoinSessionNotFound(c)
			case stderrors.Is(err, store.ErrSessionFull):
				errors.SessionFull(c)
			case stderrors.Is(err, store.ErrRoleTaken):
				errors.RoleTaken(c)
			case stderrors.Is(err, store.ErrInvalidRole):
				errors.BadRequest(c, "role must be interviewer or candidate", nil)
			default:
				errors.InternalError(c, "failed to join session", err)
			}

			return
		}

		logger.Info("participant joined session",
			"session_id", sessionID,
			"participant_id", result.ParticipantID,
			"role", result.Role,
		)

		c.JSON(http.StatusOK, JoinSessionResponse{
			SessionID:    result.SessionID,
			UserID:       result.ParticipantID,
			Role:         result.Role,
			SessionState: result.State,
		})
	}
}

// creates a handler that reports a session's roster and activity counts
func StatusHandler(sessionStore *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")

		status, err := sessionStore.Status(sessionID)
		if err != nil {
			errors.SessionNotFound(c)
			return
		}

		c.JSON(http.StatusOK, status)
	}
}

// creates a handler that reports store-wide counters
func StatsHandler(sessionStore *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sessionStore.Stats())
	}
}
