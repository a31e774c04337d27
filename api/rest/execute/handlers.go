package execute

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pairslate/server/internal/errors"
	"github.com/pairslate/server/internal/executor"
	"github.com/pairslate/server/internal/logger"
	store "github.com/pairslate/server/internal/sessions"
)

// creates a handler that runs a snippet on behalf of a session. Execution is
// gated on a valid session id; anything else is rejected before a process is
// spawned.
func ExecuteCodeHandler(sessionStore *store.Store, exec *executor.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExecuteCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.BadRequest(c, "code, language and sessionId are required", err)
			return
		}

		if !sessionStore.IsValidSession(req.SessionID) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		result, err := exec.Execute(c.Request.Context(), req.Code, req.Language, req.Input)
		if err != nil {
			logger.ErrorErr(err, "code execution dispatch failed",
				"session_id", req.SessionID,
				"language", req.Language,
			)

			c.JSON(http.StatusInternalServerError, gin.H{"error": "Code execution failed"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
