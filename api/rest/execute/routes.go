package execute

import (
	"github.com/gin-gonic/gin"

	"github.com/pairslate/server/internal/executor"
	store "github.com/pairslate/server/internal/sessions"
)

func RegisterRoutes(router *gin.RouterGroup, sessionStore *store.Store, exec *executor.Executor) {
	router.POST("/execute-code", ExecuteCodeHandler(sessionStore, exec))
}
