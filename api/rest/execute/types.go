package execute

type ExecuteCodeRequest struct {
	Code      string `json:"code" binding:"required"`
	Language  string `json:"language" binding:"required"`
	Input     string `json:"input"`
	SessionID string `json:"sessionId" binding:"required"`
}
