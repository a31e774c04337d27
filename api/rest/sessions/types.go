package sessions

import store "github.com/pairslate/server/internal/sessions"

type CreateSessionRequest struct {
	Role string `json:"role"`
}

// returned after a session is allocated; no participant is bound yet,
// the echoed role is the one the creator intends to join with
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
}

type JoinSessionRequest struct {
	Role string `json:"role" binding:"required"`
}

// returned after an HTTP-level join; the realtime connection binds to
// UserID via the join-session message afterwards
type JoinSessionResponse struct {
	SessionID    string         `json:"sessionId"`
	UserID       string         `json:"userId"`
	Role         string         `json:"role"`
	SessionState store.Snapshot `json:"sessionState"`
}
