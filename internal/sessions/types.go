package sessions

import "time"

// participant roles; a session has at most one active participant per role
const (
	RoleInterviewer = "interviewer"
	RoleCandidate   = "candidate"
)

// maximum number of active participants in a session
const maxActiveParticipants = 2

// test case status values
const (
	TestStatusPending = "pending"
	TestStatusPassed  = "passed"
	TestStatusFailed  = "failed"
	TestStatusError   = "error"
)

// a single edit applied to the shared document.
// Kind "insert" with a Content payload replaces the full document text
// (last-writer-wins sync, not positional patching). Content is a pointer so
// an explicit empty string (clearing the editor) still counts as a payload.
type Operation struct {
	Kind          string    `json:"kind"`
	Content       *string   `json:"content,omitempty"`
	ParticipantID string    `json:"participantId,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitzero"`
}

// the shared text document. Version increments exactly once per accepted
// operation; Operations is the append-only log of everything applied.
type Document struct {
	Content    string      `json:"content"`
	Version    int         `json:"version"`
	Operations []Operation `json:"operations"`
}

// a half-open character range in the document
type SelectionRange struct {
	StartPos int `json:"startPos"`
	EndPos   int `json:"endPos"`
}

// one test case attached to the session's code panel
type TestCase struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput,omitempty"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	ExecutionTime  int64  `json:"executionTime,omitempty"` // milliseconds
}

// outcome of running one test case (or a free-form run)
type ExecutionResult struct {
	TestCaseID    string `json:"testCaseId,omitempty"`
	Status        string `json:"status"`
	Output        string `json:"output,omitempty"`
	Error         string `json:"error,omitempty"`
	ExecutionTime int64  `json:"executionTime,omitempty"` // milliseconds
}

// the session's code panel state
type CodeState struct {
	SelectedText     string            `json:"selectedText"`
	SelectionRange   *SelectionRange   `json:"selectionRange,omitempty"`
	Language         string            `json:"language"`
	Code             string            `json:"code"`
	TestCases        []TestCase        `json:"testCases"`
	ExecutionResults []ExecutionResult `json:"executionResults,omitempty"`
	LastExecutedAt   *time.Time        `json:"lastExecutedAt,omitempty"`
	LastModifiedBy   string            `json:"lastModifiedBy,omitempty"`
}

// a partial update to CodeState. Nil fields are left untouched; non-nil
// fields replace the target wholesale (replacing TestCases replaces the
// entire ordered sequence, there is no element-wise merge).
type CodeStatePatch struct {
	SelectedText     *string
	SelectionRange   *SelectionRange
	Language         *string
	Code             *string
	TestCases        []TestCase
	ExecutionResults []ExecutionResult
	LastExecutedAt   *time.Time
	LastModifiedBy   *string
}

// one human's role-bound presence in a session. The ID is stable across
// reconnects within the grace window; ConnectionID is a weak reference to
// the current transport connection and never implies ownership.
type Participant struct {
	ID           string     `json:"id"`
	Role         string     `json:"role"`
	Active       bool       `json:"active"`
	JoinedAt     time.Time  `json:"joinedAt"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	ConnectionID string     `json:"-"`
}

// one interview's shared state and its two participant slots.
// Owned exclusively by the Store; mutated only through its methods.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	Document     Document
	CodeState    CodeState
	Participants map[string]*Participant

	// set when every participant has disconnected; fast-tracks sweeping
	Inactive bool
}

// a point-in-time copy of session state for client hydration and broadcast
type Snapshot struct {
	Document  Document      `json:"document"`
	CodeState CodeState     `json:"codeState"`
	Users     []Participant `json:"users"`
}

// returned by JoinSession on success
type JoinResult struct {
	SessionID     string
	ParticipantID string
	Role          string
	State         Snapshot
}

// returned by Bind on success, computed in the same critical section
// as the binding itself
type BindResult struct {
	Participant Participant
	State       Snapshot
}

// returned by Disconnect when the connection was bound to a participant
type DisconnectResult struct {
	SessionID   string
	Participant Participant
	Users       []Participant
}

// read-only roster view for the status endpoint
type Status struct {
	SessionID       string        `json:"sessionId"`
	UserCount       int           `json:"userCount"`
	ActiveUserCount int           `json:"activeUserCount"`
	Users           []Participant `json:"users"`
}

// a full session export bundle
type Export struct {
	SessionID  string               `json:"sessionId"`
	CreatedAt  time.Time            `json:"createdAt"`
	ExportedAt time.Time            `json:"exportedAt"`
	Document   Document             `json:"document"`
	CodeState  CodeState            `json:"codeState"`
	Users      []ParticipantSummary `json:"users"`
}

// participant identity reduced to what an export needs
type ParticipantSummary struct {
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// store-wide counters for the debug stats endpoint
type Stats struct {
	TotalSessions    int `json:"totalSessions"`
	ActiveSessions   int `json:"activeSessions"`
	TotalConnections int `json:"totalConnections"`
}

// binding records which (session, participant) a live transport connection
// belongs to. It is a weak, non-owning index: removed on disconnect, never
// used to infer participant liveness beyond "currently connected".
type binding struct {
	sessionID     string
	participantID string
}
