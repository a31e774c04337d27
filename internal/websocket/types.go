package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairslate/server/internal/sessions"
)

// message type constants for the realtime channel
const (
	// binds a connection to a participant created via the HTTP join
	TypeJoinSession = "join-session"

	// is sent to a joiner with the full session snapshot
	TypeSessionState = "session-state"

	// is sent when the roster changes
	TypeSessionUpdate = "session-update"

	// is sent to other participants when someone joins
	TypeUserJoined = "user-joined"

	// is sent to other participants when someone disconnects
	TypeUserLeft = "user-left"

	// carries a document edit
	TypeDocumentOperation = "document-operation"

	// carries an ephemeral cursor/selection update (not persisted)
	TypeCursorPosition = "cursor-position"

	// carries a text selection in the shared document
	TypeTextSelected = "text-selected"

	// promotes selected text into the code panel
	TypeConvertToCode = "convert-to-code"

	// is sent to everyone after a convert-to-code
	TypeCodeConverted = "code-converted"

	// carries an edit to the code panel
	TypeCodeUpdate = "code-update"

	// replaces the test case list
	TypeTestCaseUpdate = "test-case-update"

	// carries the results of a code run
	TypeCodeExecutionResult = "code-execution-result"

	// advisory start/pause/end control event (interviewer only)
	TypeSessionControl = "session-control"

	// requests a full session export bundle
	TypeExportSession = "export-session"

	// is sent to the requester with the export bundle
	TypeExportData = "export-data"

	// refreshes the participant's last-seen time
	TypeHeartbeat = "heartbeat"

	// acknowledges a heartbeat
	TypeHeartbeatAck = "heartbeat-ack"

	// is sent by clients to keep the connection alive
	TypePing = "ping"

	// is sent by server in response to ping
	TypePong = "pong"

	// is sent when an error occurs
	TypeError = "error"

	// is sent by server before shutdown
	TypeServerShutdown = "server-shutdown"

	// is sent when the sweeper evicts a session
	TypeSessionEnded = "session-ended"
)

// client connection constants
const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512 KB

	// maximum document operations per second per connection
	maxDocumentOpsPerSecond = 20
)

// errors
var (
	ErrConnectionClosed   = errors.New("connection closed")
	ErrInvalidSession     = errors.New("connection not bound to a session")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrUnsupportedMessage = errors.New("unsupported message type")
)

// represents a realtime message with typed payload
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"-"` // internal only, not sent to clients
	UserID    string          `json:"userId,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
	Sequence  uint64          `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// binds a connection to a participant minted by the HTTP-level join
type JoinSessionPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// roster broadcast after any membership change
type SessionUpdatePayload struct {
	Users []sessions.Participant `json:"users"`
}

// announces a participant whose connection just attached
type UserJoinedPayload struct {
	User  sessions.Participant   `json:"user"`
	Users []sessions.Participant `json:"users"`
}

// announces a participant whose connection dropped
type UserLeftPayload struct {
	User  sessions.Participant   `json:"user"`
	Users []sessions.Participant `json:"users"`
}

// inbound document edit
type DocumentOperationPayload struct {
	Operation sessions.Operation `json:"operation"`
}

// outbound document edit plus the document it produced
type DocumentBroadcastPayload struct {
	Operation sessions.Operation `json:"operation"`
	Document  sessions.Document  `json:"document"`
}

// ephemeral cursor/selection presence; shapes are passed through untouched
type CursorPositionPayload struct {
	UserID    string          `json:"userId,omitempty"`
	Position  json.RawMessage `json:"position,omitempty"`
	Selection json.RawMessage `json:"selection,omitempty"`
}

// a text selection in the shared document
type TextSelectedPayload struct {
	UserID       string `json:"userId,omitempty"`
	SelectedText string `json:"selectedText"`
	StartPos     int    `json:"startPos"`
	EndPos       int    `json:"endPos"`
}

// promotes selected text into the code panel
type ConvertToCodePayload struct {
	SelectedText string `json:"selectedText"`
	Language     string `json:"language"`
}

// result of a convert-to-code, sent to everyone including the sender
type CodeConvertedPayload struct {
	CodeState   sessions.CodeState `json:"codeState"`
	ConvertedBy string             `json:"convertedBy"`
}

// contains a code panel edit
type CodeUpdatePayload struct {
	Code      string `json:"code"`
	Language  string `json:"language"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// replaces the whole ordered test case sequence
type TestCaseUpdatePayload struct {
	TestCases []sessions.TestCase `json:"testCases"`
	UpdatedBy string              `json:"updatedBy,omitempty"`
}

// results of a code run, broadcast to everyone including the sender
type CodeExecutionResultPayload struct {
	Results    []sessions.ExecutionResult `json:"results"`
	RanAt      *time.Time                 `json:"ranAt,omitempty"`
	ExecutedBy string                     `json:"executedBy,omitempty"`
}

// advisory session control event; broadcast only, no lifecycle gating
type SessionControlPayload struct {
	Action       string     `json:"action"`
	ControlledBy string     `json:"controlledBy,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// contains information about server shutdown
type ServerShutdownPayload struct {
	Reason string `json:"reason"`
}

// contains session eviction information
type SessionEndedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// error reply sent only to the originating connection
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// represents one realtime client connection
type Client struct {
	// unique identifier for this connection; doubles as the connection ID
	// recorded in the store's binding index
	ID string

	// websocket connection
	conn *websocket.Conn

	// hub reference for message routing
	hub *Hub

	// buffered channel of outbound messages
	send chan []byte

	// mutex guarding binding fields and closed flag
	mu sync.RWMutex

	// binding set once the join-session message succeeds; empty while unbound
	sessionID     string
	participantID string
	role          string

	// flag indicating if client is closed
	closed bool

	// rate limiting: document operation timestamps (sliding window)
	docOpTimestamps []time.Time
}

// routes messages between connections and dispatches them to handlers
type Hub struct {
	// every connected client by connection ID, bound or not
	clients map[string]*Client

	// bound clients by session ID and connection ID
	sessions map[string]map[string]*Client

	// register requests from new connections
	Register chan *Client

	// unregister requests from dropped connections
	Unregister chan *Client

	// inbound messages awaiting dispatch
	Inbound chan *Message

	// mutex for thread-safe access to the client maps
	mu sync.RWMutex

	// message handlers for different message types
	handlers map[string]MessageHandler

	// flag indicating if hub is running
	running bool

	// channel to signal shutdown
	shutdown chan struct{}

	// sequence numbers per session for message ordering
	sessionSequences map[string]uint64

	// callback for client disconnect (marks the participant inactive and
	// notifies the rest of the session)
	onClientDisconnect func(client *Client)
}

// processes a specific message type
type MessageHandler func(hub *Hub, client *Client, msg *Message) error
