package websocket

import (
	"time"

	"github.com/pairslate/server/internal/logger"
)

func NewHub() *Hub {
	return &Hub{
		clients:          make(map[string]*Client),
		sessions:         make(map[string]map[string]*Client),
		Register:         make(chan *Client),
		Unregister:       make(chan *Client),
		Inbound:          make(chan *Message, 256),
		handlers:         make(map[string]MessageHandler),
		running:          false,
		shutdown:         make(chan struct{}),
		sessionSequences: make(map[string]uint64),
	}
}

// registers a handler for a specific message type
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[messageType] = handler
}

// sets callback to be called when a client disconnects
func (h *Hub) OnClientDisconnect(callback func(client *Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClientDisconnect = callback
}

// starts the hub's main loop
func (h *Hub) Run() {
	h.running = true
	defer func() {
		h.running = false
	}()

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case message := <-h.Inbound:
			h.handleMessage(message)

		case <-h.shutdown:
			h.closeAllConnections()
			return
		}
	}
}

// adds a newly upgraded connection to the hub. The connection is unbound
// until its join-session message succeeds, so it joins no session map yet.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	logger.Info("client connected", "client_id", client.ID)
}

// removes a connection from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	// capture callback reference under lock
	callback := h.onClientDisconnect

	if _, exists := h.clients[client.ID]; !exists {
		h.mu.Unlock()
		return
	}

	delete(h.clients, client.ID)

	sessionID := client.SessionID()
	if sessionID != "" {
		if sessionClients, exists := h.sessions[sessionID]; exists {
			delete(sessionClients, client.ID)

			if len(sessionClients) == 0 {
				delete(h.sessions, sessionID)
				delete(h.sessionSequences, sessionID)
			}
		}
	}

	client.Close()

	logger.Info("client disconnected",
		"client_id", client.ID,
		"session_id", sessionID,
	)

	h.mu.Unlock()

	// callback outside lock: it marks the participant inactive in the store
	// and broadcasts the updated roster to the rest of the session
	if callback != nil {
		callback(client)
	}
}

// places a bound client into its session's routing map
func (h *Hub) BindClient(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]*Client)
	}

	h.sessions[sessionID][client.ID] = client
}

// dispatches an inbound message to its registered handler. Handlers run
// synchronously so messages from one connection are processed in receipt
// order; every handler is a small in-memory mutation plus fan-out, so this
// never stalls the loop.
func (h *Hub) handleMessage(msg *Message) {
	h.mu.RLock()
	sender, exists := h.clients[msg.ClientID]
	h.mu.RUnlock()

	if !exists {
		logger.Warn("sender client not found for message",
			"client_id", msg.ClientID,
			"message_type", msg.Type,
		)
		return
	}

	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !exists {
		logger.Warn("unhandled message type received",
			"message_type", msg.Type,
			"client_id", sender.ID,
		)

		sender.SendError("bad_request", "unsupported message type", "message type not recognized")
		return
	}

	if err := handler(h, sender, msg); err != nil {
		logger.ErrorErr(err, "handler error",
			"message_type", msg.Type,
			"client_id", sender.ID,
			"session_id", msg.SessionID,
		)
	}
}

// sends a message to all bound clients in a session
func (h *Hub) BroadcastToSession(sessionID string, msg *Message, excludeClientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastToSession(sessionID, msg, excludeClientID)
}

// the internal broadcast function (must be called with lock held)
func (h *Hub) broadcastToSession(sessionID string, msg *Message, excludeClientID string) {
	sessionClients, exists := h.sessions[sessionID]
	if !exists {
		return
	}

	// assign sequence number to message
	h.sessionSequences[sessionID]++
	msg.Sequence = h.sessionSequences[sessionID]

	for clientID, client := range sessionClients {
		if clientID == excludeClientID {
			continue
		}

		if err := client.Send(msg); err != nil {
			logger.ErrorErr(err, "failed to send message to client",
				"client_id", clientID,
				"session_id", sessionID,
			)
		}
	}
}

// returns all bound clients in a session
func (h *Hub) GetSessionClients(sessionID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessionClients, exists := h.sessions[sessionID]
	if !exists {
		return []*Client{}
	}

	clients := make([]*Client, 0, len(sessionClients))

	for _, client := range sessionClients {
		clients = append(clients, client)
	}

	return clients
}

// returns the number of bound clients in a session
func (h *Hub) GetClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessionClients, exists := h.sessions[sessionID]
	if !exists {
		return 0
	}

	return len(sessionClients)
}

// checks if a session has any live connections
func (h *Hub) IsSessionActive(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sessionClients, exists := h.sessions[sessionID]
	return exists && len(sessionClients) > 0
}

func (h *Hub) Shutdown() {
	if h.running {
		close(h.shutdown)
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()

	logger.Info("notifying clients of server shutdown")

	for sessionID := range h.sessions {
		shutdownMsg, err := NewMessage(TypeServerShutdown, sessionID, "", ServerShutdownPayload{
			Reason: "server is shutting down for maintenance",
		})
		if err != nil {
			logger.ErrorErr(err, "failed to create shutdown message")
			continue
		}

		h.broadcastToSession(sessionID, shutdownMsg, "")
	}

	h.mu.Unlock()

	// give clients time to receive the shutdown message
	time.Sleep(500 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("closing all websocket connections")

	for clientID, client := range h.clients {
		client.Close()
		logger.Debug("closed client", "client_id", clientID)
	}

	h.clients = make(map[string]*Client)
	h.sessions = make(map[string]map[string]*Client)
	h.sessionSequences = make(map[string]uint64)
}

// broadcasts session-ended to all clients in a session and closes their
// connections; called by the sweeper after eviction
func (h *Hub) EndSession(sessionID string, reason string) {
	h.mu.Lock()

	sessionClients, exists := h.sessions[sessionID]
	if !exists {
		h.mu.Unlock()
		return
	}

	logger.Info("ending session, notifying clients",
		"session_id", sessionID,
		"client_count", len(sessionClients),
	)

	sessionEndedMsg, err := NewMessage(TypeSessionEnded, sessionID, "", SessionEndedPayload{
		Reason: reason,
	})
	if err != nil {
		logger.ErrorErr(err, "failed to create session-ended message",
			"session_id", sessionID,
		)
		h.mu.Unlock()
		return
	}

	h.broadcastToSession(sessionID, sessionEndedMsg, "")

	h.mu.Unlock()

	// give clients time to receive the message
	time.Sleep(100 * time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, exists = h.sessions[sessionID]
	if !exists {
		return
	}

	for clientID, client := range sessionClients {
		delete(h.clients, clientID)
		client.Close()

		logger.Debug("closed client due to session end",
			"client_id", clientID,
			"session_id", sessionID,
		)
	}

	delete(h.sessions, sessionID)
	delete(h.sessionSequences, sessionID)

	logger.Info("session ended and removed", "session_id", sessionID)
}
