package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// Store owns every live session and the connection-binding index.
// All mutation goes through its methods; each method takes the lock once, so
// a mutation and the snapshot broadcast for it can never observe a
// half-updated session.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	connections map[string]binding
	graceWindow time.Duration
}

// returns a new empty store. graceWindow is how long an inactive
// participant keeps its role slot before a join may reap it.
func New(graceWindow time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		connections: make(map[string]binding),
		graceWindow: graceWindow,
	}
}

// returns a new random ID (32 hex chars)
func GenerateID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// allocates a fresh session with an empty document and code state.
// No participant is bound yet; that happens on join.
func (s *Store) CreateSession() (string, error) {
	id, err := GenerateID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Document: Document{
			Content:    "",
			Version:    0,
			Operations: []Operation{},
		},
		CodeState: CodeState{
			Language:  "javascript",
			TestCases: []TestCase{},
		},
		Participants: make(map[string]*Participant),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return id, nil
}

// reports whether a session with this ID exists
func (s *Store) IsValidSession(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.sessions[sessionID]
	return exists
}

// returns a point-in-time copy of the session's state
func (s *Store) Snapshot(sessionID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return Snapshot{}, ErrSessionNotFound
	}

	return snapshotLocked(session), nil
}

// adds a participant to a session, or reactivates one that disconnected
// within the grace window. Implements the full join protocol: reap stale
// inactive participants, enforce the two-slot capacity, reactivate a
// same-role inactive participant (preserving its ID), reject an active
// role collision, otherwise mint a fresh participant.
func (s *Store) JoinSession(sessionID, role string) (JoinResult, error) {
	if role != RoleInterviewer && role != RoleCandidate {
		return JoinResult{}, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return JoinResult{}, ErrSessionNotFound
	}

	now := time.Now()

	// reap inactive participants whose grace window has expired; they free
	// their role slot and their old ID becomes unreachable
	cutoff := now.Add(-s.graceWindow)
	for id, p := range session.Participants {
		if !p.Active && p.LastSeen != nil && p.LastSeen.Before(cutoff) {
			delete(session.Participants, id)
		}
	}

	active := 0
	for _, p := range session.Participants {
		if p.Active {
			active++
		}
	}
	if active >= maxActiveParticipants {
		return JoinResult{}, ErrSessionFull
	}

	var participant *Participant

	// a disconnect-reconnect cycle resumes identity: an inactive holder of
	// the requested role is reactivated rather than replaced
	for _, p := range session.Participants {
		if p.Role == role && !p.Active {
			participant = p
			break
		}
	}

	if participant != nil {
		participant.Active = true
		participant.LastSeen = &now
	} else {
		for _, p := range session.Participants {
			if p.Role == role && p.Active {
				return JoinResult{}, ErrRoleTaken
			}
		}

		id, err := GenerateID()
		if err != nil {
			return JoinResult{}, err
		}

		participant = &Participant{
			ID:       id,
			Role:     role,
			Active:   true,
			JoinedAt: now,
		}
		session.Participants[id] = participant
	}

	session.LastActivity = now

	return JoinResult{
		SessionID:     sessionID,
		ParticipantID: participant.ID,
		Role:          participant.Role,
		State:         snapshotLocked(session),
	}, nil
}

// associates a live transport connection with a participant. This is a
// distinct step from JoinSession: a participant can exist (HTTP-level join)
// before its realtime connection attaches. The returned snapshot is taken
// under the same lock as the binding.
func (s *Store) Bind(sessionID, participantID, connectionID string) (BindResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return BindResult{}, ErrSessionNotFound
	}

	participant, exists := session.Participants[participantID]
	if !exists {
		return BindResult{}, ErrParticipantNotFound
	}

	participant.ConnectionID = connectionID
	participant.Active = true
	session.LastActivity = time.Now()

	s.connections[connectionID] = binding{
		sessionID:     sessionID,
		participantID: participantID,
	}

	return BindResult{
		Participant: *participant,
		State:       snapshotLocked(session),
	}, nil
}

// handles a transport-level disconnect: marks the bound participant
// inactive, stamps its last-seen time, and removes the connection binding.
// If every participant in the session is now inactive the session itself is
// flagged inactive, fast-tracking it for the sweeper. Returns false when the
// connection was never bound.
func (s *Store) Disconnect(connectionID string) (DisconnectResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.connections[connectionID]
	if !exists {
		return DisconnectResult{}, false
	}

	delete(s.connections, connectionID)

	session, exists := s.sessions[b.sessionID]
	if !exists {
		return DisconnectResult{}, false
	}

	participant, exists := session.Participants[b.participantID]
	if !exists {
		return DisconnectResult{}, false
	}

	now := time.Now()
	participant.Active = false
	participant.LastSeen = &now
	participant.ConnectionID = ""

	allInactive := true
	for _, p := range session.Participants {
		if p.Active {
			allInactive = false
			break
		}
	}
	if allInactive {
		session.Inactive = true
	}

	return DisconnectResult{
		SessionID:   b.sessionID,
		Participant: *participant,
		Users:       rosterLocked(session),
	}, true
}

// resolves the (session, participant) bound to a connection
func (s *Store) LookupConnection(connectionID string) (sessionID, participantID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.connections[connectionID]
	if !exists {
		return "", "", false
	}

	return b.sessionID, b.participantID, true
}

// refreshes the last-seen time of the participant bound to a connection
// (heartbeat). Returns false when the connection is unbound.
func (s *Store) TouchConnection(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.connections[connectionID]
	if !exists {
		return false
	}

	session, exists := s.sessions[b.sessionID]
	if !exists {
		return false
	}

	participant, exists := session.Participants[b.participantID]
	if !exists {
		return false
	}

	now := time.Now()
	participant.LastSeen = &now

	return true
}

// appends an operation to the document log and increments the version.
// Only an "insert" operation carrying content replaces the document text:
// full-content overwrite, by arrival order. Returns a copy of the resulting
// document for broadcast.
func (s *Store) UpdateDocument(sessionID string, op Operation) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return Document{}, ErrSessionNotFound
	}

	if op.Kind == "insert" && op.Content != nil {
		session.Document.Content = *op.Content
	}

	session.Document.Operations = append(session.Document.Operations, op)
	session.Document.Version++
	session.LastActivity = time.Now()

	return cloneDocument(session.Document), nil
}

// shallow-merges a patch into the session's code state. Fields absent from
// the patch are unchanged; fields present replace their target wholesale.
// Returns a copy of the resulting code state for broadcast.
func (s *Store) UpdateCodeState(sessionID string, patch CodeStatePatch) (CodeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return CodeState{}, ErrSessionNotFound
	}

	cs := &session.CodeState

	if patch.SelectedText != nil {
		cs.SelectedText = *patch.SelectedText
	}
	if patch.SelectionRange != nil {
		r := *patch.SelectionRange
		cs.SelectionRange = &r
	}
	if patch.Language != nil {
		cs.Language = *patch.Language
	}
	if patch.Code != nil {
		cs.Code = *patch.Code
	}
	if patch.TestCases != nil {
		cs.TestCases = append([]TestCase(nil), patch.TestCases...)
	}
	if patch.ExecutionResults != nil {
		cs.ExecutionResults = append([]ExecutionResult(nil), patch.ExecutionResults...)
	}
	if patch.LastExecutedAt != nil {
		t := *patch.LastExecutedAt
		cs.LastExecutedAt = &t
	}
	if patch.LastModifiedBy != nil {
		cs.LastModifiedBy = *patch.LastModifiedBy
	}

	session.LastActivity = time.Now()

	return cloneCodeState(*cs), nil
}

// returns the roster view for the status endpoint
func (s *Store) Status(sessionID string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return Status{}, ErrSessionNotFound
	}

	users := rosterLocked(session)

	active := 0
	for _, u := range users {
		if u.Active {
			active++
		}
	}

	return Status{
		SessionID:       sessionID,
		UserCount:       len(users),
		ActiveUserCount: active,
		Users:           users,
	}, nil
}

// builds a full export bundle of the session
func (s *Store) Export(sessionID string) (Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return Export{}, ErrSessionNotFound
	}

	users := make([]ParticipantSummary, 0, len(session.Participants))
	for _, p := range rosterLocked(session) {
		users = append(users, ParticipantSummary{
			Role:     p.Role,
			JoinedAt: p.JoinedAt,
		})
	}

	return Export{
		SessionID:  sessionID,
		CreatedAt:  session.CreatedAt,
		ExportedAt: time.Now(),
		Document:   cloneDocument(session.Document),
		CodeState:  cloneCodeState(session.CodeState),
		Users:      users,
	}, nil
}

// returns store-wide counters
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, session := range s.sessions {
		if !session.Inactive {
			active++
		}
	}

	return Stats{
		TotalSessions:    len(s.sessions),
		ActiveSessions:   active,
		TotalConnections: len(s.connections),
	}
}

// removes sessions idle longer than timeout or flagged inactive, along with
// every connection binding referencing them. Returns the evicted session IDs
// so the caller can notify any clients still attached.
func (s *Store) Sweep(timeout time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var evicted []string

	for id, session := range s.sessions {
		if session.Inactive || now.Sub(session.LastActivity) > timeout {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}

	if len(evicted) > 0 {
		for connID, b := range s.connections {
			for _, id := range evicted {
				if b.sessionID == id {
					delete(s.connections, connID)
					break
				}
			}
		}
	}

	return evicted
}

// builds a snapshot; caller must hold the lock (read or write)
func snapshotLocked(session *Session) Snapshot {
	return Snapshot{
		Document:  cloneDocument(session.Document),
		CodeState: cloneCodeState(session.CodeState),
		Users:     rosterLocked(session),
	}
}

// copies the roster sorted by join time; caller must hold the lock
func rosterLocked(session *Session) []Participant {
	users := make([]Participant, 0, len(session.Participants))
	for _, p := range session.Participants {
		users = append(users, *p)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].JoinedAt.Before(users[j].JoinedAt)
	})

	return users
}

func cloneDocument(doc Document) Document {
	out := doc
	out.Operations = append([]Operation(nil), doc.Operations...)
	return out
}

func cloneCodeState(cs CodeState) CodeState {
	out := cs
	out.TestCases = append([]TestCase(nil), cs.TestCases...)
	out.ExecutionResults = append([]ExecutionResult(nil), cs.ExecutionResults...)
	if cs.SelectionRange != nil {
		r := *cs.SelectionRange
		out.SelectionRange = &r
	}
	if cs.LastExecutedAt != nil {
		t := *cs.LastExecutedAt
		out.LastExecutedAt = &t
	}
	return out
}
