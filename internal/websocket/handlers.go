package websocket

import (
	"errors"
	"time"

	"github.com/pairslate/server/internal/logger"
	"github.com/pairslate/server/internal/sessions"
)

// rejects session-scoped messages from a connection that has not completed
// a join-session; the sender gets an error reply and nothing else happens
func requireBound(client *Client) error {
	if client.IsBound() {
		return nil
	}

	client.SendError("invalid_session", "Invalid session", "connection is not bound to a session")
	return ErrInvalidSession
}

// handles join-session messages: binds the connection to a participant
// minted by the HTTP-level join, hydrates the joiner, and announces the
// updated roster
func JoinSessionHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		var payload JoinSessionPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse join request", err.Error())
			return err
		}

		if payload.SessionID == "" || payload.UserID == "" {
			client.SendError("bad_request", "Invalid session data", "")
			return ErrInvalidSession
		}

		result, err := store.Bind(payload.SessionID, payload.UserID, client.ID)
		if err != nil {
			switch {
			case errors.Is(err, sessions.ErrSessionNotFound):
				client.SendError("session_not_found", "Session not found", "")
			case errors.Is(err, sessions.ErrParticipantNotFound):
				client.SendError("participant_not_found", "User not found in session", "")
			default:
				client.SendError("server_error", "failed to join session", err.Error())
			}

			return err
		}

		client.SetBinding(payload.SessionID, payload.UserID, result.Participant.Role)
		hub.BindClient(client, payload.SessionID)

		logger.Info("participant bound to connection",
			"client_id", client.ID,
			"session_id", payload.SessionID,
			"participant_id", payload.UserID,
			"role", result.Participant.Role,
		)

		// send the full snapshot to the joiner
		stateMsg, err := NewMessage(TypeSessionState, payload.SessionID, payload.UserID, result.State)
		if err != nil {
			return err
		}
		if sendErr := client.Send(stateMsg); sendErr != nil {
			logger.ErrorErr(sendErr, "failed to send session state",
				"client_id", client.ID,
				"session_id", payload.SessionID,
			)
		}

		// announce the joiner to everyone else
		joinedMsg, err := NewMessage(TypeUserJoined, payload.SessionID, payload.UserID, UserJoinedPayload{
			User:  result.Participant,
			Users: result.State.Users,
		})
		if err == nil {
			hub.BroadcastToSession(payload.SessionID, joinedMsg, client.ID)
		}

		// roster broadcast to everyone, joiner included
		updateMsg, err := NewMessage(TypeSessionUpdate, payload.SessionID, payload.UserID, SessionUpdatePayload{
			Users: result.State.Users,
		})
		if err == nil {
			hub.BroadcastToSession(payload.SessionID, updateMsg, "")
		}

		return nil
	}
}

// handles document edits: appends to the operation log and broadcasts the
// operation plus the document it produced to the other participant
func DocumentOperationHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		if !client.checkDocOpRateLimit() {
			client.SendError("too_many_requests", "too many document operations", "")
			return ErrRateLimitExceeded
		}

		var payload DocumentOperationPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse document operation", err.Error())
			return err
		}

		op := payload.Operation
		op.ParticipantID = client.ParticipantID()
		op.Timestamp = msg.Timestamp

		document, err := store.UpdateDocument(client.SessionID(), op)
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		broadcastMsg, err := NewMessage(TypeDocumentOperation, client.SessionID(), client.ParticipantID(), DocumentBroadcastPayload{
			Operation: op,
			Document:  document,
		})
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, client.ID)
		return nil
	}
}

// handles cursor presence updates; ephemeral, nothing is persisted
func CursorPositionHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		var payload CursorPositionPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse cursor position", err.Error())
			return err
		}

		payload.UserID = client.ParticipantID()

		broadcastMsg, err := NewMessage(TypeCursorPosition, client.SessionID(), client.ParticipantID(), payload)
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, client.ID)
		return nil
	}
}

// handles text selections in the shared document
func TextSelectedHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		var payload TextSelectedPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse text selection", err.Error())
			return err
		}

		_, err := store.UpdateCodeState(client.SessionID(), sessions.CodeStatePatch{
			SelectedText: &payload.SelectedText,
			SelectionRange: &sessions.SelectionRange{
				StartPos: payload.StartPos,
				EndPos:   payload.EndPos,
			},
		})
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		payload.UserID = client.ParticipantID()

		broadcastMsg, err := NewMessage(TypeTextSelected, client.SessionID(), client.ParticipantID(), payload)
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, client.ID)
		return nil
	}
}

// handles convert-to-code: seeds the code panel with the selected text and
// broadcasts the new code state to everyone, sender included
func ConvertToCodeHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		var payload ConvertToCodePayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse code conversion", err.Error())
			return err
		}

		participantID := client.ParticipantID()

		codeState, err := store.UpdateCodeState(client.SessionID(), sessions.CodeStatePatch{
			SelectedText:   &payload.SelectedText,
			Language:       &payload.Language,
			Code:           &payload.SelectedText,
			LastModifiedBy: &participantID,
		})
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		broadcastMsg, err := NewMessage(TypeCodeConverted, client.SessionID(), participantID, CodeConvertedPayload{
			CodeState:   codeState,
			ConvertedBy: participantID,
		})
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, "")
		return nil
	}
}

// handles code panel edits
func CodeUpdateHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		var payload CodeUpdatePayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse code update", err.Error())
			return err
		}

		participantID := client.ParticipantID()

		_, err := store.UpdateCodeState(client.SessionID(), sessions.CodeStatePatch{
			Code:           &payload.Code,
			Language:       &payload.Language,
			LastModifiedBy: &participantID,
		})
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		payload.UpdatedBy = participantID

		broadcastMsg, err := NewMessage(TypeCodeUpdate, client.SessionID(), participantID, payload)
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, client.ID)
		return nil
	}
}

// handles test case list replacement
func TestCaseUpdateHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		var payload TestCaseUpdatePayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse test case update", err.Error())
			return err
		}

		participantID := client.ParticipantID()

		if payload.TestCases == nil {
			payload.TestCases = []sessions.TestCase{}
		}

		_, err := store.UpdateCodeState(client.SessionID(), sessions.CodeStatePatch{
			TestCases:      payload.TestCases,
			LastModifiedBy: &participantID,
		})
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		payload.UpdatedBy = participantID

		broadcastMsg, err := NewMessage(TypeTestCaseUpdate, client.SessionID(), participantID, payload)
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, client.ID)
		return nil
	}
}

// handles execution results: records them on the session and broadcasts to
// everyone, sender included
func CodeExecutionResultHandler(store *sessions.Store) MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		var payload CodeExecutionResultPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse execution results", err.Error())
			return err
		}

		ranAt := time.Now()
		if payload.RanAt != nil {
			ranAt = *payload.RanAt
		}

		if payload.Results == nil {
			payload.Results = []sessions.ExecutionResult{}
		}

		_, err := store.UpdateCodeState(client.SessionID(), sessions.CodeStatePatch{
			ExecutionResults: payload.Results,
			LastExecutedAt:   &ranAt,
		})
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		payload.RanAt = &ranAt
		payload.ExecutedBy = client.ParticipantID()

		broadcastMsg, err := NewMessage(TypeCodeExecutionResult, client.SessionID(), client.ParticipantID(), payload)
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, "")
		return nil
	}
}

// handles advisory session control events. Only the interviewer may emit
// them; anyone else is silently ignored. The event gates nothing.
func SessionControlHandler() MessageHandler {
	return func(hub *Hub, client *Client, msg *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		if client.Role() != sessions.RoleInterviewer {
			return nil
		}

		var payload SessionControlPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			client.SendError("validation_error", "failed to parse session control", err.Error())
			return err
		}

		now := time.Now()
		payload.ControlledBy = client.ParticipantID()
		payload.Timestamp = &now

		broadcastMsg, err := NewMessage(TypeSessionControl, client.SessionID(), client.ParticipantID(), payload)
		if err != nil {
			return err
		}

		hub.BroadcastToSession(client.SessionID(), broadcastMsg, "")
		return nil
	}
}

// handles export requests; the bundle goes to the requester only
func ExportSessionHandler(store *sessions.Store) MessageHandler {
	return func(_ *Hub, client *Client, _ *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		export, err := store.Export(client.SessionID())
		if err != nil {
			client.SendError("session_not_found", "Session not found", "")
			return err
		}

		exportMsg, err := NewMessage(TypeExportData, client.SessionID(), client.ParticipantID(), export)
		if err != nil {
			return err
		}

		return client.Send(exportMsg)
	}
}

// handles heartbeats: refreshes the participant's last-seen time
func HeartbeatHandler(store *sessions.Store) MessageHandler {
	return func(_ *Hub, client *Client, _ *Message) error {
		if err := requireBound(client); err != nil {
			return err
		}

		store.TouchConnection(client.ID)

		ackMsg, err := NewMessage(TypeHeartbeatAck, client.SessionID(), client.ParticipantID(), nil)
		if err != nil {
			return err
		}

		client.Send(ackMsg) //nolint:errcheck,gosec // best-effort ack
		return nil
	}
}

// handles ping messages from clients (keep-alive)
func PingHandler() MessageHandler {
	return func(_ *Hub, client *Client, _ *Message) error {
		pongMsg, err := NewMessage(TypePong, client.SessionID(), client.ParticipantID(), nil)
		if err != nil {
			return err
		}
		client.Send(pongMsg) //nolint:errcheck,gosec // best-effort pong
		return nil
	}
}

// returns the hub disconnect callback: marks the participant inactive in the
// store and tells the rest of the session. Disconnect is non-fatal; the
// session stays alive pending a rejoin within the grace window.
func DisconnectNotifier(store *sessions.Store, hub *Hub) func(client *Client) {
	return func(client *Client) {
		result, ok := store.Disconnect(client.ID)
		if !ok {
			return
		}

		logger.Info("participant disconnected",
			"session_id", result.SessionID,
			"participant_id", result.Participant.ID,
			"role", result.Participant.Role,
		)

		leftMsg, err := NewMessage(TypeUserLeft, result.SessionID, result.Participant.ID, UserLeftPayload{
			User:  result.Participant,
			Users: result.Users,
		})
		if err == nil {
			hub.BroadcastToSession(result.SessionID, leftMsg, "")
		}

		updateMsg, err := NewMessage(TypeSessionUpdate, result.SessionID, result.Participant.ID, SessionUpdatePayload{
			Users: result.Users,
		})
		if err == nil {
			hub.BroadcastToSession(result.SessionID, updateMsg, "")
		}
	}
}
