package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// builds a client without a live websocket connection; Send only touches
// the outbound channel so handler and broadcast paths are fully testable
func newTestClient(id string) *Client {
	return &Client{
		ID:              id,
		send:            make(chan []byte, 256),
		docOpTimestamps: make([]time.Time, 0, maxDocumentOpsPerSecond),
	}
}

func bindTestClient(hub *Hub, client *Client, sessionID, participantID, role string) {
	client.SetBinding(sessionID, participantID, role)
	hub.BindClient(client, sessionID)
}

func drainSend(client *Client) {
	for {
		select {
		case <-client.send:
		default:
			return
		}
	}
}

func TestHubCreation(t *testing.T) {
	hub := NewHub()
	require.NotNil(t, hub)
	assert.NotNil(t, hub.Register)
	assert.NotNil(t, hub.Unregister)
	assert.NotNil(t, hub.Inbound)
}

func TestHubRegisterClientStartsUnbound(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	// registered but not yet part of any session
	assert.Equal(t, 0, hub.GetClientCount("session-1"))
	assert.False(t, hub.IsSessionActive("session-1"))
}

func TestHubBindClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, client, "session-1", "user-1", "interviewer")

	clients := hub.GetSessionClients("session-1")
	require.Len(t, clients, 1)
	assert.Equal(t, "client-1", clients[0].ID)
	assert.True(t, hub.IsSessionActive("session-1"))
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, client, "session-1", "user-1", "interviewer")

	hub.Unregister <- client
	time.Sleep(100 * time.Millisecond)

	// session map cleaned up once its last connection leaves
	assert.Equal(t, 0, hub.GetClientCount("session-1"))
	assert.False(t, hub.IsSessionActive("session-1"))
	assert.True(t, client.IsClosed())
}

func TestHubDisconnectCallback(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	var mu sync.Mutex
	var disconnectedID string

	hub.OnClientDisconnect(func(client *Client) {
		mu.Lock()
		disconnectedID = client.ID
		mu.Unlock()
	})

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	hub.Unregister <- client
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, "client-1", disconnectedID)
	mu.Unlock()
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client1 := newTestClient("client-1")
	client2 := newTestClient("client-2")

	hub.Register <- client1
	hub.Register <- client2
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, client1, "session-1", "user-1", "interviewer")
	bindTestClient(hub, client2, "session-1", "user-2", "candidate")

	msg, err := NewMessage(TypeCodeUpdate, "session-1", "user-1", CodeUpdatePayload{
		Code:     "console.log('hi')",
		Language: "javascript",
	})
	require.NoError(t, err)

	hub.BroadcastToSession("session-1", msg, "client-1")
	time.Sleep(100 * time.Millisecond)

	// sender should NOT receive (was excluded)
	select {
	case <-client1.send:
		t.Error("client-1 should not have received message (was excluded)")
	default:
		// expected
	}

	// other participant should receive
	select {
	case received := <-client2.send:
		var receivedMsg Message
		err := json.Unmarshal(received, &receivedMsg)
		require.NoError(t, err)
		assert.Equal(t, TypeCodeUpdate, receivedMsg.Type)
	case <-time.After(1 * time.Second):
		t.Error("client-2 should have received message")
	}
}

func TestHubBroadcastSessionIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client1 := newTestClient("client-1")
	client2 := newTestClient("client-2")

	hub.Register <- client1
	hub.Register <- client2
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, client1, "session-1", "user-1", "interviewer")
	bindTestClient(hub, client2, "session-2", "user-2", "interviewer")

	msg, err := NewMessage(TypeCodeUpdate, "session-1", "user-1", CodeUpdatePayload{
		Code:     "console.log('hi')",
		Language: "javascript",
	})
	require.NoError(t, err)

	hub.BroadcastToSession("session-1", msg, "")
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client1.send:
		// expected
	case <-time.After(1 * time.Second):
		t.Error("client-1 should have received message")
	}

	select {
	case <-client2.send:
		t.Error("client-2 should not have received message (different session)")
	default:
		// expected
	}
}

func TestHubBroadcastSkipsUnboundClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	bound := newTestClient("client-1")
	unbound := newTestClient("client-2")

	hub.Register <- bound
	hub.Register <- unbound
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, bound, "session-1", "user-1", "interviewer")

	msg, err := NewMessage(TypeSessionUpdate, "session-1", "user-1", SessionUpdatePayload{})
	require.NoError(t, err)

	hub.BroadcastToSession("session-1", msg, "")
	time.Sleep(100 * time.Millisecond)

	select {
	case <-bound.send:
		// expected
	case <-time.After(1 * time.Second):
		t.Error("bound client should have received message")
	}

	select {
	case <-unbound.send:
		t.Error("unbound client should not have received session broadcasts")
	default:
		// expected
	}
}

func TestHubMessageHandler(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	handlerCalled := false
	var handlerMu sync.Mutex

	testHandler := func(hub *Hub, client *Client, msg *Message) error {
		handlerMu.Lock()
		handlerCalled = true
		handlerMu.Unlock()
		return nil
	}

	hub.RegisterHandler("test-message", testHandler)

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	msg, err := NewMessage("test-message", "session-1", "user-1", map[string]interface{}{
		"test": "data",
	})
	require.NoError(t, err)
	msg.ClientID = "client-1" // set ClientID so the hub can find the sender

	hub.Inbound <- msg
	time.Sleep(200 * time.Millisecond)

	handlerMu.Lock()
	assert.True(t, handlerCalled, "handler should have been called")
	handlerMu.Unlock()
}

func TestHubUnsupportedMessageType(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	msg, err := NewMessage("no-such-type", "", "", nil)
	require.NoError(t, err)
	msg.ClientID = "client-1"

	hub.Inbound <- msg
	time.Sleep(200 * time.Millisecond)

	// sender gets an error reply, nothing else happens
	select {
	case received := <-client.send:
		var receivedMsg Message
		require.NoError(t, json.Unmarshal(received, &receivedMsg))
		assert.Equal(t, TypeError, receivedMsg.Type)

		var payload ErrorPayload
		require.NoError(t, receivedMsg.UnmarshalPayload(&payload))
		assert.Equal(t, "bad_request", payload.Error)
	case <-time.After(1 * time.Second):
		t.Error("client should have received an error reply")
	}
}

func TestHubSequenceNumbersMonotonic(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client := newTestClient("client-1")

	hub.Register <- client
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, client, "session-1", "user-1", "interviewer")

	numMessages := 5
	for range numMessages {
		msg, err := NewMessage(TypeSessionUpdate, "session-1", "user-1", SessionUpdatePayload{})
		require.NoError(t, err)
		hub.BroadcastToSession("session-1", msg, "")
	}

	time.Sleep(100 * time.Millisecond)

	var lastSeq uint64
	for i := range numMessages {
		select {
		case received := <-client.send:
			var receivedMsg Message
			require.NoError(t, json.Unmarshal(received, &receivedMsg))
			assert.Greater(t, receivedMsg.Sequence, lastSeq, "message %d sequence should increase", i)
			lastSeq = receivedMsg.Sequence
		case <-time.After(1 * time.Second):
			t.Fatalf("expected %d broadcasts, got %d", numMessages, i)
		}
	}
}

func TestHubEndSession(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	client1 := newTestClient("client-1")
	client2 := newTestClient("client-2")

	hub.Register <- client1
	hub.Register <- client2
	time.Sleep(100 * time.Millisecond)

	bindTestClient(hub, client1, "session-1", "user-1", "interviewer")
	bindTestClient(hub, client2, "session-1", "user-2", "candidate")

	hub.EndSession("session-1", "session expired due to inactivity")

	// both clients should have received the session-ended notice
	for _, client := range []*Client{client1, client2} {
		found := false

		for !found {
			select {
			case received := <-client.send:
				var receivedMsg Message
				require.NoError(t, json.Unmarshal(received, &receivedMsg))

				if receivedMsg.Type == TypeSessionEnded {
					var payload SessionEndedPayload
					require.NoError(t, receivedMsg.UnmarshalPayload(&payload))
					assert.Equal(t, "session expired due to inactivity", payload.Reason)
					found = true
				}
			case <-time.After(1 * time.Second):
				t.Fatal("expected session-ended message")
			}
		}
	}

	assert.True(t, client1.IsClosed())
	assert.True(t, client2.IsClosed())
	assert.False(t, hub.IsSessionActive("session-1"))
}

func TestHubConcurrentBroadcasts(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	sessionID := "test-session"
	numClients := 4
	numMessages := 20

	clients := make([]*Client, numClients)
	for i := range numClients {
		clients[i] = newTestClient(string(rune('a' + i)))
		hub.Register <- clients[i]
	}

	time.Sleep(200 * time.Millisecond)

	for i := range numClients {
		bindTestClient(hub, clients[i], sessionID, string(rune('a'+i)), "candidate")
		drainSend(clients[i])
	}

	var wg sync.WaitGroup
	for range numMessages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, _ := NewMessage(TypeCodeUpdate, sessionID, "a", CodeUpdatePayload{
				Code:     "print('hi')",
				Language: "python",
			})
			hub.BroadcastToSession(sessionID, msg, "a")
		}()
	}

	wg.Wait()
	time.Sleep(500 * time.Millisecond)

	// everyone but the sender should see every broadcast
	for i := 1; i < numClients; i++ {
		receivedCount := 0

		for {
			select {
			case <-clients[i].send:
				receivedCount++
			default:
				goto done
			}
		}

	done:
		assert.Equal(t, numMessages, receivedCount, "client %d should receive all messages", i)
	}

	select {
	case <-clients[0].send:
		t.Error("sender should not receive broadcast")
	default:
		// expected
	}
}
