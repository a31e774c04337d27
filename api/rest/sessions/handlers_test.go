package sessions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairslate/server/internal/errors"
	store "github.com/pairslate/server/internal/sessions"
)

func setupRouter(sessionStore *store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	api := router.Group("/api/v1")
	RegisterRoutes(api, sessionStore)

	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestCreateSessionEndpoint(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	w := postJSON(t, router, "/api/v1/sessions", CreateSessionRequest{Role: "interviewer"})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.SessionID, 32)
	assert.Equal(t, "interviewer", resp.Role)

	// creating does not join: session exists but has no participants
	assert.True(t, sessionStore.IsValidSession(resp.SessionID))

	status, err := sessionStore.Status(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.UserCount)
}

func TestCreateSessionEndpointEmptyBody(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "interviewer", resp.Role)
}

func TestJoinSessionEndpoint(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	sessionID, err := sessionStore.CreateSession()
	require.NoError(t, err)

	w := postJSON(t, router, "/api/v1/sessions/"+sessionID+"/join", JoinSessionRequest{Role: "candidate"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp JoinSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sessionID, resp.SessionID)
	assert.NotEmpty(t, resp.UserID)
	assert.Equal(t, "candidate", resp.Role)
	require.Len(t, resp.SessionState.Users, 1)
	assert.True(t, resp.SessionState.Users[0].Active)
}

func TestJoinSessionEndpointNotFound(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	w := postJSON(t, router, "/api/v1/sessions/does-not-exist/join", JoinSessionRequest{Role: "candidate"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "session_not_found", resp.Error)
	assert.Equal(t, "Session not found", resp.Message)
}

func TestJoinSessionEndpointRoleTaken(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	sessionID, err := sessionStore.CreateSession()
	require.NoError(t, err)

	_, err = sessionStore.JoinSession(sessionID, store.RoleInterviewer)
	require.NoError(t, err)

	w := postJSON(t, router, "/api/v1/sessions/"+sessionID+"/join", JoinSessionRequest{Role: "interviewer"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Role already taken", resp.Message)
}

func TestJoinSessionEndpointSessionFull(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	sessionID, err := sessionStore.CreateSession()
	require.NoError(t, err)

	_, err = sessionStore.JoinSession(sessionID, store.RoleInterviewer)
	require.NoError(t, err)
	_, err = sessionStore.JoinSession(sessionID, store.RoleCandidate)
	require.NoError(t, err)

	w := postJSON(t, router, "/api/v1/sessions/"+sessionID+"/join", JoinSessionRequest{Role: "candidate"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Session is full", resp.Message)
}

func TestJoinSessionEndpointInvalidRole(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	sessionID, err := sessionStore.CreateSession()
	require.NoError(t, err)

	w := postJSON(t, router, "/api/v1/sessions/"+sessionID+"/join", JoinSessionRequest{Role: "observer"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	sessionID, err := sessionStore.CreateSession()
	require.NoError(t, err)

	_, err = sessionStore.JoinSession(sessionID, store.RoleInterviewer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sessionID+"/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status store.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, sessionID, status.SessionID)
	assert.Equal(t, 1, status.UserCount)
	assert.Equal(t, 1, status.ActiveUserCount)
}

func TestStatusEndpointNotFound(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/missing/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	sessionStore := store.New(time.Minute)
	router := setupRouter(sessionStore)

	_, err := sessionStore.CreateSession()
	require.NoError(t, err)
	_, err = sessionStore.CreateSession()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 2, stats.ActiveSessions)
}
