package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"maestro/internal/conversation"
	"maestro/internal/eventbus"
	"maestro/internal/knowledge"
	"maestro/internal/store"
)

type stubConversation struct {
	sent []string
}

func (c *stubConversation) Send(ctx context.Context, userText string) (string, error) {
	c.sent = append(c.sent, userText)
	return "ack", nil
}

func (c *stubConversation) GetStats(ctx context.Context) (conversation.Stats, error) {
	return conversation.Stats{Engine: "test"}, nil
}

func newTestServer(t *testing.T) (*Server, *stubConversation) {
	t.Helper()
	log := logrus.NewEntry(logrus.New())

	st, err := store.Open(context.Background(), t.TempDir()+"/maestro.db", log, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	proj, err := st.GetOrCreateProject(context.Background(), "demo", t.TempDir())
	require.NoError(t, err)

	kb, err := knowledge.NewLoader(log).Load(t.TempDir())
	require.NoError(t, err)

	conv := &stubConversation{}

	srv := New(Options{
		Store:         st,
		Knowledge:     kb,
		Bus:           eventbus.NewBus(log),
		Conversation:  conv,
		ProjectID:     proj.ID,
		Engine:        func() string { return "anthropic" },
		ToolCount:     func() int { return 12 },
		WebhookUser:   "+15551234567",
		WebhookSender: "+15557654321",
		Log:           log,
	})
	return srv, conv
}

func newTestEcho(t *testing.T) (*echo.Echo, *Server, *stubConversation) {
	t.Helper()
	srv, conv := newTestServer(t)
	e := echo.New()
	srv.Register(e)
	return e, srv, conv
}

func TestHandleHealth(t *testing.T) {
	e, _, _ := newTestEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "anthropic", body["engine"])
}

func TestHandleProject(t *testing.T) {
	e, _, _ := newTestEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/api/project", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "demo", body["name"])
}

func TestHandleListWorkspaces(t *testing.T) {
	e, srv, _ := newTestEcho(t)
	_, err := srv.store.CreateWorkspace(context.Background(), srv.projectID, "East Wing", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Workspace
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "East Wing", list[0].Title)
}

func TestHandleGetWorkspaceNotFound(t *testing.T) {
	e, _, _ := newTestEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDisciplines(t *testing.T) {
	e, _, _ := newTestEcho(t)
	req := httptest.NewRequest(http.MethodGet, "/api/knowledge/disciplines", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tree []knowledge.DisciplineNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	require.Equal(t, "General", tree[0].Name)
}

func TestHandleScheduleUpcoming(t *testing.T) {
	e, srv, _ := newTestEcho(t)
	date := time.Now().UTC().AddDate(0, 0, 30).Format("2006-01-02")
	_, err := srv.store.AddEvent(context.Background(), srv.projectID, "Pour slab", date, date, "milestone", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/schedule/upcoming?days=365", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var events []store.ScheduleEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
}

func TestHandleWebhookDropsWrongSender(t *testing.T) {
	e, _, conv := newTestEcho(t)
	body, _ := json.Marshal(webhookPayload{FromNumber: "+19998887777", Content: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
	require.Empty(t, conv.sent)
}

func TestHandleWebhookDropsSelfEcho(t *testing.T) {
	e, _, conv := newTestEcho(t)
	body, _ := json.Marshal(webhookPayload{FromNumber: "+15557654321", Content: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
	require.Empty(t, conv.sent)
}

func TestHandleWebhookDropsEmpty(t *testing.T) {
	e, _, conv := newTestEcho(t)
	body, _ := json.Marshal(webhookPayload{FromNumber: "+15551234567"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ignored")
	require.Empty(t, conv.sent)
}

func TestHandleWebhookAccepted(t *testing.T) {
	e, _, _ := newTestEcho(t)
	body, _ := json.Marshal(webhookPayload{FromNumber: "+15551234567", Content: "what's on the schedule today?"})
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestWebSocketConnectedAndPong(t *testing.T) {
	srv, _ := newTestServer(t)
	e := echo.New()
	srv.Register(e)
	ts := httptest.NewServer(e)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected map[string]any
	require.NoError(t, conn.ReadJSON(&connected))
	require.Equal(t, "connected", connected["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	var pong map[string]any
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong["type"])
}
