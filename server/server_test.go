package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenchat/lumen/ai/core/llm"
	"github.com/lumenchat/lumen/ai/metrics"
	"github.com/lumenchat/lumen/ai/workflow"
	"github.com/lumenchat/lumen/internal/profile"
	"github.com/lumenchat/lumen/store"
	"github.com/lumenchat/lumen/store/db/sqlite"
)

// cannedLLM replays canned replies in order.
type cannedLLM struct {
	mu      sync.Mutex
	replies []string
}

func (c *cannedLLM) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return ""
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r
}

func (c *cannedLLM) Chat(context.Context, []llm.Message) (string, *llm.CallStats, error) {
	return c.next(), &llm.CallStats{TotalTokens: 10}, nil
}

func (c *cannedLLM) ChatStream(context.Context, []llm.Message) (<-chan string, <-chan *llm.CallStats, <-chan error) {
	contentCh := make(chan string, 1)
	statsCh := make(chan *llm.CallStats, 1)
	errCh := make(chan error, 1)
	contentCh <- c.next()
	close(contentCh)
	statsCh <- &llm.CallStats{TotalTokens: 10}
	close(statsCh)
	close(errCh)
	return contentCh, statsCh, errCh
}

func (c *cannedLLM) Warmup(context.Context) {}

func newTestServer(t *testing.T, model llm.Service) *Server {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "lumen_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))
	st := store.New(driver, p)
	t.Cleanup(func() { _ = st.Close() })

	e := echo.New()
	e.HideBanner = true
	s := &Server{
		Profile:    p,
		Store:      st,
		echoServer: e,
		engine:     workflow.NewEngine(model, st),
		exporter:   metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}
	s.registerRoutes()
	return s
}

func postChat(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	return rec
}

func TestChatEndToEnd(t *testing.T) {
	model := &cannedLLM{replies: []string{
		`{"info_complete": true, "missing_info_prompt": ""}`,
		"Research the topic\nWrite the summary",
		"research notes",
		"summary draft",
		"Here is the finished summary.",
	}}
	s := newTestServer(t, model)

	rec := postChat(s, `{"session_id": "sess-1", "user_id": 1, "message": "summarize this topic"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "sess-1", rec.Header().Get("X-Session-Id"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: plan")
	assert.Contains(t, body, "event: task_result")
	assert.Contains(t, body, "event: final_answer")
	assert.Contains(t, body, "Here is the finished summary.")
	assert.NotContains(t, body, "event: error")

	// The turn was persisted under the session's conversation.
	history, err := s.Store.History(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "summarize this topic", history[0].Content)
	assert.Equal(t, "Here is the finished summary.", history[1].Content)
}

func TestChatClarificationRoundTrip(t *testing.T) {
	model := &cannedLLM{replies: []string{
		`{"info_complete": false, "missing_info_prompt": "Which topic?"}`,
		`{"info_complete": true, "missing_info_prompt": ""}`,
		"Answer about compilers",
		"compiler answer",
		"Compilers, explained.",
	}}
	s := newTestServer(t, model)

	rec := postChat(s, `{"session_id": "sess-1", "message": "explain it"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: clarification")
	assert.Contains(t, rec.Body.String(), "Which topic?")
	assert.Equal(t, 1, s.engine.Registry().Len())

	rec = postChat(s, `{"session_id": "sess-1", "message": "compilers"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event: final_answer")
	assert.Contains(t, rec.Body.String(), "Compilers, explained.")
	assert.Equal(t, 0, s.engine.Registry().Len())
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	s := newTestServer(t, &cannedLLM{})

	rec := postChat(s, `{"session_id": "sess-1", "message": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatGeneratesSessionID(t *testing.T) {
	model := &cannedLLM{replies: []string{
		`{"info_complete": true, "missing_info_prompt": ""}`,
		"Answer it",
		"result",
		"done",
	}}
	s := newTestServer(t, model)

	rec := postChat(s, `{"message": "hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Session-Id"))
}

func TestListConversationsAndMessages(t *testing.T) {
	model := &cannedLLM{replies: []string{
		`{"info_complete": true, "missing_info_prompt": ""}`,
		"Answer it",
		"result",
		"final text",
	}}
	s := newTestServer(t, model)
	postChat(s, `{"session_id": "sess-1", "message": "a question"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", http.NoBody)
	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var convs []conversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "sess-1", convs[0].UID)
	assert.Equal(t, "a question", convs[0].Title)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/sess-1/messages", http.NoBody)
	rec = httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations/missing/messages", http.NoBody)
	rec = httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &cannedLLM{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	s.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
