package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/lumenchat/lumen/ai/workflow"
)

// historyLimit bounds how much stored conversation is replayed into a new
// workflow's model calls.
const historyLimit = 50

// failureMessage is the single generic notice a failed workflow sends to the
// client. The cause stays in the server log.
const failureMessage = "Something went wrong while working on your request. Please try again."

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	// SessionID routes the message; empty starts a new session.
	SessionID string `json:"session_id"`
	UserID    int32  `json:"user_id"`
	Message   string `json:"message"`
}

// handleChat runs one workflow turn and streams its output as Server-Sent
// Events. A reply to a parked session resumes it; anything else starts a
// fresh workflow.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = shortuuid.New()
	}
	if req.UserID == 0 {
		req.UserID = 1
	}

	ctx := c.Request().Context()
	history, err := s.Store.History(ctx, req.SessionID, historyLimit)
	if err != nil {
		slog.Error("server: loading history failed", "session_id", req.SessionID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load conversation")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.Header().Set("X-Session-Id", req.SessionID)
	resp.WriteHeader(http.StatusOK)

	stream := &sseStream{resp: resp}
	if err := s.engine.Handle(ctx, req.SessionID, req.UserID, req.Message, history, stream); err != nil {
		// The client was already notified through the stream.
		slog.Error("server: workflow failed", "session_id", req.SessionID, "error", err)
	}
	return nil
}

// sseStream implements workflow.Stream over a Server-Sent Events response.
// The event name is the message kind; the payload is a small JSON object.
type sseStream struct {
	mu   sync.Mutex
	resp *echo.Response
}

type ssePayload struct {
	Text  string `json:"text"`
	Final bool   `json:"final,omitempty"`
}

func (s *sseStream) emit(event string, payload ssePayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.resp, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.resp.Flush()
	return nil
}

func (s *sseStream) SendPartial(kind workflow.MessageKind, text string) error {
	return s.emit(string(kind), ssePayload{Text: text})
}

func (s *sseStream) SendFinal(kind workflow.MessageKind, text string) error {
	return s.emit(string(kind), ssePayload{Text: text, Final: true})
}

func (s *sseStream) Fail(error) error {
	return s.emit(string(workflow.KindError), ssePayload{Text: failureMessage, Final: true})
}
