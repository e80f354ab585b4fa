package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lumenchat/lumen/store"
)

type conversationResponse struct {
	UID       string `json:"uid"`
	Title     string `json:"title"`
	CreatedTs int64  `json:"created_ts"`
	UpdatedTs int64  `json:"updated_ts"`
}

type messageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedTs int64  `json:"created_ts"`
}

func (s *Server) handleListConversations(c echo.Context) error {
	find := &store.FindConversation{}
	if v := c.QueryParam("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid user_id")
		}
		id := int32(userID)
		find.CreatorID = &id
	}

	list, err := s.Store.ListConversations(c.Request().Context(), find)
	if err != nil {
		slog.Error("server: listing conversations failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list conversations")
	}

	out := make([]conversationResponse, 0, len(list))
	for _, conv := range list {
		out = append(out, conversationResponse{
			UID:       conv.UID,
			Title:     conv.Title,
			CreatedTs: conv.CreatedTs,
			UpdatedTs: conv.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleListMessages(c echo.Context) error {
	uid := c.Param("uid")
	ctx := c.Request().Context()

	conv, err := s.Store.GetConversationByUID(ctx, uid)
	if err != nil {
		slog.Error("server: finding conversation failed", "uid", uid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load conversation")
	}
	if conv == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}

	msgs, err := s.Store.ListChatMessages(ctx, &store.FindChatMessage{ConversationID: &conv.ID})
	if err != nil {
		slog.Error("server: listing messages failed", "uid", uid, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list messages")
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageResponse{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedTs: msg.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, out)
}
