package store

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/lumenchat/lumen/ai/core/llm"
	"github.com/lumenchat/lumen/ai/workflow"
)

// titleRuneLimit caps auto-derived conversation titles.
const titleRuneLimit = 64

// AppendMessages implements workflow.ConversationStore: it persists workflow
// turns under the session's conversation, creating the conversation on first
// write with a title derived from the first user message.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, userID int32, msgs []workflow.StoredMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	conv, err := s.GetOrCreateConversation(ctx, sessionID, userID, deriveTitle(msgs))
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	rows := make([]*ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, &ChatMessage{
			ConversationID: conv.ID,
			Role:           m.Role,
			Content:        m.Content,
			CreatedTs:      now,
		})
	}
	if err := s.driver.CreateChatMessages(ctx, rows); err != nil {
		return errors.Wrapf(err, "append messages to conversation %s", sessionID)
	}

	return s.driver.UpdateConversation(ctx, &UpdateConversation{ID: conv.ID, UpdatedTs: &now})
}

// History returns the session's conversation as chat-model messages in
// chronological order. A positive limit keeps the most recent turns. A
// session with no conversation yields an empty slice.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	conv, err := s.GetConversationByUID(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "find conversation %s", sessionID)
	}
	if conv == nil {
		return nil, nil
	}

	find := &FindChatMessage{ConversationID: &conv.ID}
	if limit > 0 {
		find.Limit = &limit
	}
	rows, err := s.driver.ListChatMessages(ctx, find)
	if err != nil {
		return nil, errors.Wrapf(err, "list messages of conversation %s", sessionID)
	}

	history := make([]llm.Message, 0, len(rows))
	for _, row := range rows {
		history = append(history, llm.Message{Role: row.Role, Content: row.Content})
	}
	return history, nil
}

func deriveTitle(msgs []workflow.StoredMessage) string {
	for _, m := range msgs {
		if m.Role != RoleUser || m.Content == "" {
			continue
		}
		title := m.Content
		if utf8.RuneCountInString(title) > titleRuneLimit {
			runes := []rune(title)
			title = string(runes[:titleRuneLimit])
		}
		return title
	}
	return "New Chat"
}
