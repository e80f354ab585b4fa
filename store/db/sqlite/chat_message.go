package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumenchat/lumen/store"
)

func (d *DB) CreateChatMessages(ctx context.Context, msgs []*store.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt := `
		INSERT INTO chat_message (conversation_id, role, content, created_ts)
		VALUES (?, ?, ?, ?)
		RETURNING id`
	for _, msg := range msgs {
		if err := tx.QueryRowContext(ctx, stmt,
			msg.ConversationID, msg.Role, msg.Content, msg.CreatedTs,
		).Scan(&msg.ID); err != nil {
			return fmt.Errorf("failed to create chat message: %w", err)
		}
	}
	return tx.Commit()
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = ?"), append(args, *find.ConversationID)
	}

	query := `
		SELECT id, conversation_id, role, content, created_ts
		FROM chat_message
		WHERE ` + strings.Join(where, " AND ")
	// With a limit the newest rows win; they are scanned newest-first and
	// flipped back into chronological order below.
	if find.Limit != nil {
		query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d", *find.Limit)
	} else {
		query += " ORDER BY id ASC"
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var list []*store.ChatMessage
	for rows.Next() {
		var msg store.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		list = append(list, &msg)
	}
	if find.Limit != nil {
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
	}
	return list, rows.Err()
}
