package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database access.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate brings the schema up to date. Idempotent.
	Migrate(ctx context.Context) error

	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) error
	DeleteConversation(ctx context.Context, id int32) error

	CreateChatMessages(ctx context.Context, msgs []*ChatMessage) error
	ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)
}
