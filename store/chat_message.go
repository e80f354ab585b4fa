package store

// Message roles as persisted. They mirror the chat model's role vocabulary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one persisted conversation turn.
type ChatMessage struct {
	Content        string
	Role           string
	CreatedTs      int64
	ID             int64
	ConversationID int32
}

// FindChatMessage filters message lookups. Nil fields are ignored.
type FindChatMessage struct {
	ConversationID *int32
	Limit          *int
}
