package store

// Conversation is one chat session. UID is the client-facing session
// identifier; ID is the internal surrogate key.
type Conversation struct {
	UID       string
	Title     string
	CreatedTs int64
	UpdatedTs int64
	ID        int32
	CreatorID int32
}

// FindConversation filters conversation lookups. Nil fields are ignored.
type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

// UpdateConversation carries a partial conversation update. Nil fields are
// left untouched.
type UpdateConversation struct {
	Title     *string
	UpdatedTs *int64
	ID        int32
}
