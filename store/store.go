package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/lumenchat/lumen/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{driver: driver, profile: profile}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate brings the schema up to date. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) error {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) DeleteConversation(ctx context.Context, id int32) error {
	return s.driver.DeleteConversation(ctx, id)
}

func (s *Store) CreateChatMessages(ctx context.Context, msgs []*ChatMessage) error {
	return s.driver.CreateChatMessages(ctx, msgs)
}

func (s *Store) ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessages(ctx, find)
}

// GetConversationByUID returns the conversation with the given UID, or nil
// when none exists.
func (s *Store) GetConversationByUID(ctx context.Context, uid string) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, &FindConversation{UID: &uid})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// GetOrCreateConversation returns the session's conversation, creating it
// with the given title when it does not exist yet.
func (s *Store) GetOrCreateConversation(ctx context.Context, uid string, creatorID int32, title string) (*Conversation, error) {
	conv, err := s.GetConversationByUID(ctx, uid)
	if err != nil {
		return nil, errors.Wrapf(err, "find conversation %s", uid)
	}
	if conv != nil {
		return conv, nil
	}

	now := time.Now().Unix()
	conv, err = s.driver.CreateConversation(ctx, &Conversation{
		UID:       uid,
		CreatorID: creatorID,
		Title:     title,
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create conversation %s", uid)
	}
	return conv, nil
}
