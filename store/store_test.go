package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenchat/lumen/ai/workflow"
	"github.com/lumenchat/lumen/internal/profile"
	"github.com/lumenchat/lumen/store"
	"github.com/lumenchat/lumen/store/db/sqlite"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "lumen_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOrCreateConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conv, err := s.GetOrCreateConversation(ctx, "sess-1", 1, "trip planning")
	require.NoError(t, err)
	assert.NotZero(t, conv.ID)
	assert.Equal(t, "sess-1", conv.UID)
	assert.Equal(t, "trip planning", conv.Title)

	// Second call finds the same conversation instead of creating another.
	again, err := s.GetOrCreateConversation(ctx, "sess-1", 1, "different title")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
	assert.Equal(t, "trip planning", again.Title)
}

func TestAppendMessagesAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AppendMessages(ctx, "sess-1", 1, []workflow.StoredMessage{
		{Role: store.RoleUser, Content: "plan a Kyoto trip"},
		{Role: store.RoleAssistant, Content: "Which dates?"},
	})
	require.NoError(t, err)

	err = s.AppendMessages(ctx, "sess-1", 1, []workflow.StoredMessage{
		{Role: store.RoleUser, Content: "first week of April"},
	})
	require.NoError(t, err)

	history, err := s.History(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "plan a Kyoto trip", history[0].Content)
	assert.Equal(t, store.RoleAssistant, history[1].Role)
	assert.Equal(t, "first week of April", history[2].Content)

	// The conversation title came from the first user message.
	conv, err := s.GetConversationByUID(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "plan a Kyoto trip", conv.Title)
}

func TestHistoryLimitKeepsMostRecentTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four", "five", "six"} {
		err := s.AppendMessages(ctx, "sess-1", 1, []workflow.StoredMessage{
			{Role: store.RoleUser, Content: content},
		})
		require.NoError(t, err)
	}

	// A long session must surface its latest turns, still oldest-first.
	history, err := s.History(ctx, "sess-1", 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "three", history[0].Content)
	assert.Equal(t, "four", history[1].Content)
	assert.Equal(t, "five", history[2].Content)
	assert.Equal(t, "six", history[3].Content)
}

func TestHistoryForUnknownSessionIsEmpty(t *testing.T) {
	s := newTestStore(t)

	history, err := s.History(context.Background(), "never-seen", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAppendMessagesEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendMessages(context.Background(), "sess-1", 1, nil))
	conv, err := s.GetConversationByUID(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, conv, "no conversation is created for an empty append")
}
