package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextCursorAndDone(t *testing.T) {
	wc := NewContext("sess-1", 1, "input", nil)
	assert.True(t, wc.Done(), "empty task list is trivially done")

	wc.TaskList = []string{"a", "b"}
	assert.False(t, wc.Done())

	wc.AppendResult("a", "ra")
	assert.Equal(t, 1, wc.Cursor)
	wc.AppendResult("b", "rb")
	assert.True(t, wc.Done())
}

func TestClarifyAttemptCounter(t *testing.T) {
	wc := NewContext("sess-1", 1, "input", nil)
	assert.Equal(t, 0, wc.ClarifyAttempt())

	wc.BumpClarifyAttempt()
	wc.BumpClarifyAttempt()
	assert.Equal(t, 2, wc.ClarifyAttempt())

	wc.ResetClarifyAttempt()
	assert.Equal(t, 0, wc.ClarifyAttempt())
}

func TestSideChannelCapIsEnforced(t *testing.T) {
	wc := NewContext("sess-1", 1, "input", nil)
	for i := 0; i < sideChannelCap; i++ {
		wc.SideSet(fmt.Sprintf("key-%d", i), i)
	}

	wc.SideSet("one-too-many", true)
	_, ok := wc.SideGet("one-too-many")
	assert.False(t, ok, "writes beyond the cap are dropped")

	// Overwriting an existing key is always allowed.
	wc.SideSet("key-0", "updated")
	v, ok := wc.SideGet("key-0")
	assert.True(t, ok)
	assert.Equal(t, "updated", v)

	wc.SideDelete("key-1")
	wc.SideSet("replacement", true)
	_, ok = wc.SideGet("replacement")
	assert.True(t, ok)
}

func TestAddUsageAccumulates(t *testing.T) {
	wc := NewContext("sess-1", 1, "input", nil)
	wc.AddUsage(10, 5, 15, 2)
	wc.AddUsage(20, 10, 30, 0)

	assert.Equal(t, 30, wc.Usage.PromptTokens)
	assert.Equal(t, 15, wc.Usage.CompletionTokens)
	assert.Equal(t, 45, wc.Usage.TotalTokens)
	assert.Equal(t, 2, wc.Usage.CacheReadTokens)
}
