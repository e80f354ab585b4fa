package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryParkAndFulfill(t *testing.T) {
	r := NewRegistry()
	wc := NewContext("sess-1", 1, "plan a trip", nil)

	r.Park(wc)
	assert.Equal(t, 1, r.Len())

	susp, ok := r.Fulfill("sess-1", "to Kyoto")
	require.True(t, ok)
	assert.Equal(t, 0, r.Len(), "fulfillment must remove the entry")

	text, ok := susp.Await()
	require.True(t, ok)
	assert.Equal(t, "to Kyoto", text)
	assert.Same(t, wc, susp.Context())
}

func TestRegistryFulfillUnknownSessionIsNoop(t *testing.T) {
	r := NewRegistry()

	susp, ok := r.Fulfill("nobody-home", "hello")
	assert.False(t, ok)
	assert.Nil(t, susp)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryParkSupersedesPriorSuspension(t *testing.T) {
	r := NewRegistry()
	first := NewContext("sess-1", 1, "first", nil)
	second := NewContext("sess-1", 1, "second", nil)

	stale := r.Park(first)
	r.Park(second)
	assert.Equal(t, 1, r.Len(), "one suspension per session")

	// The stale continuation observes it was superseded.
	_, ok := stale.Await()
	assert.False(t, ok)

	susp, ok := r.Fulfill("sess-1", "reply")
	require.True(t, ok)
	assert.Same(t, second, susp.Context())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	wc := NewContext("sess-1", 1, "input", nil)

	susp := r.Park(wc)
	r.Clear("sess-1")
	assert.Equal(t, 0, r.Len())

	_, ok := susp.Await()
	assert.False(t, ok)

	// Clearing an absent session is a no-op.
	r.Clear("sess-1")
}

func TestRegistryEvictionHook(t *testing.T) {
	r := NewRegistry()
	var evicted int
	r.onEvict = func() { evicted++ }

	// A newer park for the same session drops the first suspension.
	r.Park(NewContext("sess-1", 1, "first", nil))
	r.Park(NewContext("sess-1", 1, "second", nil))
	assert.Equal(t, 1, evicted)

	// So does clearing a live suspension.
	r.Clear("sess-1")
	assert.Equal(t, 2, evicted)

	// Fulfillment is a resume, not an eviction; neither is clearing after it.
	r.Park(NewContext("sess-2", 1, "input", nil))
	_, ok := r.Fulfill("sess-2", "reply")
	require.True(t, ok)
	r.Clear("sess-2")
	assert.Equal(t, 2, evicted)
}

func TestRegistryFulfillDeliversExactlyOnce(t *testing.T) {
	r := NewRegistry()
	r.Park(NewContext("sess-1", 1, "input", nil))

	_, ok := r.Fulfill("sess-1", "first reply")
	require.True(t, ok)

	_, ok = r.Fulfill("sess-1", "second reply")
	assert.False(t, ok, "second fulfillment must find nothing")
}
