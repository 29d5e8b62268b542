package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryDeduplicatesTopics(t *testing.T) {
	r := NewRegistry()

	var first, second int
	sub1, created1 := r.Add("t", func(json.RawMessage) { first++ })
	sub2, created2 := r.Add("t", func(json.RawMessage) { second++ })

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Same(t, sub1, sub2)
	assert.Equal(t, 1, r.Len())

	// The original handler stays in place; the duplicate's handler is never
	// invoked.
	r.Dispatch("t", nil)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("t", func(json.RawMessage) {})

	assert.True(t, r.Remove("t"))
	assert.False(t, r.Remove("t"), "second remove is a no-op")
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Dispatch("t", nil))
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.Add("a", func(json.RawMessage) {})
	r.Add("b", func(json.RawMessage) {})

	topics := r.Clear()
	assert.ElementsMatch(t, []string{"a", "b"}, topics)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Topics())
}

func TestRegistryDispatchDeliversBody(t *testing.T) {
	r := NewRegistry()

	var got string
	r.Add("t", func(body json.RawMessage) { got = string(body) })

	assert.True(t, r.Dispatch("t", json.RawMessage(`{"x":1}`)))
	assert.Equal(t, `{"x":1}`, got)
	assert.False(t, r.Dispatch("other", json.RawMessage(`{}`)))
}
