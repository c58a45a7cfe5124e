package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a:b", PairKey("b", "a"))
	assert.NotEqual(t, PairKey("a", "b"), PairKey("a", "c"))
}

func TestConversationHelpers(t *testing.T) {
	c := &Conversation{
		Participants: []string{"u1", "u2"},
		UnreadCount:  map[string]int64{"u1": 3},
	}
	assert.True(t, c.HasParticipant("u1"))
	assert.False(t, c.HasParticipant("u3"))
	assert.Equal(t, "u2", c.Other("u1"))
	assert.Equal(t, "u1", c.Other("u2"))
	assert.Equal(t, "", c.Other("u3"))
	assert.Equal(t, int64(3), c.UnreadFor("u1"))
	assert.Equal(t, int64(0), c.UnreadFor("u2"), "absent key defaults to zero")

	var empty Conversation
	assert.Equal(t, int64(0), empty.UnreadFor("u1"))
}
