package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case b := <-c.send:
			var env Envelope
			if err := json.Unmarshal(b, &env); err == nil {
				out = append(out, env)
			}
		default:
			return out
		}
	}
}

func TestHubPushReachesEveryConnectionOfIdentity(t *testing.T) {
	h := NewHub(nil)
	c1 := newClient("conn1", "u1", nil, 8)
	c2 := newClient("conn2", "u1", nil, 8)
	other := newClient("conn3", "u2", nil, 8)
	h.Join("u1", c1)
	h.Join("u1", c2)
	h.Join("u2", other)

	h.PushToUser("u1", "new_message", map[string]string{"chat": "c"})

	for _, c := range []*Client{c1, c2} {
		envs := drain(c)
		require.Len(t, envs, 1)
		assert.Equal(t, "new_message", envs[0].Event)
	}
	assert.Empty(t, drain(other), "push must stay inside the identity room")
}

func TestHubPushToEmptyRoomIsDropped(t *testing.T) {
	h := NewHub(nil)
	// no panic, nothing to deliver
	h.PushToUser("nobody", "new_message", "x")
	assert.Equal(t, 0, h.Connections("nobody"))
}

func TestHubLeaveIsRefCounted(t *testing.T) {
	h := NewHub(nil)
	c1 := newClient("conn1", "u1", nil, 8)
	c2 := newClient("conn2", "u1", nil, 8)
	h.Join("u1", c1)
	h.Join("u1", c2)
	assert.Equal(t, 2, h.Connections("u1"))

	h.Leave("u1", c1)
	assert.Equal(t, 1, h.Connections("u1"))

	h.PushToUser("u1", "ping", nil)
	assert.Empty(t, drain(c1), "departed connection receives nothing")
	assert.Len(t, drain(c2), 1)

	h.Leave("u1", c2)
	assert.Equal(t, 0, h.Connections("u1"))
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	h := NewHub(nil)
	c := newClient("conn1", "u1", nil, 1)
	h.Join("u1", c)

	h.PushToUser("u1", "a", nil)
	h.PushToUser("u1", "b", nil) // buffer of 1 is full, dropped

	envs := drain(c)
	require.Len(t, envs, 1)
	assert.Equal(t, "a", envs[0].Event)
}

func TestClientTrySendAfterCloseFails(t *testing.T) {
	c := newClient("conn1", "u1", nil, 8)
	c.close()
	assert.False(t, c.trySend([]byte("x")))
	// close is idempotent
	c.close()
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]string{"chatId": "abc"})
	require.NoError(t, err)
	b, err := json.Marshal(Envelope{Event: "mark_messages_read", Data: data})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, "mark_messages_read", env.Event)

	var payload struct {
		ChatID string `json:"chatId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "abc", payload.ChatID)
}
