package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdulkalam0018/roadresq/internal/chat"
	"github.com/Abdulkalam0018/roadresq/internal/models"
	"github.com/Abdulkalam0018/roadresq/internal/storage"
)

func newHandlerFixture(t *testing.T) (*Handler, *chat.Service, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	mem.AddUser(&models.User{ID: "u1", Username: "driver", UserType: "user"})
	mem.AddUser(&models.User{ID: "u2", Username: "wrench", UserType: "mechanic"})
	hub := NewHub(nil)
	svc := chat.NewService(mem, mem, mem, hub, nil, nil)
	h := NewHandler(hub, svc, nil, nil, Options{SendBuffer: 16}, nil)
	return h, svc, mem
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleRegisterIdentityMatch(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	c := newClient("conn1", "u1", nil, 16)

	// the original wire form is a bare string payload
	ok := h.handleRegister(c, raw(t, "u1"))
	assert.True(t, ok)
	assert.Equal(t, 1, h.hub.Connections("u1"))
	assert.Empty(t, drain(c))
}

func TestHandleRegisterObjectPayload(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	c := newClient("conn1", "u1", nil, 16)

	ok := h.handleRegister(c, raw(t, map[string]string{"userId": "u1"}))
	assert.True(t, ok)
	assert.Equal(t, 1, h.hub.Connections("u1"))
}

func TestHandleRegisterRejectsForeignIdentity(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	c := newClient("conn1", "u1", nil, 16)

	ok := h.handleRegister(c, raw(t, "u2"))
	assert.False(t, ok, "a client must not join another user's room")
	assert.Equal(t, 0, h.hub.Connections("u2"))

	envs := drain(c)
	require.Len(t, envs, 1)
	assert.Equal(t, "error", envs[0].Event)
}

func TestHandleSendMessageDeliversToReceiverRoom(t *testing.T) {
	h, svc, _ := newHandlerFixture(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	sender := newClient("conn1", "u1", nil, 16)
	receiver := newClient("conn2", "u2", nil, 16)
	require.True(t, h.handleRegister(sender, raw(t, "u1")))
	require.True(t, h.handleRegister(receiver, raw(t, "u2")))

	h.handleSendMessage(sender, raw(t, map[string]string{
		"chatId":     conv.ID,
		"content":    "need a tow",
		"receiverId": "u2",
	}))

	senderEnvs := drain(sender)
	require.Len(t, senderEnvs, 1)
	assert.Equal(t, chat.EventMessageSent, senderEnvs[0].Event)

	recvEnvs := drain(receiver)
	require.Len(t, recvEnvs, 1)
	assert.Equal(t, chat.EventNewMessage, recvEnvs[0].Event)
	var payload chat.NewMessagePayload
	require.NoError(t, json.Unmarshal(recvEnvs[0].Data, &payload))
	assert.Equal(t, conv.ID, payload.Chat)
	assert.Equal(t, "need a tow", payload.Message.Content)
}

func TestHandleSendMessageErrorsGoBackToSenderOnly(t *testing.T) {
	h, svc, _ := newHandlerFixture(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)

	sender := newClient("conn1", "u1", nil, 16)
	receiver := newClient("conn2", "u2", nil, 16)
	require.True(t, h.handleRegister(sender, raw(t, "u1")))
	require.True(t, h.handleRegister(receiver, raw(t, "u2")))

	h.handleSendMessage(sender, raw(t, map[string]string{"chatId": conv.ID, "content": ""}))

	envs := drain(sender)
	require.Len(t, envs, 1)
	assert.Equal(t, "error", envs[0].Event)
	assert.Empty(t, drain(receiver))
}

func TestHandleMarkReadNotifiesPeer(t *testing.T) {
	h, svc, _ := newHandlerFixture(t)
	ctx := context.Background()

	conv, err := svc.GetOrCreateConversation(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, "u1", conv.ID, "hello")
	require.NoError(t, err)

	reader := newClient("conn1", "u2", nil, 16)
	peer := newClient("conn2", "u1", nil, 16)
	require.True(t, h.handleRegister(reader, raw(t, "u2")))
	require.True(t, h.handleRegister(peer, raw(t, "u1")))

	h.handleMarkRead(reader, raw(t, map[string]string{"chatId": conv.ID}))

	envs := drain(peer)
	require.Len(t, envs, 1)
	assert.Equal(t, chat.EventMessagesRead, envs[0].Event)
	var payload chat.ReadPayload
	require.NoError(t, json.Unmarshal(envs[0].Data, &payload))
	assert.Equal(t, conv.ID, payload.ChatID)
	assert.Equal(t, "u2", payload.UserID)
}

func TestHandleMarkReadRequiresChatID(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	c := newClient("conn1", "u1", nil, 16)

	h.handleMarkRead(c, raw(t, map[string]string{}))

	envs := drain(c)
	require.Len(t, envs, 1)
	assert.Equal(t, "error", envs[0].Event)
}
