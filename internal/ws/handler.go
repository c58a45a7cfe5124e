package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Abdulkalam0018/roadresq/internal/apperr"
	"github.com/Abdulkalam0018/roadresq/internal/auth"
	"github.com/Abdulkalam0018/roadresq/internal/chat"
	"github.com/Abdulkalam0018/roadresq/internal/metrics"
)

const handlerTimeout = 10 * time.Second

// Presence records whether a user currently holds any live connection.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

type Options struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	PongWait      time.Duration
	MaxMsgSize    int64
	SendBuffer    int
}

// Handler authenticates socket connections and dispatches their events onto
// the chat service. A connection is refused before any event is processed
// when its handshake credential does not verify.
type Handler struct {
	hub      *Hub
	svc      *chat.Service
	verifier *auth.Verifier
	presence Presence
	opts     Options
	log      *zap.SugaredLogger
}

func NewHandler(hub *Hub, svc *chat.Service, verifier *auth.Verifier, presence Presence, opts Options, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{hub: hub, svc: svc, verifier: verifier, presence: presence, opts: opts, log: log}
}

type registerData struct {
	UserID string `json:"userId"`
}

type sendMessageData struct {
	ChatID     string `json:"chatId"`
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
}

type markReadData struct {
	ChatID string `json:"chatId"`
}

// Serve runs the lifetime of one connection. The credential is the same
// access token REST uses, supplied as a ?token= query parameter or the
// accessToken cookie, verified once before any event is read.
func (h *Handler) Serve(conn *websocket.Conn) {
	token := conn.Query("token")
	if token == "" {
		token = conn.Cookies("accessToken")
	}
	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.refuse(conn, "authentication failed")
		return
	}
	userID := claims.UserID

	client := newClient(uuid.NewString(), userID, conn, h.opts.SendBuffer)
	metrics.WSConnections.Inc()
	go client.writePump(h.opts.PingInterval, h.opts.WriteDeadline)

	registered := false
	defer func() {
		if registered {
			h.hub.Leave(userID, client)
		}
		client.close()
		metrics.WSConnections.Dec()
		if h.presence != nil && h.hub.Connections(userID) == 0 {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			if err := h.presence.SetOffline(ctx, userID); err != nil {
				h.log.Warnw("presence offline", "user_id", userID, "err", err)
			}
			cancel()
		}
		h.log.Infow("socket disconnected", "user_id", userID, "conn_id", client.id)
	}()

	h.log.Infow("socket connected", "user_id", userID, "conn_id", client.id)

	conn.SetReadLimit(h.opts.MaxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			client.sendEvent("error", "malformed event")
			continue
		}
		switch env.Event {
		case "register":
			registered = h.handleRegister(client, env.Data) || registered
		case "send_message":
			h.handleSendMessage(client, env.Data)
		case "mark_messages_read":
			h.handleMarkRead(client, env.Data)
		default:
			client.sendEvent("error", "unknown event")
		}
	}
}

// handleRegister joins the connection to its identity room, but only when the
// claimed identity matches the handshake identity. A client cannot subscribe
// to another user's notification room.
func (h *Handler) handleRegister(c *Client, data json.RawMessage) bool {
	var claimed string
	if err := json.Unmarshal(data, &claimed); err != nil {
		var rd registerData
		if err := json.Unmarshal(data, &rd); err != nil {
			c.sendEvent("error", "invalid register payload")
			return false
		}
		claimed = rd.UserID
	}
	if claimed != c.userID {
		c.sendEvent("error", "unauthorized: user ID mismatch")
		return false
	}
	h.hub.Join(c.userID, c)
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := h.presence.SetOnline(ctx, c.userID); err != nil {
			h.log.Warnw("presence online", "user_id", c.userID, "err", err)
		}
	}
	h.log.Infow("user registered", "user_id", c.userID, "conn_id", c.id)
	return true
}

// handleSendMessage runs the same send path as the REST handler. The receiver
// is derived server-side from the conversation; the receiverId field in the
// payload is accepted for wire compatibility but never trusted.
func (h *Handler) handleSendMessage(c *Client, data json.RawMessage) {
	var d sendMessageData
	if err := json.Unmarshal(data, &d); err != nil {
		c.sendEvent("error", "invalid message payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	msg, err := h.svc.SendMessage(ctx, c.userID, d.ChatID, d.Content)
	if err != nil {
		h.log.Warnw("socket send_message", "user_id", c.userID, "chat_id", d.ChatID, "err", err)
		c.sendEvent("error", apperr.Message(err))
		return
	}
	c.sendEvent(chat.EventMessageSent, msg)
}

func (h *Handler) handleMarkRead(c *Client, data json.RawMessage) {
	var d markReadData
	if err := json.Unmarshal(data, &d); err != nil || d.ChatID == "" {
		c.sendEvent("error", "chat ID is required")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := h.svc.MarkRead(ctx, c.userID, d.ChatID); err != nil {
		h.log.Warnw("socket mark_messages_read", "user_id", c.userID, "chat_id", d.ChatID, "err", err)
		c.sendEvent("error", apperr.Message(err))
	}
}

// refuse terminates a connection that failed the handshake without entering
// the event loop.
func (h *Handler) refuse(conn *websocket.Conn, reason string) {
	data, _ := json.Marshal(reason)
	b, _ := json.Marshal(Envelope{Event: "error", Data: data})
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"))
	_ = conn.Close()
}
