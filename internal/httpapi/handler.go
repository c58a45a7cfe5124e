package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Abdulkalam0018/roadresq/internal/apperr"
	"github.com/Abdulkalam0018/roadresq/internal/chat"
	"github.com/Abdulkalam0018/roadresq/internal/middleware"
)

const requestTimeout = 10 * time.Second

// PresenceReader is the read side of the presence store.
type PresenceReader interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

type ChatHandler struct {
	svc      *chat.Service
	presence PresenceReader
	log      *zap.SugaredLogger
}

func NewChatHandler(svc *chat.Service, presence PresenceReader, log *zap.SugaredLogger) *ChatHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ChatHandler{svc: svc, presence: presence, log: log}
}

// GET /chats/user/:userId
func (h *ChatHandler) GetOrCreateChat(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	conv, err := h.svc.GetOrCreateConversation(ctx, middleware.UserID(c), c.Params("userId"))
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusOK, conv)
}

// GET /chats
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	convs, err := h.svc.ListConversations(ctx, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	if convs == nil {
		convs = []*chat.ConversationView{}
	}
	return ok(c, http.StatusOK, convs)
}

// GET /chats/:chatId/messages?page&limit
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", chat.DefaultPageSize)
	ctx, cancel := h.ctx(c)
	defer cancel()
	msgs, err := h.svc.ListMessages(ctx, middleware.UserID(c), c.Params("chatId"), page, limit)
	if err != nil {
		return h.fail(c, err)
	}
	if msgs == nil {
		msgs = []*chat.MessageView{}
	}
	return ok(c, http.StatusOK, msgs)
}

// POST /chats/message
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var body struct {
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return h.fail(c, apperr.New(apperr.InvalidInput, "invalid request body"))
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	msg, err := h.svc.SendMessage(ctx, middleware.UserID(c), body.ChatID, body.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, http.StatusCreated, msg)
}

// POST /chats/:chatId/mark-read
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.svc.MarkRead(ctx, middleware.UserID(c), c.Params("chatId")); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// GET /users/:userId/presence
func (h *ChatHandler) GetPresence(c *fiber.Ctx) error {
	if h.presence == nil {
		return ok(c, http.StatusOK, fiber.Map{"online": false})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	online, err := h.presence.IsOnline(ctx, c.Params("userId"))
	if err != nil {
		return h.fail(c, apperr.Wrap(apperr.Internal, "read presence", err))
	}
	return ok(c, http.StatusOK, fiber.Map{"online": online})
}

func (h *ChatHandler) ctx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), requestTimeout)
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		h.log.Errorw("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": apperr.Message(err),
	})
}

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func queryInt(c *fiber.Ctx, key string, def int64) int64 {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return def
	}
	return n
}
