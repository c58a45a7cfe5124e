package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Abdulkalam0018/roadresq/internal/apperr"
	"github.com/Abdulkalam0018/roadresq/internal/metrics"
	"github.com/Abdulkalam0018/roadresq/internal/models"
)

// ConversationStore owns the conversation documents, including the mutable
// unread-count aggregate. Nothing outside this package writes to it.
type ConversationStore interface {
	// GetOrCreate returns the conversation for the unordered pair {a, b},
	// creating it with zeroed counters when absent. Concurrent calls for the
	// same pair must converge on a single document.
	GetOrCreate(ctx context.Context, a, b string) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	// ApplyMessage sets the preview, bumps updated_at and increments the
	// receiver's unread counter in one atomic update.
	ApplyMessage(ctx context.Context, convID, receiverID, preview string, at time.Time) error
	ResetUnread(ctx context.Context, convID, userID string) error
}

// MessageStore is the append-only per-conversation log.
type MessageStore interface {
	Insert(ctx context.Context, m *models.Message) error
	// ListPage returns page (1-based) of limit messages counting back from the
	// newest, re-sorted ascending for display.
	ListPage(ctx context.Context, convID string, page, limit int64) ([]*models.Message, error)
	// MarkRead flips every unread message addressed to receiverID and returns
	// how many it flipped.
	MarkRead(ctx context.Context, convID, receiverID string) (int64, error)
}

// UserDirectory resolves identities to display info. Account management is an
// external collaborator; this is the only surface the chat core needs.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// Delivery pushes events to every live connection of a user. Best-effort: an
// offline user simply misses the push and catches up via the stores.
type Delivery interface {
	PushToUser(userID, event string, payload any)
}

// EventPublisher streams message-sent events to the bus, fire-and-forget.
type EventPublisher interface {
	MessageSent(ctx context.Context, m *models.Message)
}

const (
	EventNewMessage   = "new_message"
	EventMessageSent  = "message_sent"
	EventMessagesRead = "messages_read"

	DefaultPageSize  = 20
	MaxPageSize      = 100
	MaxContentLength = 4096
)

// ConversationView is a conversation with participant display info resolved.
type ConversationView struct {
	ID           string           `json:"id"`
	Participants []*models.User   `json:"participants"`
	LastMessage  string           `json:"last_message"`
	UnreadCount  map[string]int64 `json:"unread_count"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// MessageView is a message with its sender resolved.
type MessageView struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"chat_id"`
	Sender         *models.User `json:"sender"`
	ReceiverID     string       `json:"receiver_id"`
	Content        string       `json:"content"`
	Read           bool         `json:"read"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewMessagePayload is the push payload for EventNewMessage.
type NewMessagePayload struct {
	Message *MessageView `json:"message"`
	Chat    string       `json:"chat"`
}

// ReadPayload is the push payload for EventMessagesRead.
type ReadPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Service orchestrates the chat core. The delivery channel is injected at
// construction so neither handler layer reaches for process-global state.
type Service struct {
	convs    ConversationStore
	msgs     MessageStore
	users    UserDirectory
	delivery Delivery
	events   EventPublisher
	log      *zap.SugaredLogger
}

func NewService(convs ConversationStore, msgs MessageStore, users UserDirectory, delivery Delivery, events EventPublisher, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{convs: convs, msgs: msgs, users: users, delivery: delivery, events: events, log: log}
}

// GetOrCreateConversation returns the conversation between caller and other,
// creating it on first contact. Safe under concurrent calls from both sides.
func (s *Service) GetOrCreateConversation(ctx context.Context, callerID, otherID string) (*ConversationView, error) {
	if otherID == "" {
		return nil, apperr.New(apperr.InvalidInput, "user ID is required")
	}
	if otherID == callerID {
		return nil, apperr.New(apperr.InvalidInput, "cannot start a chat with yourself")
	}
	if _, err := s.users.FindByID(ctx, otherID); err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "lookup user", err)
	}

	conv, err := s.convs.GetOrCreate(ctx, callerID, otherID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get or create conversation", err)
	}
	return s.resolveConversation(ctx, conv)
}

// ListConversations returns the caller's conversations, most recently active
// first.
func (s *Service) ListConversations(ctx context.Context, callerID string) ([]*ConversationView, error) {
	convs, err := s.convs.ListForUser(ctx, callerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list conversations", err)
	}
	ids := make([]string, 0, len(convs)*2)
	for _, c := range convs {
		ids = append(ids, c.Participants...)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "resolve participants", err)
	}
	out := make([]*ConversationView, 0, len(convs))
	for _, c := range convs {
		out = append(out, viewConversation(c, users))
	}
	return out, nil
}

// ListMessages returns a page of the conversation's history in chronological
// order. Viewing is the read-acknowledgement: every unread message addressed
// to the caller is flipped and the caller's unread counter is zeroed.
func (s *Service) ListMessages(ctx context.Context, callerID, convID string, page, limit int64) ([]*MessageView, error) {
	conv, err := s.authorizedConversation(ctx, callerID, convID)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	msgs, err := s.msgs.ListPage(ctx, convID, page, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list messages", err)
	}

	if err := s.acknowledge(ctx, conv, callerID); err != nil {
		return nil, err
	}

	users, err := s.users.FindByIDs(ctx, conv.Participants)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "resolve participants", err)
	}
	out := make([]*MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, viewMessage(m, users[m.SenderID]))
	}
	return out, nil
}

// SendMessage appends a message and updates the conversation aggregate. The
// push to the receiver and the bus publish are fire-and-forget: once the
// writes land the send has succeeded.
func (s *Service) SendMessage(ctx context.Context, callerID, convID, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if convID == "" || content == "" {
		return nil, apperr.New(apperr.InvalidInput, "chat ID and content are required")
	}
	if len(content) > MaxContentLength {
		return nil, apperr.New(apperr.InvalidInput, "message content too long")
	}
	conv, err := s.authorizedConversation(ctx, callerID, convID)
	if err != nil {
		return nil, err
	}
	receiverID := conv.Other(callerID)

	msg := &models.Message{
		ConversationID: convID,
		SenderID:       callerID,
		ReceiverID:     receiverID,
		Content:        content,
		Read:           false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "insert message", err)
	}
	// The counter increment is a single atomic update on the conversation
	// document; the message already exists, so a reader never sees a counter
	// without its message, and concurrent sends cannot lose increments.
	if err := s.convs.ApplyMessage(ctx, convID, receiverID, content, msg.CreatedAt); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "update conversation", err)
	}
	metrics.MessagesSent.Inc()

	sender, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		s.log.Warnw("resolve sender after send", "user_id", callerID, "err", err)
		sender = &models.User{ID: callerID}
	}
	view := viewMessage(msg, sender)

	if s.delivery != nil {
		s.delivery.PushToUser(receiverID, EventNewMessage, NewMessagePayload{Message: view, Chat: convID})
	}
	if s.events != nil {
		s.events.MessageSent(ctx, msg)
	}
	return view, nil
}

// MarkRead acknowledges the caller's unread messages in the conversation.
// Idempotent: a second call is a no-op with the same observable result.
func (s *Service) MarkRead(ctx context.Context, callerID, convID string) error {
	conv, err := s.authorizedConversation(ctx, callerID, convID)
	if err != nil {
		return err
	}
	if err := s.acknowledge(ctx, conv, callerID); err != nil {
		return err
	}
	if other := conv.Other(callerID); other != "" && s.delivery != nil {
		s.delivery.PushToUser(other, EventMessagesRead, ReadPayload{ChatID: convID, UserID: callerID})
	}
	return nil
}

func (s *Service) acknowledge(ctx context.Context, conv *models.Conversation, userID string) error {
	if _, err := s.msgs.MarkRead(ctx, conv.ID, userID); err != nil {
		return apperr.Wrap(apperr.Internal, "mark messages read", err)
	}
	if err := s.convs.ResetUnread(ctx, conv.ID, userID); err != nil {
		return apperr.Wrap(apperr.Internal, "reset unread count", err)
	}
	return nil
}

func (s *Service) authorizedConversation(ctx context.Context, callerID, convID string) (*models.Conversation, error) {
	if convID == "" {
		return nil, apperr.New(apperr.InvalidInput, "chat ID is required")
	}
	conv, err := s.convs.GetByID(ctx, convID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.New(apperr.NotFound, "chat not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "load conversation", err)
	}
	if !conv.HasParticipant(callerID) {
		return nil, apperr.New(apperr.Forbidden, "you are not a participant of this chat")
	}
	return conv, nil
}

func (s *Service) resolveConversation(ctx context.Context, conv *models.Conversation) (*ConversationView, error) {
	users, err := s.users.FindByIDs(ctx, conv.Participants)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "resolve participants", err)
	}
	return viewConversation(conv, users), nil
}

func viewConversation(c *models.Conversation, users map[string]*models.User) *ConversationView {
	parts := make([]*models.User, 0, len(c.Participants))
	for _, id := range c.Participants {
		if u, ok := users[id]; ok {
			parts = append(parts, u)
		} else {
			parts = append(parts, &models.User{ID: id})
		}
	}
	unread := make(map[string]int64, len(c.Participants))
	for _, id := range c.Participants {
		unread[id] = c.UnreadFor(id)
	}
	return &ConversationView{
		ID:           c.ID,
		Participants: parts,
		LastMessage:  c.LastMessage,
		UnreadCount:  unread,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func viewMessage(m *models.Message, sender *models.User) *MessageView {
	if sender == nil {
		sender = &models.User{ID: m.SenderID}
	}
	return &MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         sender,
		ReceiverID:     m.ReceiverID,
		Content:        m.Content,
		Read:           m.Read,
		CreatedAt:      m.CreatedAt,
	}
}
