package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Abdulkalam0018/roadresq/internal/models"
)

const publishTimeout = 5 * time.Second

// MessageSentEvent is the payload streamed to the bus for each durable send.
// Downstream consumers (notifications, analytics) hang off this topic.
type MessageSentEvent struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	SentAt         time.Time `json:"sent_at"`
}

type Publisher struct {
	writer *kafkago.Writer
	log    *zap.SugaredLogger
}

func NewPublisher(brokers []string, topic string, log *zap.SugaredLogger) *Publisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        false,
	}
	return &Publisher{writer: w, log: log}
}

// MessageSent publishes fire-and-forget: the durable write already succeeded,
// so a bus failure is logged and never propagated to the sender.
func (p *Publisher) MessageSent(_ context.Context, m *models.Message) {
	ev := MessageSentEvent{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		SentAt:         m.CreatedAt,
	}
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("marshal message event", "err", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		err := p.writer.WriteMessages(ctx, kafkago.Message{
			Key:   []byte(m.ConversationID),
			Value: b,
			Time:  m.CreatedAt,
		})
		if err != nil {
			p.log.Warnw("kafka publish message.sent", "message_id", m.ID, "err", err)
		}
	}()
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
