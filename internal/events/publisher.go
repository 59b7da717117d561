package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/domain"
)

// MessageCreated is emitted after every successful message append so
// downstream CRM/analytics consumers can follow conversations.
type MessageCreated struct {
	SessionID string          `json:"session_id"`
	Message   *domain.Message `json:"message"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Publisher writes chat events to Kafka. A nil *Publisher is a no-op, which
// is how deployments without brokers run.
type Publisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewPublisher(brokers []string, topic string, log *zap.Logger) *Publisher {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &Publisher{writer: w, log: log}
}

// PublishMessageCreated is fire-and-forget; a broker outage must never fail
// the chat request that triggered it.
func (p *Publisher) PublishMessageCreated(sessionID string, msg *domain.Message) {
	if p == nil {
		return
	}
	b, err := json.Marshal(MessageCreated{
		SessionID: sessionID,
		Message:   msg,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	km := kafka.Message{Key: []byte(sessionID), Value: b, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		p.log.Warn("publish message.created", zap.Error(err))
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
