package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewProducer(brokers []string, topic string, log *zap.SugaredLogger) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: w, log: log}
}

// Publish writes the envelope keyed by conversation. Publishing is
// best-effort relative to the request path: the mutation has already been
// stored, so a failure only delays delivery until the next fetch.
func (p *Producer) Publish(ctx context.Context, ev *Envelope) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("marshal envelope", "type", ev.Type, "err", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: b,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("publish change event", "type", ev.Type, "err", err)
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
