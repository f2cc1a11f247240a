package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the part of *kgo.Client the Kafka sink uses.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaSink streams events to a Kafka topic keyed by user id, so all events
// of one account land on the same partition in order.
type KafkaSink struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	failed   atomic.Uint64
}

// NewKafkaClient builds a franz-go client for brokers with topic as the
// default produce topic.
func NewKafkaClient(brokers []string, topic string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("audit: kafka brokers required")
	}
	if topic == "" {
		return nil, errors.New("audit: kafka topic required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("authcore-audit"),
	}
	return kgo.NewClient(append(base, opts...)...)
}

// NewKafkaSink wraps producer. topic may be empty when the client carries a
// default produce topic.
func NewKafkaSink(producer Producer, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.producer == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		return
	}

	key := event.UserID
	if key == "" {
		key = event.ID
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
	}

	s.producer.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			s.failed.Add(1)
			s.logger.Warn("audit kafka produce failed",
				slog.String("event_id", event.ID),
				slog.String("topic", r.Topic),
				slog.Any("err", err),
			)
		}
	})
}

// Failed returns how many events could not be produced.
func (s *KafkaSink) Failed() uint64 {
	if s == nil {
		return 0
	}
	return s.failed.Load()
}
