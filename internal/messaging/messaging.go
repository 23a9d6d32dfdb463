package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/config"
)

// fetchBackoff is the pause after a failed fetch before retrying the broker.
const fetchBackoff = time.Second

// Message is a message consumed from the payment events topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client publishes and consumes payment lifecycle events. The noop driver
// keeps the API available when no broker is deployed.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}
	if cfg.Messaging.Driver != "kafka" {
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
	return newKafkaClient(lc, cfg, logger), nil
}

type noopClient struct {
	topic string
}

func (noopClient) Publish(context.Context, []byte, []byte) error { return nil }

func (noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) Client {
	kc := cfg.Messaging.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(kc.Brokers...),
		Topic:        kc.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafkaLogger{logger},
		ErrorLogger:  kafkaLogger{logger},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kc.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          kc.Topic,
		MinBytes:       kc.MinBytes,
		MaxBytes:       kc.MaxBytes,
		CommitInterval: kc.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  kc.ConnectTimeout,
			ClientID: kc.ClientID,
		},
	})

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := writer.Close(); err != nil {
				return err
			}
			return reader.Close()
		},
	})

	return &kafkaClient{writer: writer, reader: reader, topic: kc.Topic, logger: logger}
}

func (k *kafkaClient) Publish(ctx context.Context, key, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Topic: k.topic, Key: key, Value: value})
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))
			time.Sleep(fetchBackoff)
			continue
		}

		if err := handler(ctx, wrap(msg)); err != nil {
			// Skip the commit so the event is redelivered. Handlers are
			// idempotent, so redelivery is safe.
			k.logger.Error("event handler failed", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func wrap(msg kafka.Message) Message {
	out := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
