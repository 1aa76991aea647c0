package transport

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds the settings shared by the Kafka sender and listener.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the address the listener consumes from. Ignored by the
	// sender, which routes per envelope.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// Compile-time interface verification.
var (
	_ Sender   = (*KafkaSender)(nil)
	_ Listener = (*KafkaListener)(nil)
)

// KafkaSender publishes envelopes to Kafka, treating the destination
// address as the topic name.
type KafkaSender struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaSender creates a sender over the given brokers.
func NewKafkaSender(cfg KafkaConfig, logger zerolog.Logger) *KafkaSender {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaSender{
		writer: writer,
		logger: logger.With().Str("component", "kafka_sender").Logger(),
	}
}

// Send publishes the envelope to the topic named by address. The
// correlation id keys the message so replies for one request stay on one
// partition.
func (s *KafkaSender) Send(ctx context.Context, address string, env Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Topic: address,
		Key:   []byte(env.CorrelationID),
		Value: data,
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("address", address).
		Str("kind", env.Kind).
		Str("correlation_id", env.CorrelationID).
		Msg("sent envelope")
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

// KafkaListener consumes envelopes from a single topic and hands them to
// a Handler.
type KafkaListener struct {
	reader *kafka.Reader
	logger zerolog.Logger
}

// NewKafkaListener creates a listener bound to cfg.Topic.
func NewKafkaListener(cfg KafkaConfig, logger zerolog.Logger) *KafkaListener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})

	return &KafkaListener{
		reader: reader,
		logger: logger.With().Str("component", "kafka_listener").Str("topic", cfg.Topic).Logger(),
	}
}

// Run starts the consume loop. Blocks until context is cancelled.
// Messages that fail to decode are logged and dropped so one malformed
// publisher cannot wedge the topic.
func (l *KafkaListener) Run(ctx context.Context, handler Handler) error {
	l.logger.Info().Msg("starting listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received message")

		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to decode envelope")
			continue
		}

		handler(ctx, *env)
	}
}

// Close closes the underlying reader.
func (l *KafkaListener) Close() error {
	return l.reader.Close()
}
