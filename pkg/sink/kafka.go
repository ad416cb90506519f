package sink

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/segmentio/kafka-go"
)

// KafkaScheme prefixes destinations routed to a Kafka topic.
const KafkaScheme = "kafka://"

const (
	headerEventType = "event_type"
	headerLogger    = "logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes CBOR encoded records to a Kafka topic, keyed by call id.
type KafkaSink struct {
	writer messageWriter
	topic  string

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ParseKafkaDestination splits "kafka://broker1:9092,broker2:9092/topic".
func ParseKafkaDestination(destination string) ([]string, string, error) {
	rest, ok := strings.CutPrefix(destination, KafkaScheme)
	if !ok {
		return nil, "", ewrap.Wrapf(ErrInvalidDestination, "%q is not a kafka destination", destination)
	}

	hosts, topic, _ := strings.Cut(rest, "/")
	topic = strings.Trim(topic, "/")

	var brokers []string

	for host := range strings.SplitSeq(hosts, ",") {
		host = strings.TrimSpace(host)
		if host != "" {
			brokers = append(brokers, host)
		}
	}

	if len(brokers) == 0 || topic == "" {
		return nil, "", ewrap.Wrapf(ErrInvalidDestination, "%q needs at least one broker and a topic", destination)
	}

	return brokers, topic, nil
}

// NewKafka returns a sink writing to topic on the given brokers.
func NewKafka(brokers []string, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}

	return newKafkaSink(writer, topic)
}

func newKafkaSink(writer messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

// Topic returns the destination topic.
func (k *KafkaSink) Topic() string {
	return k.topic
}

// Write implements Sink.
func (k *KafkaSink) Write(ctx context.Context, rec Record) error {
	if k.closed.Load() {
		return ErrClosed
	}

	payload, err := EncodeCBOR(rec)
	if err != nil {
		return ewrap.Wrap(err, "encode record")
	}

	msg := kafka.Message{
		Key:   rec.CallID[:],
		Value: payload,
		Time:  rec.Timestamp,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(rec.Event.String())},
			{Key: headerLogger, Value: []byte(rec.Side)},
		},
	}

	err = k.writer.WriteMessages(ctx, msg)
	if err != nil {
		return ewrap.Wrapf(err, "publish record to %s", k.topic)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (k *KafkaSink) Close() error {
	k.closeOnce.Do(func() {
		k.closed.Store(true)

		err := k.writer.Close()
		if err != nil {
			k.closeErr = ewrap.Wrap(err, "close kafka writer")
		}
	})

	return k.closeErr
}
