package sink

import (
	"context"
	"strings"
)

// New builds the sink for a destination:
//
//   - "kafka://brokers/topic" publishes to Kafka regardless of the cloud flag;
//   - otherwise, with cloud logging disabled, records go to the process logger;
//   - otherwise a Cloud Logging sink for the destination project is created,
//     an empty destination meaning the default project.
func New(ctx context.Context, destination string, opts ...Option) (Sink, error) {
	destination = strings.TrimSpace(destination)

	if strings.HasPrefix(destination, KafkaScheme) {
		brokers, topic, err := ParseKafkaDestination(destination)
		if err != nil {
			return nil, err
		}

		return NewKafka(brokers, topic), nil
	}

	s := applyOptions(opts)
	if !s.cloudLogging {
		return NewLogger(s.logger), nil
	}

	return NewCloud(ctx, destination, opts...)
}
