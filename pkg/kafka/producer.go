package pkgkafka

import (
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// KafkaProducer is an explicitly owned client handle, injected into every
// component that publishes. Publish waits for the per-message delivery
// report, so a nil return means the broker acknowledged the message, not
// just that it was enqueued locally. The outbox relies on that: an event is
// only marked produced once Publish returned nil.
type KafkaProducer struct {
	producer *kafka.Producer
}

func NewKafkaProducer(cfg *KafkaConfig) (*KafkaProducer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Host,
		"message.timeout.ms": 10000,
	})
	if err != nil {
		return nil, err
	}

	// Client-level errors (broker down, all retries exhausted) land on the
	// shared events channel; per-message reports go to Publish directly.
	go func() {
		for e := range p.Events() {
			if kErr, ok := e.(kafka.Error); ok {
				logrus.WithField("CODE", kErr.Code()).Warnf("producer error: %v", kErr)
			}
		}
	}()

	return &KafkaProducer{
		producer: p,
	}, nil
}

func (p *KafkaProducer) Publish(topic string, msg []byte) error {
	deliveryChan := make(chan kafka.Event, 1)
	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          msg,
	}, deliveryChan)
	if err != nil {
		return err
	}

	if err := deliveryResult(<-deliveryChan); err != nil {
		logrus.WithField("TOPIC", topic).Warnf("delivery failed: %v", err)
		return err
	}
	producedTotal.WithLabelValues(topic).Inc()
	return nil
}

// deliveryResult maps a delivery report to the outcome of the produce call.
func deliveryResult(e kafka.Event) error {
	switch ev := e.(type) {
	case *kafka.Message:
		return ev.TopicPartition.Error
	case kafka.Error:
		return ev
	default:
		return fmt.Errorf("unexpected delivery event: %v", e)
	}
}

func (p *KafkaProducer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
