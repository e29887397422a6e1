package pkgkafka

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// KafkaConsumer runs one consume loop over the router's topics. Offsets are
// committed only after the handler returns nil; a failed handler seeks back
// to the failed offset so the broker-side at-least-once contract holds
// without any in-process retry bookkeeping.
type KafkaConsumer struct {
	consumer *kafka.Consumer
	router   *MsgRouter
	cfg      *KafkaConfig
	exitCH   chan struct{}
}

func NewKafkaConsumer(cfg *KafkaConfig, router *MsgRouter) (*KafkaConsumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Host,
		"group.id":           cfg.ConsumerGroup,
		"enable.auto.commit": false,
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, err
	}

	consumer := &KafkaConsumer{
		consumer: c,
		router:   router,
		cfg:      cfg,
		exitCH:   make(chan struct{}),
	}

	topics := router.Topics()
	if err := consumer.initializeTopics(topics); err != nil {
		return nil, err
	}

	if err := c.SubscribeTopics(topics, nil); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *KafkaConsumer) RunConsumer(ctx context.Context) {
	defer func() {
		c.consumer.Close()
		close(c.exitCH)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			if kErr, ok := err.(kafka.Error); ok && kErr.IsTimeout() {
				continue
			}
			logrus.Errorf("consumer error: %v", err)
			continue
		}

		topic := *msg.TopicPartition.Topic
		consumedTotal.WithLabelValues(topic).Inc()

		if err := c.router.Dispatch(ctx, topic, msg.Value); err != nil {
			logrus.WithFields(logrus.Fields{
				"TOPIC":  topic,
				"OFFSET": msg.TopicPartition.Offset,
			}).Errorf("handler failed, will redeliver: %v", err)

			if seekErr := c.consumer.Seek(msg.TopicPartition, 0); seekErr != nil {
				logrus.Errorf("seek failed: %v", seekErr)
			}
			time.Sleep(time.Second)
			continue
		}

		if _, err := c.consumer.CommitMessage(msg); err != nil {
			logrus.Errorf("commit failed: %v", err)
		}
	}
}

func (c *KafkaConsumer) Done() <-chan struct{} {
	return c.exitCH
}

func (c *KafkaConsumer) initializeTopics(topics []string) error {
	adminClient, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": c.cfg.Host,
	})
	if err != nil {
		return err
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:         topic,
			NumPartitions: c.cfg.NumPartitions,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := adminClient.CreateTopics(ctx, specs)
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() == kafka.ErrTopicAlreadyExists {
			continue
		}
		if result.Error.Code() != kafka.ErrNoError {
			logrus.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}
	return nil
}
