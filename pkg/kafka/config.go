package pkgkafka

import "os"

type KafkaConfig struct {
	Host          string
	ConsumerGroup string
	NumPartitions int
}

func NewKafkaConfig(consumerGroup string) *KafkaConfig {
	host := os.Getenv("KAFKA_BOOTSTRAP_SERVERS")
	if host == "" {
		host = "localhost"
	}

	return &KafkaConfig{
		Host:          host,
		ConsumerGroup: consumerGroup,
		NumPartitions: 1,
	}
}
