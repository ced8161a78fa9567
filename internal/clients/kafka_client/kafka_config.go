package kafka_client

import "github.com/confluentinc/confluent-kafka-go/kafka"

type KafkaConfig struct {
	Broker        string
	Topic         string
	TransactionID string
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Topic == "" {
		c.Topic = KAFKA_TOPIC_SENTIMENT_RESULTS
	}
	if c.TransactionID == "" {
		c.TransactionID = KAFKA_TRANSACTION_ID
	}
	return c
}

func (c KafkaConfig) producerConfig() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":                     c.Broker,
		"security.protocol":                     "PLAINTEXT",
		"api.version.request":                   "true",
		"enable.idempotence":                    true,
		"acks":                                  "all",
		"max.in.flight.requests.per.connection": 1,
		"transactional.id":                      c.TransactionID,
	}
}
