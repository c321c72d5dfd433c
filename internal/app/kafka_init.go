package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/messaging/kafka"
)

const kafkaClientID = "serviceflow-api"

// initKafkaProducer создаёт producer, если заданы brokers.
// Возвращает nil, nil, когда Kafka не настроена.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, kafkaClientID)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
