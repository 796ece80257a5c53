package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"affimporter/internal/config"
	"affimporter/internal/logger"
	"affimporter/internal/metrics"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const TypeImportOutcome = "product.import.outcome"

// ImportEvent describes what happened to one candidate of an import batch.
type ImportEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	BatchID        string    `json:"batch_id"`
	CandidateIndex int       `json:"candidate_index"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	ProductID      uint      `json:"product_id,omitempty"`
	ASIN           string    `json:"asin,omitempty"`
	Notes          []string  `json:"notes,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, event ImportEvent) error
	Close() error
}

// NewPublisher returns a kafka backed publisher, or one that only logs when
// no brokers are configured.
func NewPublisher(cfg *config.Config, log *logger.Logger) Publisher {
	brokers := BrokerList(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		log.Info("No Kafka brokers configured, import events will only be logged")
		return NewLogPublisher(log)
	}
	return NewKafkaPublisher(brokers, cfg.KafkaTopic, log)
}

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				metrics.EventPublishErrorsTotal.Add(float64(len(messages)))
				log.Error("Failed to deliver %d import events: %v", len(messages), err)
			}
		},
	}

	return &KafkaPublisher{writer: writer, logger: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event ImportEvent) error {
	event = stamp(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode import event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BatchID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		metrics.EventPublishErrorsTotal.Inc()
		return fmt.Errorf("failed to publish import event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type LogPublisher struct {
	logger *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{logger: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event ImportEvent) error {
	event = stamp(event)
	p.logger.Debug("Import event %s: batch=%s index=%d status=%s reason=%s product=%d",
		event.ID, event.BatchID, event.CandidateIndex, event.Status, event.Reason, event.ProductID)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}

func stamp(event ImportEvent) ImportEvent {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Type == "" {
		event.Type = TypeImportOutcome
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// BrokerList splits a comma separated broker setting.
func BrokerList(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
