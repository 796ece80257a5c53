package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"affimporter/internal/config"
	"affimporter/internal/events"
	"affimporter/internal/logger"
	"affimporter/internal/store"
	"affimporter/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

const (
	groupID = "affimporter-worker"

	maxRetryWait = 30 * time.Second
)

// MessageReader is the part of kafka.Reader the worker uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	config    *config.Config
	logger    *logger.Logger
	reader    MessageReader
	processor *processors.EventProcessor
	retryWait time.Duration
}

func New(cfg *config.Config, logger *logger.Logger, issues store.IssueStore) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        events.BrokerList(cfg.KafkaBrokers),
		GroupID:        groupID,
		Topic:          cfg.KafkaTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})

	return NewWithReader(cfg, logger, reader, processors.NewEventProcessor(issues, logger))
}

func NewWithReader(cfg *config.Config, logger *logger.Logger, reader MessageReader, processor *processors.EventProcessor) *Worker {
	return &Worker{
		config:    cfg,
		logger:    logger,
		reader:    reader,
		processor: processor,
		retryWait: time.Second,
	}
}

// Run consumes import events until ctx is cancelled. Messages that cannot be
// decoded are committed and dropped. A message that fails processing is
// retried with backoff and nothing after it is fetched until it succeeds.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started, listening for events on %s...", w.config.KafkaTopic)

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		var event events.ImportEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			w.logger.Error("Failed to parse event at offset %d: %v", message.Offset, err)
			w.commit(ctx, message)
			continue
		}

		if !w.process(ctx, event) {
			return nil
		}

		w.commit(ctx, message)
	}
}

// process retries event until it succeeds. It returns false when ctx ends
// first.
func (w *Worker) process(ctx context.Context, event events.ImportEvent) bool {
	wait := w.retryWait
	for attempt := 1; ; attempt++ {
		err := w.processor.Process(ctx, event)
		if err == nil {
			return true
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}

		w.logger.Error("Failed to process event %s (attempt %d), retrying in %s: %v", event.ID, attempt, wait, err)
		if !sleep(ctx, wait) {
			return false
		}
		if wait *= 2; wait > maxRetryWait {
			wait = maxRetryWait
		}
	}
}

func (w *Worker) commit(ctx context.Context, message kafka.Message) {
	if err := w.reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
		w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Error("Failed to close reader: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
