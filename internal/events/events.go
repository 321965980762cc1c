// Package events moves fetched news batches from the API to the archive worker over Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends FetchedBatch events.
type Publisher struct {
	writer messageWriter
	log    *slog.Logger
	newID  func() string
}

// NewPublisher creates an async publisher for topic. Delivery errors are only logged.
func NewPublisher(brokers []string, topic string, log *slog.Logger) *Publisher {
	log = logger.OrDiscard(log)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("publish fetched batch failed", slog.Int("messages", len(msgs)), slog.Any("err", err))
			}
		},
	}
	return newPublisher(w, log)
}

func newPublisher(w messageWriter, log *slog.Logger) *Publisher {
	return &Publisher{writer: w, log: logger.OrDiscard(log), newID: uuid.NewString}
}

// Publish sends one batch keyed by topic. Empty batches are skipped.
func (p *Publisher) Publish(ctx context.Context, topic string, fetchedAt time.Time, records []models.NewsRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := models.FetchedBatch{
		BatchID:   p.newID(),
		Topic:     topic,
		FetchedAt: fetchedAt.UTC(),
		Records:   records,
	}
	msg, err := Encode(batch)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write fetched batch: %w", err)
	}

	p.log.Debug("fetched batch published",
		slog.String("batch_id", batch.BatchID),
		slog.String("topic", topic),
		slog.Int("records", len(records)),
	)
	return nil
}

// Close flushes pending messages.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Encode builds the Kafka message for batch.
func Encode(batch models.FetchedBatch) (kafka.Message, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal fetched batch: %w", err)
	}
	return kafka.Message{
		Key:   []byte(batch.Topic),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(batch.BatchID)},
		},
		Time: batch.FetchedAt,
	}, nil
}

// Decode reads a FetchedBatch from msg.
func Decode(msg kafka.Message) (models.FetchedBatch, error) {
	var batch models.FetchedBatch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		return models.FetchedBatch{}, fmt.Errorf("decode fetched batch: %w", err)
	}
	if batch.Topic == "" && len(batch.Records) == 0 {
		return models.FetchedBatch{}, errors.New("empty fetched batch")
	}
	return batch, nil
}
