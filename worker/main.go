package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/manga-pulse/internal/config"
	"github.com/DeafMist/manga-pulse/internal/dedupe"
	"github.com/DeafMist/manga-pulse/internal/elasticsearch"
	"github.com/DeafMist/manga-pulse/internal/events"
	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/processing"
)

type newsIndexer interface {
	IndexNews(ctx context.Context, doc models.ArchivedNews) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, elasticsearch.Indices{News: cfg.ElasticsearchIndex}, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// sendToDLQ retries with exponential backoff and reports whether the write succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, w *kafka.Writer, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := 0; attempt < 5; attempt++ {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

// processMessage archives every record of one fetched batch. Records already archived
// within the dedupe window are skipped. The first indexing error aborts the batch; records
// indexed before it are remembered so a redelivery does not index them twice.
func processMessage(ctx context.Context, log *slog.Logger, idx newsIndexer, cache *dedupe.Cache, cfg *config.Worker, msg kafka.Message) error {
	batch, err := events.Decode(msg)
	if err != nil {
		return err
	}

	fetchedAt := batch.FetchedAt.UTC()
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	indexed := 0
	for _, record := range batch.Records {
		doc := archiveDocument(batch.Topic, fetchedAt, record, cfg)
		if cache.IsSeen(doc.ID) {
			log.Debug("duplicate news", slog.String("id", doc.ID))
			continue
		}

		if err := idx.IndexNews(ctx, doc); err != nil {
			return fmt.Errorf("index %s: %w", doc.ID, err)
		}
		cache.MarkSeen(doc.ID)
		indexed++
	}

	log.Info("batch archived",
		slog.String("batch_id", batch.BatchID),
		slog.String("topic", batch.Topic),
		slog.Int("records", len(batch.Records)),
		slog.Int("indexed", indexed),
	)
	return nil
}

func archiveDocument(topic string, fetchedAt time.Time, r models.NewsRecord, cfg *config.Worker) models.ArchivedNews {
	title := strings.TrimSpace(r.Title)
	summary := processing.CleanText(r.Summary)
	keywords := processing.ExtractKeywords(title+" "+summary+" "+strings.Join(r.Tags, " "), cfg.KeywordLimit, cfg.KeywordMinLength)

	id := ""
	if title != "" || summary != "" {
		id = processing.BuildDocumentID(title, summary)
	}
	if id == "" {
		id = uuid.NewString()
	}

	return models.ArchivedNews{
		ID:        id,
		Title:     title,
		Summary:   r.Summary,
		Tags:      r.Tags,
		Topic:     topic,
		Date:      r.Date,
		Sources:   r.Sources,
		ImageURL:  r.ImageURL,
		Keywords:  keywords,
		Timestamp: fetchedAt,
	}
}
