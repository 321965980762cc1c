package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/manga-pulse/internal/models"
)

type stubWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishRoundTrip(t *testing.T) {
	w := &stubWriter{}
	p := newPublisher(w, nil)
	p.newID = func() string { return "batch-1" }

	fetchedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	records := []models.NewsRecord{{ID: "news-1-0", Title: "Frieren saison 2", Tags: []string{"Anime"},
		Sources: []models.Source{{Title: "Source Directe", URI: "https://a"}}}}

	require.NoError(t, p.Publish(context.Background(), "Saison Anime Actuelle", fetchedAt, records))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "Saison Anime Actuelle", string(msg.Key))
	require.Equal(t, "batch-1", string(msg.Headers[0].Value))

	batch, err := Decode(msg)
	require.NoError(t, err)
	require.Equal(t, "batch-1", batch.BatchID)
	require.True(t, fetchedAt.Equal(batch.FetchedAt))
	require.Equal(t, records, batch.Records)

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestPublishSkipsEmptyBatch(t *testing.T) {
	w := &stubWriter{}
	require.NoError(t, newPublisher(w, nil).Publish(context.Background(), "x", time.Now(), nil))
	require.Empty(t, w.msgs)
}

func TestPublishWrapsWriterError(t *testing.T) {
	w := &stubWriter{err: errors.New("broker down")}
	err := newPublisher(w, nil).Publish(context.Background(), "x", time.Now(), []models.NewsRecord{{ID: "1"}})
	require.ErrorContains(t, err, "broker down")
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(kafka.Message{Value: []byte("not json")})
	require.Error(t, err)

	_, err = Decode(kafka.Message{Value: []byte(`{}`)})
	require.Error(t, err)
}
