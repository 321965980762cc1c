// Package news serves feeds: cached when fresh, otherwise fetched from the generative
// search provider, normalized and filtered against the blacklist.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DeafMist/manga-pulse/internal/blacklist"
	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/processing"
	"github.com/DeafMist/manga-pulse/internal/provider"
)

// DefaultCandidates is how many items the provider is asked for.
const DefaultCandidates = 6

// Cache is the per-topic news cache.
type Cache interface {
	Get(ctx context.Context, topic string) ([]models.NewsRecord, bool)
	Set(ctx context.Context, topic string, records []models.NewsRecord) error
	Clear(ctx context.Context) error
}

// Blacklist yields the effective set of banned titles.
type Blacklist interface {
	List(ctx context.Context) blacklist.Set
}

// Generator runs one grounded generation call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (provider.Response, error)
}

// Favorites lists the current identity's saved news.
type Favorites interface {
	List(ctx context.Context) ([]models.NewsRecord, error)
}

// Publisher receives every fresh batch.
type Publisher interface {
	Publish(ctx context.Context, topic string, fetchedAt time.Time, records []models.NewsRecord) error
}

// Service orchestrates feed requests.
type Service struct {
	cache      Cache
	blacklist  Blacklist
	generator  Generator
	favorites  Favorites
	publisher  Publisher
	candidates int
	now        func() time.Time
	log        *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher forwards fresh batches to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCandidates sets how many items each provider call asks for.
func WithCandidates(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candidates = n
		}
	}
}

// WithClock overrides the time source used for record ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the orchestrator.
func NewService(cache Cache, bl Blacklist, gen Generator, favs Favorites, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cache:      cache,
		blacklist:  bl,
		generator:  gen,
		favorites:  favs,
		candidates: DefaultCandidates,
		now:        time.Now,
		log:        logger.OrDiscard(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feed returns the list for a category. The favorites category reads the favorites
// manager and never touches the cache or the provider. An empty category means headlines.
func (s *Service) Feed(ctx context.Context, category string) ([]models.NewsRecord, error) {
	if strings.TrimSpace(category) == "" {
		category = CategoryHeadlines
	}
	if category == CategoryFavorites {
		return s.favorites.List(ctx)
	}
	return s.FetchNews(ctx, category)
}

// FetchNews returns the news for topic. A provider failure is returned as
// models.ErrProvider; an answer without usable items is an empty list and no error.
func (s *Service) FetchNews(ctx context.Context, topic string) ([]models.NewsRecord, error) {
	if cached, ok := s.cache.Get(ctx, topic); ok {
		return blacklist.Filter(cached, s.blacklist.List(ctx)), nil
	}

	fetchedAt := s.now()
	resp, err := s.generator.Generate(ctx, Prompt(topic, s.candidates))
	if err != nil {
		if !errors.Is(err, models.ErrProvider) {
			err = fmt.Errorf("%w: %w", models.ErrProvider, err)
		}
		s.log.Error("provider call failed", slog.String("topic", topic), slog.Any("err", err))
		return nil, err
	}

	candidates, err := processing.ParseCandidates(resp.Text)
	if err != nil {
		s.log.Warn("provider answer unusable", slog.String("topic", topic), slog.Any("err", err))
		return []models.NewsRecord{}, nil
	}

	records := processing.BuildRecords(candidates, fetchedAt, resp.References)
	filtered := blacklist.Filter(records, s.blacklist.List(ctx))
	if len(filtered) == 0 {
		return filtered, nil
	}

	if err := s.cache.Set(ctx, topic, filtered); err != nil {
		s.log.Warn("cache write failed", slog.String("topic", topic), slog.Any("err", err))
	}
	s.publish(ctx, topic, fetchedAt, filtered)

	s.log.Info("news fetched",
		slog.String("topic", topic),
		slog.Int("candidates", len(candidates)),
		slog.Int("records", len(filtered)),
	)
	return filtered, nil
}

func (s *Service) publish(ctx context.Context, topic string, fetchedAt time.Time, records []models.NewsRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, fetchedAt, records); err != nil {
		s.log.Warn("publish fetched batch", slog.String("topic", topic), slog.Any("err", err))
	}
}

// ClearCache drops every cached topic.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
