package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/manga-pulse/internal/blacklist"
	"github.com/DeafMist/manga-pulse/internal/config"
	"github.com/DeafMist/manga-pulse/internal/elasticsearch"
	"github.com/DeafMist/manga-pulse/internal/favorites"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/news"
	"github.com/DeafMist/manga-pulse/internal/session"
)

type feedService interface {
	Feed(ctx context.Context, category string) ([]models.NewsRecord, error)
	ClearCache(ctx context.Context) error
}

type favoritesManager interface {
	List(ctx context.Context) ([]models.NewsRecord, error)
	Toggle(ctx context.Context, item models.NewsRecord) ([]models.NewsRecord, error)
}

type blacklistManager interface {
	List(ctx context.Context) blacklist.Set
	Add(ctx context.Context, title string) error
}

type archiveSearcher interface {
	SearchNews(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type server struct {
	log       *slog.Logger
	cfg       *config.API
	verifier  *session.Verifier
	news      feedService
	favorites favoritesManager
	blacklist blacklistManager
	archive   archiveSearcher
	health    healthChecker
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/news", s.handleNews)
		r.Delete("/cache", s.handleClearCache)
		r.Get("/favorites", s.handleFavorites)
		r.Post("/favorites/toggle", s.handleToggleFavorite)
		r.Get("/blacklist", s.handleBlacklist)
		r.Post("/blacklist", s.handleBan)
		r.Get("/archive", s.handleArchive)
	})
	return r
}

// identity resolves the bearer token into the request context. No token is a guest.
func (s *server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.FromAuthorization(r.Header.Get("Authorization"))
		if err != nil {
			s.log.Debug("rejected session token", slog.Any("err", err))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid session token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health.Health(ctx); err != nil {
		s.log.Warn("health check failed", slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "remote store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	if topic == "" {
		topic = news.CategoryHeadlines
	}

	list, err := s.news.Feed(r.Context(), topic)
	if err != nil {
		s.writeError(w, "load feed", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.news.ClearCache(r.Context()); err != nil {
		s.writeError(w, "clear cache", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	list, err := s.favorites.List(r.Context())
	if err != nil {
		s.writeError(w, "list favorites", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var item models.NewsRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&item); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid news item"})
		return
	}

	list, err := s.favorites.Toggle(r.Context(), item)
	if err != nil {
		s.writeError(w, "toggle favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.blacklist.List(r.Context()).Sorted())
}

func (s *server) handleBan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid body"})
		return
	}

	if err := s.blacklist.Add(r.Context(), body.Title); err != nil {
		s.writeError(w, "add blacklist entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "archive unavailable"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query: strings.TrimSpace(q.Get("q")),
		Tags:  parseCSV(q.Get("tags")),
		Topic: strings.TrimSpace(q.Get("topic")),
		From:  clampInt(q.Get("from"), 0, 10_000),
		Size:  clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:  strings.TrimSpace(q.Get("sort")),
		Start: parseTime(q.Get("start")),
		End:   parseTime(q.Get("end")),
	}

	result, err := s.archive.SearchNews(ctx, params)
	if err != nil {
		s.writeError(w, "search archive", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeError maps domain errors to statuses. Details stay in the log.
func (s *server) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, models.ErrProvider):
		s.log.Warn(action, slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: models.ErrProvider.Error(), Retryable: true})
	case errors.Is(err, favorites.ErrInvalidItem), errors.Is(err, blacklist.ErrEmptyTitle):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrRemoteStore):
		s.log.Warn(action, slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: models.ErrRemoteStore.Error(), Retryable: true})
	default:
		s.log.Error(action, slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func nonNil(list []models.NewsRecord) []models.NewsRecord {
	if list == nil {
		return []models.NewsRecord{}
	}
	return list
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
