// Package blacklist keeps the titles an admin banned from every feed. Bans live in two
// tiers: a local copy written immediately and a shared copy in the remote store. The tiers
// are allowed to diverge.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/processing"
	"github.com/DeafMist/manga-pulse/internal/session"
)

// LocalKey is the local store key holding the JSON array of banned titles.
const LocalKey = "blacklist"

// ErrEmptyTitle is returned when Add receives a blank title.
var ErrEmptyTitle = errors.New("blacklist title is empty")

// LocalStore is the subset of the local key-value store the manager needs.
type LocalStore interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}

// SharedStore is the remote blacklist collection.
type SharedStore interface {
	ListBlacklist(ctx context.Context) ([]string, error)
	PutBlacklistEntry(ctx context.Context, id string, entry models.BlacklistEntry) error
}

// Set is a set of banned titles. Matching is exact.
type Set map[string]struct{}

// NewSet builds a set from titles.
func NewSet(titles ...string) Set {
	s := make(Set, len(titles))
	for _, t := range titles {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether title is banned.
func (s Set) Has(title string) bool {
	_, ok := s[title]
	return ok
}

// Sorted returns the titles in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Manager reads and writes both tiers.
type Manager struct {
	local  LocalStore
	shared SharedStore
	now    func() time.Time
	log    *slog.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithShared enables the shared tier.
func WithShared(shared SharedStore) Option {
	return func(m *Manager) { m.shared = shared }
}

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager over the local store.
func NewManager(local LocalStore, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{local: local, now: time.Now, log: logger.OrDiscard(log)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns the effective blacklist: the shared copy when it is reachable and not
// empty, otherwise the local copy. It never fails; unreadable tiers count as empty.
func (m *Manager) List(ctx context.Context) Set {
	if m.shared != nil {
		titles, err := m.shared.ListBlacklist(ctx)
		switch {
		case err != nil:
			// readers without admin rights are routinely refused
			m.log.Debug("shared blacklist unavailable", slog.Any("err", err))
		case len(titles) > 0:
			return NewSet(titles...)
		}
	}

	titles, err := m.localTitles(ctx)
	if err != nil {
		m.log.Warn("read local blacklist", slog.Any("err", err))
		return Set{}
	}
	return NewSet(titles...)
}

// Add bans title. The local copy is updated first and is not rolled back if the shared
// write fails. The shared entry is written only for authenticated sessions.
func (m *Manager) Add(ctx context.Context, title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}

	titles, err := m.localTitles(ctx)
	if err != nil {
		m.log.Warn("local blacklist unreadable, starting over", slog.Any("err", err))
		titles = nil
	}
	if !NewSet(titles...).Has(title) {
		titles = append(titles, title)
		if err := m.local.SetJSON(ctx, LocalKey, titles); err != nil {
			return fmt.Errorf("save local blacklist: %w", err)
		}
	}

	id := session.FromContext(ctx)
	if m.shared == nil || !id.Authenticated() {
		return nil
	}

	entry := models.BlacklistEntry{Title: title, BannedBy: id.UserID, At: m.now().UTC()}
	if err := m.shared.PutBlacklistEntry(ctx, processing.BlacklistID(title), entry); err != nil {
		m.log.Warn("shared blacklist write failed",
			slog.String("title", title),
			slog.String("user", id.String()),
			slog.Any("err", err),
		)
	}
	return nil
}

func (m *Manager) localTitles(ctx context.Context) ([]string, error) {
	var titles []string
	if _, err := m.local.GetJSON(ctx, LocalKey, &titles); err != nil {
		return nil, err
	}
	return titles, nil
}

// Filter drops records whose title is banned. The input slice is not modified.
func Filter(records []models.NewsRecord, banned Set) []models.NewsRecord {
	out := make([]models.NewsRecord, 0, len(records))
	for _, r := range records {
		if banned.Has(r.Title) {
			continue
		}
		out = append(out, r)
	}
	return out
}
