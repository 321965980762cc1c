// Package favorites keeps the saved news of the current identity. Guests save into the
// local store; authenticated users save into their remote document. Lists never move
// between identities.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/session"
)

// ErrInvalidItem is returned when a toggled item has no id.
var ErrInvalidItem = errors.New("favorite item has no id")

// Store is one storage tier for a favorites list.
type Store interface {
	Load(ctx context.Context) ([]models.NewsRecord, error)
	Save(ctx context.Context, list []models.NewsRecord) error
}

// Manager selects the tier from the identity carried by the context.
type Manager struct {
	local  Store
	remote func(userID string) Store
	log    *slog.Logger
}

// NewManager creates a manager. remote may be nil, in which case every identity uses the
// local tier.
func NewManager(local Store, remote func(userID string) Store, log *slog.Logger) *Manager {
	return &Manager{local: local, remote: remote, log: logger.OrDiscard(log)}
}

func (m *Manager) storeFor(ctx context.Context) (Store, bool) {
	id := session.FromContext(ctx)
	if id.Authenticated() && m.remote != nil {
		return m.remote(id.UserID), true
	}
	return m.local, false
}

// List returns the favorites of the current identity. A failing remote read falls back to
// the local list.
func (m *Manager) List(ctx context.Context) ([]models.NewsRecord, error) {
	store, remote := m.storeFor(ctx)
	list, err := store.Load(ctx)
	if err == nil {
		return list, nil
	}
	if !remote {
		return nil, fmt.Errorf("load local favorites: %w", err)
	}

	m.log.Warn("remote favorites unavailable, using local list",
		slog.String("user", session.FromContext(ctx).String()),
		slog.Any("err", err),
	)
	list, err = m.local.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load local favorites: %w", err)
	}
	return list, nil
}

// Toggle removes item when a record with the same id is saved and prepends it otherwise.
// The updated list is written back to the tier it was read from and returned. Remote
// failures surface as models.ErrRemoteStore and nothing falls back to the local tier.
func (m *Manager) Toggle(ctx context.Context, item models.NewsRecord) ([]models.NewsRecord, error) {
	if item.ID == "" {
		return nil, ErrInvalidItem
	}

	store, remote := m.storeFor(ctx)
	current, err := store.Load(ctx)
	if err != nil {
		return nil, m.toggleError("load", remote, err)
	}

	updated := toggle(current, item)
	if err := store.Save(ctx, updated); err != nil {
		return nil, m.toggleError("save", remote, err)
	}
	return updated, nil
}

func (m *Manager) toggleError(action string, remote bool, err error) error {
	if remote {
		if !errors.Is(err, models.ErrRemoteStore) {
			err = fmt.Errorf("%w: %w", models.ErrRemoteStore, err)
		}
		return fmt.Errorf("%s remote favorites: %w", action, err)
	}
	return fmt.Errorf("%s local favorites: %w", action, err)
}

func toggle(list []models.NewsRecord, item models.NewsRecord) []models.NewsRecord {
	out := make([]models.NewsRecord, 0, len(list)+1)
	removed := false
	for _, r := range list {
		if r.ID == item.ID {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if removed {
		return out
	}
	return append([]models.NewsRecord{item}, out...)
}
