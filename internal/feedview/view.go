// Package feedview holds the state one client session shows: the active category, the
// visible list and the saved list, kept in step with sign-in and sign-out.
package feedview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/news"
	"github.com/DeafMist/manga-pulse/internal/session"
)

// Feeds loads the list of a category.
type Feeds interface {
	Feed(ctx context.Context, category string) ([]models.NewsRecord, error)
}

// Favorites is the favorites manager as seen by the view.
type Favorites interface {
	List(ctx context.Context) ([]models.NewsRecord, error)
	Toggle(ctx context.Context, item models.NewsRecord) ([]models.NewsRecord, error)
}

// View is the state of a single session.
type View struct {
	feeds   Feeds
	favs    Favorites
	tracker *session.Tracker
	log     *slog.Logger

	mu       sync.Mutex
	category string
	items    []models.NewsRecord
	saved    []models.NewsRecord
}

// New creates a view bound to tracker. Identity changes refresh the saved list.
func New(feeds Feeds, favs Favorites, tracker *session.Tracker, log *slog.Logger) *View {
	v := &View{
		feeds:    feeds,
		favs:     favs,
		tracker:  tracker,
		log:      logger.OrDiscard(log),
		category: news.CategoryHeadlines,
	}
	tracker.Subscribe(func(id session.Identity) {
		v.OnIdentityChange(context.Background(), id)
	})
	return v
}

// Category is the active category.
func (v *View) Category() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.category
}

// Items is the visible list.
func (v *View) Items() []models.NewsRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.NewsRecord(nil), v.items...)
}

// Saved is the last known favorites list.
func (v *View) Saved() []models.NewsRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.NewsRecord(nil), v.saved...)
}

// IsSaved reports whether id is in the saved list.
func (v *View) IsSaved(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return indexOf(v.saved, id) >= 0
}

// Show switches to category and loads its list. On error the previous list stays visible.
func (v *View) Show(ctx context.Context, category string) ([]models.NewsRecord, error) {
	ctx = v.tracker.Context(ctx)
	list, err := v.feeds.Feed(ctx, category)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.category = category
	v.items = list
	if category == news.CategoryFavorites {
		v.saved = list
	}
	return append([]models.NewsRecord(nil), list...), nil
}

// Toggle flips item in the saved list right away, then replaces that guess with the
// list the favorites manager confirms. A failed toggle restores the previous state.
func (v *View) Toggle(ctx context.Context, item models.NewsRecord) ([]models.NewsRecord, error) {
	ctx = v.tracker.Context(ctx)

	v.mu.Lock()
	prevSaved, prevItems := v.saved, v.items
	v.applyLocked(optimistic(v.saved, item))
	v.mu.Unlock()

	confirmed, err := v.favs.Toggle(ctx, item)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.saved, v.items = prevSaved, prevItems
		v.log.Warn("toggle favorite failed", slog.String("id", item.ID), slog.Any("err", err))
		return nil, err
	}
	v.applyLocked(confirmed)
	return append([]models.NewsRecord(nil), confirmed...), nil
}

// OnIdentityChange reloads the saved list for id and shows it when the favorites
// category is active.
func (v *View) OnIdentityChange(ctx context.Context, id session.Identity) {
	list, err := v.favs.List(session.WithIdentity(ctx, id))
	if err != nil {
		v.log.Warn("reload favorites after identity change", slog.String("user", id.String()), slog.Any("err", err))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.applyLocked(list)
}

func (v *View) applyLocked(saved []models.NewsRecord) {
	v.saved = saved
	if v.category == news.CategoryFavorites {
		v.items = saved
	}
}

func optimistic(list []models.NewsRecord, item models.NewsRecord) []models.NewsRecord {
	if i := indexOf(list, item.ID); i >= 0 {
		out := make([]models.NewsRecord, 0, len(list)-1)
		out = append(out, list[:i]...)
		return append(out, list[i+1:]...)
	}
	return append([]models.NewsRecord{item}, list...)
}

func indexOf(list []models.NewsRecord, id string) int {
	for i, r := range list {
		if r.ID == id {
			return i
		}
	}
	return -1
}
