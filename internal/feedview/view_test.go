package feedview_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/manga-pulse/internal/favorites"
	"github.com/DeafMist/manga-pulse/internal/feedview"
	"github.com/DeafMist/manga-pulse/internal/kvstore"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/news"
	"github.com/DeafMist/manga-pulse/internal/session"
)

type memDocs struct {
	lists map[string][]models.NewsRecord
}

func (d *memDocs) GetFavorites(_ context.Context, uid string) ([]models.NewsRecord, error) {
	return append([]models.NewsRecord(nil), d.lists[uid]...), nil
}

func (d *memDocs) PutFavorites(_ context.Context, uid string, list []models.NewsRecord) error {
	d.lists[uid] = append([]models.NewsRecord(nil), list...)
	return nil
}

type feeds struct {
	favs     feedview.Favorites
	headline []models.NewsRecord
}

func (f *feeds) Feed(ctx context.Context, category string) ([]models.NewsRecord, error) {
	if category == news.CategoryFavorites {
		return f.favs.List(ctx)
	}
	return f.headline, nil
}

// hookedFavorites runs during inside Toggle, before the result is returned.
type hookedFavorites struct {
	feedview.Favorites
	during func()
	err    error
}

func (h *hookedFavorites) Toggle(ctx context.Context, item models.NewsRecord) ([]models.NewsRecord, error) {
	if h.during != nil {
		h.during()
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.Favorites.Toggle(ctx, item)
}

func rec(id string) models.NewsRecord {
	return models.NewsRecord{ID: id, Title: "title " + id}
}

func ids(list []models.NewsRecord) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

func setup(t *testing.T) (*favorites.Manager, *memDocs) {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	docs := &memDocs{lists: map[string][]models.NewsRecord{
		"u-1": {rec("remote-1"), rec("remote-2")},
	}}
	return favorites.NewManager(favorites.NewLocalStore(kv), favorites.Remote(docs), nil), docs
}

func TestIdentityChangesRefreshFavoritesView(t *testing.T) {
	favs, _ := setup(t)
	tracker := session.NewTracker()
	view := feedview.New(&feeds{favs: favs}, favs, tracker, nil)
	ctx := context.Background()

	_, err := favs.Toggle(ctx, rec("guest-1"))
	require.NoError(t, err)

	tracker.SignIn("u-1")
	list, err := view.Show(ctx, news.CategoryFavorites)
	require.NoError(t, err)
	require.Equal(t, []string{"remote-1", "remote-2"}, ids(list))

	tracker.SignOut()
	require.Equal(t, []string{"guest-1"}, ids(view.Items()))

	tracker.SignIn("u-2")
	require.Empty(t, view.Items())
	require.Equal(t, news.CategoryFavorites, view.Category())
}

func TestIdentityChangeOutsideFavoritesKeepsVisibleList(t *testing.T) {
	favs, _ := setup(t)
	tracker := session.NewTracker()
	view := feedview.New(&feeds{favs: favs, headline: []models.NewsRecord{rec("h-1")}}, favs, tracker, nil)

	_, err := view.Show(context.Background(), news.CategoryHeadlines)
	require.NoError(t, err)

	tracker.SignIn("u-1")
	require.Equal(t, []string{"h-1"}, ids(view.Items()))
	require.True(t, view.IsSaved("remote-1"))
}

func TestToggleIsOptimisticThenConfirmed(t *testing.T) {
	favs, docs := setup(t)
	tracker := session.NewTracker()
	tracker.SignIn("u-1")

	hooked := &hookedFavorites{Favorites: favs}
	view := feedview.New(&feeds{favs: favs}, hooked, tracker, nil)
	ctx := context.Background()

	_, err := view.Show(ctx, news.CategoryFavorites)
	require.NoError(t, err)

	var during []string
	hooked.during = func() { during = ids(view.Items()) }

	confirmed, err := view.Toggle(ctx, rec("new"))
	require.NoError(t, err)
	require.Equal(t, []string{"new", "remote-1", "remote-2"}, during)
	require.Equal(t, []string{"new", "remote-1", "remote-2"}, ids(confirmed))
	require.Equal(t, ids(confirmed), ids(docs.lists["u-1"]))
	require.True(t, view.IsSaved("new"))
}

func TestFailedToggleReverts(t *testing.T) {
	favs, _ := setup(t)
	tracker := session.NewTracker()
	tracker.SignIn("u-1")

	hooked := &hookedFavorites{Favorites: favs, err: models.ErrRemoteStore}
	view := feedview.New(&feeds{favs: favs}, hooked, tracker, nil)
	ctx := context.Background()

	_, err := view.Show(ctx, news.CategoryFavorites)
	require.NoError(t, err)

	var during []string
	hooked.during = func() { during = ids(view.Items()) }

	_, err = view.Toggle(ctx, rec("remote-1"))
	require.True(t, errors.Is(err, models.ErrRemoteStore))
	require.Equal(t, []string{"remote-2"}, during)
	require.Equal(t, []string{"remote-1", "remote-2"}, ids(view.Items()))
}
