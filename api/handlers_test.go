package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/manga-pulse/internal/blacklist"
	"github.com/DeafMist/manga-pulse/internal/config"
	"github.com/DeafMist/manga-pulse/internal/elasticsearch"
	"github.com/DeafMist/manga-pulse/internal/favorites"
	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
	"github.com/DeafMist/manga-pulse/internal/session"
)

const testSecret = "test-secret"

type stubFeed struct {
	topics  []string
	list    []models.NewsRecord
	err     error
	cleared bool
}

func (f *stubFeed) Feed(_ context.Context, category string) ([]models.NewsRecord, error) {
	f.topics = append(f.topics, category)
	return f.list, f.err
}

func (f *stubFeed) ClearCache(context.Context) error {
	f.cleared = true
	return nil
}

type stubFavorites struct {
	identities []session.Identity
	err        error
}

func (f *stubFavorites) List(ctx context.Context) ([]models.NewsRecord, error) {
	f.identities = append(f.identities, session.FromContext(ctx))
	return nil, f.err
}

func (f *stubFavorites) Toggle(ctx context.Context, item models.NewsRecord) ([]models.NewsRecord, error) {
	f.identities = append(f.identities, session.FromContext(ctx))
	if f.err != nil {
		return nil, f.err
	}
	if item.ID == "" {
		return nil, favorites.ErrInvalidItem
	}
	return []models.NewsRecord{item}, nil
}

type stubBlacklist struct {
	titles []string
}

func (b *stubBlacklist) List(context.Context) blacklist.Set {
	return blacklist.NewSet(b.titles...)
}

func (b *stubBlacklist) Add(_ context.Context, title string) error {
	if strings.TrimSpace(title) == "" {
		return blacklist.ErrEmptyTitle
	}
	b.titles = append(b.titles, title)
	return nil
}

type stubArchive struct {
	params elasticsearch.SearchParams
}

func (a *stubArchive) SearchNews(_ context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error) {
	a.params = params
	return &elasticsearch.SearchResult{Total: 1, Items: []models.ArchivedNews{{ID: "h1", Title: "Frieren"}}}, nil
}

type testServer struct {
	feed    *stubFeed
	favs    *stubFavorites
	bl      *stubBlacklist
	handler http.Handler
}

func newTestServer(archive archiveSearcher) *testServer {
	ts := &testServer{feed: &stubFeed{}, favs: &stubFavorites{}, bl: &stubBlacklist{}}
	srv := &server{
		log:       logger.Discard(),
		cfg:       &config.API{DefaultPage: 20, MaxPage: 100},
		verifier:  session.NewVerifier(testSecret, ""),
		news:      ts.feed,
		favorites: ts.favs,
		blacklist: ts.bl,
	}
	if archive != nil {
		srv.archive = archive
	}
	ts.handler = srv.routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, subject string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func TestNewsDefaultsToHeadlinesAndReturnsEmptyArray(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/news", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
	require.Equal(t, []string{"À la une"}, ts.feed.topics)
}

func TestNewsPassesTopic(t *testing.T) {
	ts := newTestServer(nil)
	ts.feed.list = []models.NewsRecord{{ID: "news-1-0", Title: "A", Tags: []string{"Manga"}, Date: "Hier",
		Sources: []models.Source{{Title: "Source Directe", URI: "https://a"}}}}

	rec := ts.do(t, http.MethodGet, "/news?topic=Shonen+Jump+%26+Co", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"Shonen Jump & Co"}, ts.feed.topics)

	var list []models.NewsRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, ts.feed.list, list)
	require.NotContains(t, rec.Body.String(), "imageUrl")
}

func TestProviderFailureIsRetryable502(t *testing.T) {
	ts := newTestServer(nil)
	ts.feed.err = fmt.Errorf("%w: gemini 500: secret upstream detail", models.ErrProvider)

	rec := ts.do(t, http.MethodGet, "/news?topic=x", "", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"error":"news provider unavailable","retryable":true}`, rec.Body.String())
}

func TestInvalidTokenIsRejected(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/favorites", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, ts.favs.identities)
}

func TestFavoritesCarryIdentity(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/favorites", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/favorites/toggle", `{"id":"news-1-0","title":"A"}`, token(t, "u-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []session.Identity{session.Guest, session.User("u-1")}, ts.favs.identities)
}

func TestToggleErrors(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodPost, "/favorites/toggle", `{not json`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/favorites/toggle", `{"title":"no id"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	ts.favs.err = fmt.Errorf("save remote favorites: %w", models.ErrRemoteStore)
	rec = ts.do(t, http.MethodPost, "/favorites/toggle", `{"id":"a"}`, token(t, "u-1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"error":"remote store unavailable","retryable":true}`, rec.Body.String())
}

func TestBlacklistRoutes(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodPost, "/blacklist", `{"title":"Spoiler B"}`, "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodPost, "/blacklist", `{"title":"Spoiler A"}`, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, "/blacklist", `{"title":"  "}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/blacklist", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["Spoiler A","Spoiler B"]`, rec.Body.String())
}

func TestClearCache(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodDelete, "/cache", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, ts.feed.cleared)
}

func TestArchiveSearch(t *testing.T) {
	archive := &stubArchive{}
	ts := newTestServer(archive)

	rec := ts.do(t, http.MethodGet, "/archive?q=frieren&tags=Anime,+Seinen&size=500&start=2024-01-01T00:00:00Z&end=bad", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "frieren", archive.params.Query)
	require.Equal(t, []string{"Anime", "Seinen"}, archive.params.Tags)
	require.Equal(t, 100, archive.params.Size)
	require.NotNil(t, archive.params.Start)
	require.Nil(t, archive.params.End)

	var result elasticsearch.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.EqualValues(t, 1, result.Total)
}

func TestArchiveDisabled(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/archive?q=x", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthWithoutRemoteStore(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodGet, "/health", "", "garbage")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 20, clampInt("", 20, 100))
	require.Equal(t, 20, clampInt("abc", 20, 100))
	require.Equal(t, 20, clampInt("-5", 20, 100))
	require.Equal(t, 100, clampInt("500", 20, 100))
	require.Equal(t, 42, clampInt("42", 20, 100))
}
