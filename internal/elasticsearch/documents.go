package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/manga-pulse/internal/models"
)

// GetFavorites loads the favorites field of the user's document. A missing document or
// index is an empty list.
func (c *Client) GetFavorites(ctx context.Context, userID string) ([]models.NewsRecord, error) {
	res, err := c.es.Get(c.indices.Users, userID, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: get favorites: %w", models.ErrRemoteStore, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []models.NewsRecord{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: get favorites failed: %s", models.ErrRemoteStore, readError(res))
	}

	var parsed struct {
		Found  bool `json:"found"`
		Source struct {
			Favorites []models.NewsRecord `json:"favorites"`
		} `json:"_source"`
	}
	if err := decode(res, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRemoteStore, err)
	}
	if !parsed.Found || parsed.Source.Favorites == nil {
		return []models.NewsRecord{}, nil
	}
	return parsed.Source.Favorites, nil
}

// PutFavorites replaces the whole favorites field of the user's document, creating the
// document when needed. Other fields of the document are kept.
func (c *Client) PutFavorites(ctx context.Context, userID string, favorites []models.NewsRecord) error {
	if favorites == nil {
		favorites = []models.NewsRecord{}
	}
	payload, err := json.Marshal(map[string]any{
		"doc":           map[string]any{"favorites": favorites},
		"doc_as_upsert": true,
	})
	if err != nil {
		return fmt.Errorf("marshal favorites: %w", err)
	}

	res, err := c.es.Update(c.indices.Users, userID, bytes.NewReader(payload),
		c.es.Update.WithContext(ctx),
		c.es.Update.WithRetryOnConflict(3),
	)
	if err != nil {
		return fmt.Errorf("%w: put favorites: %w", models.ErrRemoteStore, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: put favorites failed: %s", models.ErrRemoteStore, readError(res))
	}
	return nil
}

// ListBlacklist returns the banned titles of the shared blacklist. Documents written
// without a title fall back to their id. A missing index is an empty list.
func (c *Client) ListBlacklist(ctx context.Context) ([]string, error) {
	payload, err := json.Marshal(map[string]any{
		"size":    10000,
		"query":   map[string]any{"match_all": map[string]any{}},
		"_source": []string{"title"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal blacklist query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indices.Blacklist),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list blacklist: %w", models.ErrRemoteStore, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: list blacklist failed: %s", models.ErrRemoteStore, readError(res))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source struct {
					Title string `json:"title"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := decode(res, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRemoteStore, err)
	}

	titles := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		title := hit.Source.Title
		if title == "" {
			title = hit.ID
		}
		titles = append(titles, title)
	}
	return titles, nil
}

// PutBlacklistEntry writes one shared blacklist document. Writing the same id again
// overwrites it, which is what makes repeated bans idempotent.
func (c *Client) PutBlacklistEntry(ctx context.Context, id string, entry models.BlacklistEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal blacklist entry: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.indices.Blacklist,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("%w: put blacklist entry: %w", models.ErrRemoteStore, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: put blacklist entry failed: %s", models.ErrRemoteStore, readError(res))
	}

	c.log.Debug("blacklist entry stored", slog.String("id", id))
	return nil
}
