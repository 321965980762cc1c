package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/manga-pulse/internal/logger"
)

// Indices names the indices the client works with.
type Indices struct {
	News      string
	Users     string
	Blacklist string
}

// Client wraps go-elasticsearch with helpers tailored to this project. It is the remote
// document store for per-user favorites and the shared blacklist, and holds the news archive.
type Client struct {
	es      *elasticsearch.Client
	indices Indices
	log     *slog.Logger
}

// New instantiates the Elasticsearch client.
func New(addr string, indices Indices, log *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if indices.News == "" {
		indices.News = "news"
	}
	if indices.Users == "" {
		indices.Users = "users"
	}
	if indices.Blacklist == "" {
		indices.Blacklist = "blacklist"
	}

	return &Client{es: es, indices: indices, log: logger.OrDiscard(log)}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

// Health asks for cluster health to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("cluster health bad: %s", readError(res))
	}
	return nil
}

func readError(res *esapi.Response) string {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return strings.TrimSpace(string(data))
}

func decode(res *esapi.Response, dst any) error {
	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
