package models

import "time"

// Source attributes a news record to where it came from.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// NewsRecord is a single news card. Field names match data already persisted by clients.
type NewsRecord struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Date     string   `json:"date"`
	Sources  []Source `json:"sources"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// CacheEntry is the stored form of a cached topic. Timestamp is in unix milliseconds.
type CacheEntry struct {
	Timestamp int64        `json:"timestamp"`
	Data      []NewsRecord `json:"data"`
}

// BlacklistEntry is the shared-store document for a banned title.
type BlacklistEntry struct {
	Title    string    `json:"title"`
	BannedBy string    `json:"bannedBy"`
	At       time.Time `json:"at"`
}

// ArchivedNews represents the canonical structure stored in the Elasticsearch archive.
type ArchivedNews struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
	Topic     string    `json:"topic"`
	Date      string    `json:"date"`
	Sources   []Source  `json:"sources"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Keywords  []string  `json:"keywords"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchedBatch is published after every fresh provider fetch.
type FetchedBatch struct {
	BatchID   string       `json:"batchId"`
	Topic     string       `json:"topic"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Records   []NewsRecord `json:"records"`
}
