// Package provider talks to the generative search backend that writes the news.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DeafMist/manga-pulse/internal/logger"
	"github.com/DeafMist/manga-pulse/internal/models"
)

// Response is the raw answer of one generation call.
type Response struct {
	Text       string
	References []models.Source
}

// Config configures the Gemini client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Gemini calls the generateContent endpoint with live Google Search grounding.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewGemini creates a client. Empty model and base URL fall back to defaults.
func NewGemini(cfg Config, log *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logger.OrDiscard(log),
	}, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type tool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// Generate sends prompt with web search enabled. Every failure wraps models.ErrProvider.
func (g *Gemini) Generate(ctx context.Context, prompt string) (Response, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("%w: marshal request: %w", models.ErrProvider, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%w: build request: %w", models.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	started := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: gemini request: %w", models.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Response{}, fmt.Errorf("%w: gemini %d: %s", models.ErrProvider, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %w", models.ErrProvider, err)
	}
	if len(gr.Candidates) == 0 {
		return Response{}, fmt.Errorf("%w: empty gemini response", models.ErrProvider)
	}

	first := gr.Candidates[0]
	var sb strings.Builder
	for _, p := range first.Content.Parts {
		sb.WriteString(p.Text)
	}

	refs := make([]models.Source, 0, len(first.GroundingMetadata.GroundingChunks))
	for _, chunk := range first.GroundingMetadata.GroundingChunks {
		if chunk.Web == nil {
			refs = append(refs, models.Source{})
			continue
		}
		refs = append(refs, models.Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}

	g.log.Debug("gemini call finished",
		slog.String("model", g.model),
		slog.Int("text_len", sb.Len()),
		slog.Int("references", len(refs)),
		slog.Duration("took", time.Since(started)),
	)

	return Response{Text: sb.String(), References: refs}, nil
}
