package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

const defaultBaseURL = "https://newsdata.io/api/1/news"

type Config struct {
	APIKey  string        `env:"NEWSAPI_KEY"`
	BaseURL string        `env:"NEWSAPI_BASE_URL,default=https://newsdata.io/api/1/news"`
	Timeout time.Duration `env:"NEWSAPI_TIMEOUT,default=15s"`
}

// Fetcher pulls articles from the newsdata.io JSON API.
type Fetcher struct {
	cfg    *Config
	client *http.Client
	logger *zerolog.Logger
}

func NewFetcher(cfg *Config, logger *zerolog.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type apiResponse struct {
	Status  string       `json:"status"`
	Results []apiArticle `json:"results"`
}

type apiArticle struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Link        string   `json:"link"`
	PubDate     string   `json:"pubDate"`
	Creator     []string `json:"creator"`
	ImageURL    string   `json:"image_url"`
}

func (f *Fetcher) Fetch(ctx context.Context, source *types.ContentSource, since time.Time) ([]types.RawItem, error) {
	if f.cfg.APIKey == "" {
		return nil, fmt.Errorf("newsapi source %q requires an API key", source.Name)
	}

	params := url.Values{}
	params.Set("apikey", f.cfg.APIKey)
	if source.Query != "" {
		params.Set("q", source.Query)
	}
	language := source.Language
	if language == "" {
		language = "en"
	}
	params.Set("language", language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request news API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned %s", resp.Status)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "success" {
		return nil, fmt.Errorf("news API status %q", payload.Status)
	}

	items := make([]types.RawItem, 0, len(payload.Results))
	for _, article := range payload.Results {
		if article.Link == "" {
			continue
		}

		published := parsePubDate(article.PubDate)
		if !since.IsZero() && !published.IsZero() && !published.After(since) {
			continue
		}

		author := ""
		if len(article.Creator) > 0 {
			author = article.Creator[0]
		}

		items = append(items, types.RawItem{
			Title:       article.Title,
			Description: article.Description,
			Body:        article.Content,
			URL:         article.Link,
			Author:      author,
			ImageURL:    article.ImageURL,
			PublishedAt: published,
		})
	}

	return items, nil
}

var pubDateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parsePubDate(s string) time.Time {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
