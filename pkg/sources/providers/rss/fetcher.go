package rss

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

const userAgent = "scout/1.0 (+https://github.com/scoutdeck/scout)"

// Fetcher pulls items from RSS/Atom feeds.
type Fetcher struct {
	logger *zerolog.Logger
}

func NewFetcher(logger *zerolog.Logger) *Fetcher {
	return &Fetcher{logger: logger}
}

func (f *Fetcher) Fetch(ctx context.Context, source *types.ContentSource, since time.Time) ([]types.RawItem, error) {
	if source.URL == "" {
		return nil, fmt.Errorf("rss source %q has no URL", source.Name)
	}

	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", source.URL, err)
	}

	items := make([]types.RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		published := publishedAt(item)
		if !since.IsZero() && !published.IsZero() && !published.After(since) {
			continue
		}

		items = append(items, types.RawItem{
			Title:       item.Title,
			Description: item.Description,
			Body:        item.Content,
			URL:         item.Link,
			Author:      authorName(item),
			ImageURL:    imageURL(item),
			PublishedAt: published,
		})
	}

	return items, nil
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func authorName(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	if item.Author != nil {
		return item.Author.Name
	}
	return ""
}

// imageURL tries the item image, enclosures, then media extensions,
// mirroring how inconsistently feeds carry artwork.
func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			if url, ok := content.Attrs["url"]; ok && url != "" {
				return url
			}
		}
	}

	return ""
}
