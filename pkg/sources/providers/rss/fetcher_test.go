package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>First story</title>
      <description>Something happened.</description>
      <link>https://example.com/first</link>
      <pubDate>Mon, 02 Mar 2026 10:00:00 GMT</pubDate>
      <author>jane@example.com (Jane Doe)</author>
      <enclosure url="https://example.com/first.jpg" type="image/jpeg" length="1000"/>
    </item>
    <item>
      <title>Old story</title>
      <link>https://example.com/old</link>
      <pubDate>Sun, 01 Feb 2026 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>No link, dropped</title>
      <pubDate>Mon, 02 Mar 2026 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer server.Close()

	logger := zerolog.Nop()
	fetcher := NewFetcher(&logger)
	source := &types.ContentSource{ID: 1, Name: "Test Feed", Type: types.SourceTypeRSS, URL: server.URL}

	t.Run("maps feed items", func(t *testing.T) {
		items, err := fetcher.Fetch(context.Background(), source, time.Time{})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("got %d items, want 2 (linkless item dropped)", len(items))
		}

		first := items[0]
		if first.Title != "First story" {
			t.Errorf("title = %q", first.Title)
		}
		if first.URL != "https://example.com/first" {
			t.Errorf("url = %q", first.URL)
		}
		if first.ImageURL != "https://example.com/first.jpg" {
			t.Errorf("image url = %q, want the enclosure", first.ImageURL)
		}
		if first.PublishedAt.IsZero() {
			t.Error("published timestamp missing")
		}
	})

	t.Run("since cursor drops older items", func(t *testing.T) {
		since := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
		items, err := fetcher.Fetch(context.Background(), source, since)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("got %d items, want 1", len(items))
		}
		if items[0].Title != "First story" {
			t.Errorf("kept %q, want First story", items[0].Title)
		}
	})

	t.Run("missing URL is an error", func(t *testing.T) {
		_, err := fetcher.Fetch(context.Background(), &types.ContentSource{Name: "Broken"}, time.Time{})
		if err == nil {
			t.Error("expected an error for a source without a URL")
		}
	})
}
