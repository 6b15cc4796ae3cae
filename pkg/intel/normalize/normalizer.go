package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

// Outcome classifies the result of normalizing one raw payload.
type Outcome int

const (
	// OutcomeSkip means the item is either invalid or already present
	// with unchanged engagement. Skips are counted, never errors.
	OutcomeSkip Outcome = iota
	// OutcomeNew means no item with this fingerprint exists yet.
	OutcomeNew
	// OutcomeUpdate means the fingerprint exists but engagement fields
	// changed, so the existing row should be updated in place.
	OutcomeUpdate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNew:
		return "new"
	case OutcomeUpdate:
		return "update"
	default:
		return "skip"
	}
}

type itemStore interface {
	// GetByFingerprint returns (nil, nil) when no such item exists.
	GetByFingerprint(ctx context.Context, fingerprint string) (*types.ContentItem, error)
}

// Normalizer converts heterogeneous source payloads into canonical
// content items and gates re-ingestion via fingerprint dedup.
type Normalizer struct {
	items  itemStore
	logger *zerolog.Logger
}

func NewNormalizer(items itemStore, logger *zerolog.Logger) *Normalizer {
	return &Normalizer{items: items, logger: logger}
}

// Normalize maps a raw payload to a content item, deciding whether it is
// new, an engagement update to an existing item, or a skip.
// For OutcomeUpdate the returned item carries the existing row's ID,
// creation time and previous scores.
func (n *Normalizer) Normalize(ctx context.Context, raw types.RawItem, source *types.ContentSource) (Outcome, *types.ContentItem, error) {
	if !hasText(raw) || raw.PublishedAt.IsZero() {
		n.logger.Debug().
			Str("url", raw.URL).
			Str("source", source.Name).
			Msg("Skipping item with missing mandatory fields")
		return OutcomeSkip, nil, nil
	}

	fingerprint := Fingerprint(raw)

	item := &types.ContentItem{
		SourceID:    source.ID,
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Body:        raw.Body,
		URL:         raw.URL,
		Fingerprint: fingerprint,
		Author:      raw.Author,
		ImageURL:    raw.ImageURL,
		PublishedAt: raw.PublishedAt,
		Likes:       raw.Likes,
		Comments:    raw.Comments,
		Shares:      raw.Shares,
	}
	item.Category = Categorize(item.SearchText())

	existing, err := n.items.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return OutcomeSkip, nil, fmt.Errorf("lookup fingerprint: %w", err)
	}

	if existing == nil {
		return OutcomeNew, item, nil
	}

	if sameEngagement(existing, item) {
		return OutcomeSkip, nil, nil
	}

	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	item.Scores = existing.Scores
	return OutcomeUpdate, item, nil
}

func hasText(raw types.RawItem) bool {
	return strings.TrimSpace(raw.Title) != "" ||
		strings.TrimSpace(raw.Description) != "" ||
		strings.TrimSpace(raw.Body) != ""
}

func sameEngagement(a, b *types.ContentItem) bool {
	return a.Likes == b.Likes && a.Comments == b.Comments && a.Shares == b.Shares
}

// maxHashedRunes bounds the text prefix fed into the fallback hash so
// trailing edits do not change an item's identity.
const maxHashedRunes = 256

// Fingerprint derives the stable dedup key for a raw payload: the
// canonical URL when one parses, else a hash of author, timestamp and a
// text prefix.
func Fingerprint(raw types.RawItem) string {
	if canon := CanonicalURL(raw.URL); canon != "" {
		return canon
	}

	text := raw.Title + " " + raw.Description + " " + raw.Body
	runes := []rune(text)
	if len(runes) > maxHashedRunes {
		runes = runes[:maxHashedRunes]
	}

	h := sha256.New()
	h.Write([]byte(raw.Author))
	h.Write([]byte(raw.PublishedAt.UTC().Format(time.RFC3339)))
	h.Write([]byte(string(runes)))
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalURL strips the parts of a URL that vary between ingestions of
// the same article: scheme, query, fragment, "www." prefix and trailing
// slash. Returns "" when the input is not an absolute http(s) URL.
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(u.Path, "/")

	return host + path
}
