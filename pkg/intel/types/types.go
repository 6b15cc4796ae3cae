package types

import (
	"strings"
	"time"
)

type SourceType string

const (
	SourceTypeRSS     SourceType = "rss"
	SourceTypeNewsAPI SourceType = "newsapi"
)

// ContentSource is an administratively configured ingestion endpoint.
// Its workspace associations live in the workspace_sources join table.
type ContentSource struct {
	ID             int64
	Name           string     `validate:"required"`
	Type           SourceType `validate:"required,oneof=rss newsapi"`
	URL            string
	Query          string
	Language       string
	Enabled        bool
	FetchFrequency time.Duration
	LastFetchedAt  time.Time
	CreatedAt      time.Time
}

// RawItem is a payload as returned by a source fetcher, before
// normalization and deduplication.
type RawItem struct {
	Title       string
	Description string
	Body        string
	URL         string
	Author      string
	ImageURL    string
	PublishedAt time.Time
	Likes       int
	Comments    int
	Shares      int
}

// TopicScore is a single (topic, relevance) pair attached to a content item.
type TopicScore struct {
	TopicID int64   `json:"topic_id"`
	Score   float64 `json:"score"`
}

// ContentItem is a normalized, deduplicated article.
// The fingerprint is unique across the corpus; re-ingestion of the same
// fingerprint updates engagement fields and scores, never inserts a row.
type ContentItem struct {
	ID          int64
	SourceID    int64
	ProfileID   int64
	Title       string
	Description string
	Body        string
	URL         string
	Fingerprint string
	Author      string
	ImageURL    string
	Category    string
	PublishedAt time.Time
	CreatedAt   time.Time
	Likes       int
	Comments    int
	Shares      int
	// Scores is ordered by score descending, ties by topic id ascending.
	Scores []TopicScore
}

// SearchText is the text surface used for keyword matching and embeddings.
func (i *ContentItem) SearchText() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{i.Title, i.Description, i.Body} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// BestScore returns the highest topic relevance, or 0 when unscored.
func (i *ContentItem) BestScore() float64 {
	if len(i.Scores) == 0 {
		return 0
	}
	return i.Scores[0].Score
}

// TopScore returns the highest (topic, score) pair, if any.
func (i *ContentItem) TopScore() (TopicScore, bool) {
	if len(i.Scores) == 0 {
		return TopicScore{}, false
	}
	return i.Scores[0], true
}

type TopicType string

const (
	TopicTypeIndustry   TopicType = "industry"
	TopicTypeTechnology TopicType = "technology"
	TopicTypeEventType  TopicType = "event_type"
	TopicTypeKeyword    TopicType = "keyword"
)

// Topic defines what a workspace tracks: a named, keyworded subject.
type Topic struct {
	ID          int64
	Name        string    `validate:"required"`
	Type        TopicType `validate:"required,oneof=industry technology event_type keyword"`
	Keywords    []string  `validate:"required,min=1"`
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank gives priorities a total order, critical highest.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Signal is a prioritized, acknowledgeable alert derived from scored content.
// At most one signal exists per (item, workspace) pair.
type Signal struct {
	ID             int64
	Kind           string
	Title          string
	Description    string
	Priority       Priority
	WorkspaceID    int64
	ItemID         int64
	TopicID        int64
	DetectedAt     time.Time
	Acknowledged   bool
	AcknowledgedAt time.Time
}

// RunError records a per-source failure inside an aggregation run.
type RunError struct {
	Source  string
	Message string
}

// RunSummary is the terminal state of one aggregation run.
// Partial success is the normal outcome, not a failure.
type RunSummary struct {
	RunID          string
	ItemsProcessed int
	ItemsSkipped   int
	ItemsUpdated   int
	SignalsEmitted int
	Errors         []RunError
	StartedAt      time.Time
	Duration       time.Duration
}

// DefaultMinRelevanceScore is the feed threshold applied when a query
// does not set one. Items whose best topic score falls below it are
// hidden from the default feed view.
const DefaultMinRelevanceScore = 0.6

// ItemQuery parameterizes the article feed.
// MinRelevanceScore is a read-time filter over the best topic score:
// zero means DefaultMinRelevanceScore, negative disables the filter.
type ItemQuery struct {
	WorkspaceID       int64
	ProfileID         int64
	Category          string
	TopicIDs          []int64
	MinRelevanceScore float64
	Limit             int
	Offset            int
}

// EffectiveMinScore resolves the threshold actually applied: the default
// when unset, none when explicitly negative.
func (q ItemQuery) EffectiveMinScore() float64 {
	if q.MinRelevanceScore == 0 {
		return DefaultMinRelevanceScore
	}
	if q.MinRelevanceScore < 0 {
		return 0
	}
	return q.MinRelevanceScore
}

type ItemPage struct {
	Items []*ContentItem
	Total int
}
