package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

// Signal kinds form a closed set; extension means adding a rule variant
// here, not interpreting configuration.
const (
	KindHighRelevance   = "high_relevance"
	KindMajorFunding    = "major_funding"
	KindHiringSpike     = "hiring_spike"
	KindVolumeSpike     = "volume_spike"
	KindCriticalKeyword = "critical_keyword"
)

// Input is one scored item in the context the rules need: the workspaces
// the item landed in and the topics it was scored against.
type Input struct {
	Item         *types.ContentItem
	WorkspaceIDs []int64
	Topics       []*types.Topic
}

// Draft is a rule's proposal before per-(item, workspace) merging.
type Draft struct {
	Kind        string
	Title       string
	Description string
	Priority    types.Priority
	TopicID     int64
}

// Rule is one independently evaluable signal condition.
type Rule interface {
	Evaluate(ctx context.Context, in Input) ([]Draft, error)
}

// ThresholdRule fires when an item's top topic score exceeds the
// high-relevance cutoff, with priority derived from score magnitude.
// Funding amounts and hiring counts found in the text refine the kind,
// title and priority.
type ThresholdRule struct {
	Cutoff float64
}

func (r *ThresholdRule) Evaluate(_ context.Context, in Input) ([]Draft, error) {
	top, ok := in.Item.TopScore()
	if !ok || top.Score < r.Cutoff {
		return nil, nil
	}

	draft := Draft{
		Kind:        KindHighRelevance,
		Title:       fmt.Sprintf("High relevance: %s", truncate(in.Item.Title, 80)),
		Description: truncate(in.Item.Description, 200),
		Priority:    priorityFromScore(top.Score),
		TopicID:     top.TopicID,
	}

	text := in.Item.SearchText()

	if amount := extractFundingAmount(text); amount > 0 {
		draft.Kind = KindMajorFunding
		draft.Title = fmt.Sprintf("Funding: %s raised $%s", truncate(in.Item.Title, 60), formatAmount(amount))
		draft.Priority = types.MaxPriority(draft.Priority, fundingPriority(amount))
	} else if count := extractHiringCount(text); count > 10 {
		draft.Kind = KindHiringSpike
		draft.Title = fmt.Sprintf("Hiring %d+: %s", count, truncate(in.Item.Title, 60))
		if count > 50 {
			draft.Priority = types.MaxPriority(draft.Priority, types.PriorityHigh)
		}
	}

	return []Draft{draft}, nil
}

func priorityFromScore(score float64) types.Priority {
	switch {
	case score >= 0.9:
		return types.PriorityHigh
	case score >= 0.75:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

func fundingPriority(amount float64) types.Priority {
	switch {
	case amount >= 100_000_000:
		return types.PriorityCritical
	case amount >= 50_000_000:
		return types.PriorityHigh
	case amount >= 10_000_000:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// TrendStore provides aggregate counts for the volume-spike rule.
type TrendStore interface {
	// TopicActivity returns the item count matching a topic inside the
	// rolling window and the per-window baseline over the trailing period.
	TopicActivity(ctx context.Context, topicID int64, window, trailing time.Duration) (recent int, baseline float64, err error)
}

// VolumeSpikeRule fires when the item count for a topic inside the
// rolling window exceeds a multiple of its trailing baseline.
type VolumeSpikeRule struct {
	Trends     TrendStore
	Window     time.Duration
	Trailing   time.Duration
	Multiplier float64
	// MinCount suppresses spikes on negligible absolute volume.
	MinCount int
}

func (r *VolumeSpikeRule) Evaluate(ctx context.Context, in Input) ([]Draft, error) {
	var drafts []Draft
	for _, score := range in.Item.Scores {
		if score.Score <= 0 {
			continue
		}

		recent, baseline, err := r.Trends.TopicActivity(ctx, score.TopicID, r.Window, r.Trailing)
		if err != nil {
			return nil, fmt.Errorf("topic activity for %d: %w", score.TopicID, err)
		}

		if recent < r.MinCount || float64(recent) <= r.Multiplier*baseline {
			continue
		}

		priority := types.PriorityMedium
		if baseline > 0 && float64(recent) > 2*r.Multiplier*baseline {
			priority = types.PriorityHigh
		}

		drafts = append(drafts, Draft{
			Kind:     KindVolumeSpike,
			Title:    fmt.Sprintf("Volume spike: %s (%d items in %s)", topicName(in.Topics, score.TopicID), recent, r.Window),
			Priority: priority,
			TopicID:  score.TopicID,
		})
	}
	return drafts, nil
}

// CriticalKeywordRule forces priority to critical when any configured
// keyword appears in the item text.
type CriticalKeywordRule struct {
	Keywords []string
}

func (r *CriticalKeywordRule) Evaluate(_ context.Context, in Input) ([]Draft, error) {
	text := strings.ToLower(in.Item.SearchText())

	for _, keyword := range r.Keywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw == "" || !strings.Contains(text, kw) {
			continue
		}

		return []Draft{{
			Kind:        KindCriticalKeyword,
			Title:       fmt.Sprintf("Critical: %s", truncate(in.Item.Title, 80)),
			Description: truncate(in.Item.Description, 200),
			Priority:    types.PriorityCritical,
			TopicID:     topicForKeyword(in, kw),
		}}, nil
	}
	return nil, nil
}

// topicForKeyword attributes the critical keyword to the topic that
// tracks it, falling back to the item's top topic.
func topicForKeyword(in Input, keyword string) int64 {
	for _, topic := range in.Topics {
		for _, kw := range topic.Keywords {
			if strings.EqualFold(strings.TrimSpace(kw), keyword) {
				return topic.ID
			}
		}
	}
	if top, ok := in.Item.TopScore(); ok {
		return top.TopicID
	}
	return 0
}

func topicName(topics []*types.Topic, id int64) string {
	for _, t := range topics {
		if t.ID == id {
			return t.Name
		}
	}
	return fmt.Sprintf("topic %d", id)
}
