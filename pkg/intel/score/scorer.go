package score

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

// KeywordWeight is the score contributed by one matched keyword.
// Repeated occurrences of the same keyword do not add beyond one
// contribution, so score inflation by repetition is not possible.
const KeywordWeight = 0.3

type Config struct {
	// SemanticWeight blends embedding similarity into the keyword score:
	// final = (1-w)*keyword + w*cosine. Zero keeps the keyword-only
	// baseline, which is the authoritative default.
	SemanticWeight float64 `env:"SCORE_SEMANTIC_WEIGHT,default=0" validate:"gte=0,lte=1"`
}

// Scorer computes per-topic relevance in [0,1] for content items.
type Scorer struct {
	cfg    *Config
	logger *zerolog.Logger
}

func NewScorer(cfg *Config, logger *zerolog.Logger) *Scorer {
	return &Scorer{cfg: cfg, logger: logger}
}

// Score evaluates an item against the topics active for its workspaces.
// The result is ordered by score descending, ties by topic id ascending.
func (s *Scorer) Score(item *types.ContentItem, topics []*types.Topic) []types.TopicScore {
	return s.ScoreSemantic(item, topics, nil, nil)
}

// ScoreSemantic is Score with an optional embedding refinement: when the
// item vector and a topic's centroid are both present, the keyword score
// is blended with cosine similarity per the configured weight.
func (s *Scorer) ScoreSemantic(item *types.ContentItem, topics []*types.Topic, itemVec []float32, centroids map[int64][]float32) []types.TopicScore {
	text := strings.ToLower(item.SearchText())

	scores := make([]types.TopicScore, 0, len(topics))
	for _, topic := range topics {
		score := keywordScore(text, topic.Keywords)

		w := s.cfg.SemanticWeight
		if w > 0 && len(itemVec) > 0 {
			if centroid, ok := centroids[topic.ID]; ok {
				sim := clamp01(Cosine(itemVec, centroid))
				score = (1-w)*score + w*sim
			}
		}

		scores = append(scores, types.TopicScore{TopicID: topic.ID, Score: score})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TopicID < scores[j].TopicID
	})

	return scores
}

func keywordScore(text string, keywords []string) float64 {
	seen := make(map[string]struct{}, len(keywords))
	score := 0.0
	for _, keyword := range keywords {
		kw := strings.ToLower(strings.TrimSpace(keyword))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}

		if strings.Contains(text, kw) {
			score += KeywordWeight
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Cosine computes cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
