package score

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/scoutdeck/scout/pkg/intel/types"
)

// SearchTopics fuzzy-matches topics by name and keywords, best match
// first. An empty query returns all topics in name order.
func SearchTopics(topics []*types.Topic, query string) []*types.Topic {
	if strings.TrimSpace(query) == "" {
		out := make([]*types.Topic, len(topics))
		copy(out, topics)
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}

	type ranked struct {
		topic *types.Topic
		rank  int
	}

	var matches []ranked
	for _, topic := range topics {
		best := fuzzy.RankMatchNormalizedFold(query, topic.Name)
		for _, kw := range topic.Keywords {
			if r := fuzzy.RankMatchNormalizedFold(query, kw); r >= 0 && (best < 0 || r < best) {
				best = r
			}
		}
		if best >= 0 {
			matches = append(matches, ranked{topic: topic, rank: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank < matches[j].rank })

	out := make([]*types.Topic, len(matches))
	for i, m := range matches {
		out[i] = m.topic
	}
	return out
}
