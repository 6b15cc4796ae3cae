package signal

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/scoutdeck/scout/pkg/intel/types"
)

// Engine evaluates scored items against the configured rules.
//
// Every generated signal has exactly one priority: when several rules
// fire for the same item, the highest-priority draft wins and a single
// signal is produced per (item, workspace) pair.
type Engine struct {
	rules  []Rule
	logger *zerolog.Logger
	now    func() time.Time
}

func NewEngine(rules []Rule, logger *zerolog.Logger) *Engine {
	return &Engine{rules: rules, logger: logger, now: time.Now}
}

// NewEngineFromConfig assembles the standard rule set.
func NewEngineFromConfig(cfg *Config, trends TrendStore, logger *zerolog.Logger) *Engine {
	rules := []Rule{
		&ThresholdRule{Cutoff: cfg.HighRelevanceCutoff},
		&CriticalKeywordRule{Keywords: cfg.CriticalKeywords},
	}
	if trends != nil {
		rules = append(rules, &VolumeSpikeRule{
			Trends:     trends,
			Window:     cfg.SpikeWindow,
			Trailing:   cfg.SpikeTrailing,
			Multiplier: cfg.SpikeMultiplier,
			MinCount:   cfg.SpikeMinCount,
		})
	}
	return NewEngine(rules, logger)
}

// Evaluate runs all rules over one scored item and merges the winning
// draft into one unacknowledged signal per workspace. A failing rule is
// logged and skipped; rule evaluation never aborts the run.
func (e *Engine) Evaluate(ctx context.Context, in Input) []*types.Signal {
	var winner *Draft
	for _, rule := range e.rules {
		drafts, err := rule.Evaluate(ctx, in)
		if err != nil {
			e.logger.Warn().
				Err(err).
				Int64("item_id", in.Item.ID).
				Msg("Signal rule evaluation failed")
			continue
		}
		for i := range drafts {
			if winner == nil || drafts[i].Priority.Rank() > winner.Priority.Rank() {
				winner = &drafts[i]
			}
		}
	}

	if winner == nil {
		return nil
	}

	detectedAt := e.now()
	signals := make([]*types.Signal, 0, len(in.WorkspaceIDs))
	for _, workspaceID := range in.WorkspaceIDs {
		signals = append(signals, &types.Signal{
			Kind:        winner.Kind,
			Title:       winner.Title,
			Description: winner.Description,
			Priority:    winner.Priority,
			WorkspaceID: workspaceID,
			ItemID:      in.Item.ID,
			TopicID:     winner.TopicID,
			DetectedAt:  detectedAt,
		})
	}
	return signals
}
