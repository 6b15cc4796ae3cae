package aggregate

import "time"

type Config struct {
	// MaxSourceConcurrency bounds concurrent source fetches so source
	// APIs are not overwhelmed.
	MaxSourceConcurrency int `env:"AGG_MAX_SOURCE_CONCURRENCY,default=4" validate:"gte=1"`
	// MaxItemConcurrency bounds concurrent normalize/score/signal work.
	MaxItemConcurrency int `env:"AGG_MAX_ITEM_CONCURRENCY,default=16" validate:"gte=1"`
	// RunBudget is the wall-clock budget for one run. When exceeded, no
	// new source fetches start; in-flight work drains.
	RunBudget time.Duration `env:"AGG_RUN_BUDGET,default=5m"`
	// MaterialScoreDelta is the best-score change on re-ingestion below
	// which rule evaluation is skipped.
	MaterialScoreDelta float64 `env:"AGG_MATERIAL_SCORE_DELTA,default=0.05"`
}
