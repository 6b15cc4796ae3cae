package signal

import "time"

type Config struct {
	// HighRelevanceCutoff is the best-topic-score above which the
	// threshold rule fires.
	HighRelevanceCutoff float64 `env:"SIGNAL_HIGH_RELEVANCE_CUTOFF,default=0.75" validate:"gte=0,lte=1"`

	// CriticalKeywords force priority to critical regardless of the
	// score-derived priority.
	CriticalKeywords []string `env:"SIGNAL_CRITICAL_KEYWORDS,default=acquisition;acquired;merger;layoffs;data breach;bankruptcy"`

	SpikeWindow     time.Duration `env:"SIGNAL_SPIKE_WINDOW,default=24h"`
	SpikeTrailing   time.Duration `env:"SIGNAL_SPIKE_TRAILING,default=168h"`
	SpikeMultiplier float64       `env:"SIGNAL_SPIKE_MULTIPLIER,default=3"`
	SpikeMinCount   int           `env:"SIGNAL_SPIKE_MIN_COUNT,default=5"`
}
