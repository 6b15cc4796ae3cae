package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"

	"github.com/scoutdeck/scout/pkg/intel/aggregate"
	"github.com/scoutdeck/scout/pkg/intel/feed"
	"github.com/scoutdeck/scout/pkg/intel/score"
	"github.com/scoutdeck/scout/pkg/intel/signal"
	"github.com/scoutdeck/scout/pkg/lib"
	"github.com/scoutdeck/scout/pkg/lib/log"
	"github.com/scoutdeck/scout/pkg/llms"
	"github.com/scoutdeck/scout/pkg/semantic"
	"github.com/scoutdeck/scout/pkg/sources/providers/newsapi"
	"github.com/scoutdeck/scout/pkg/storage/postgres"
)

type Config struct {
	DBConfig        postgres.Config  `env:""`
	LogConfig       log.Config       `env:""`
	AggregateConfig aggregate.Config `env:""`
	FeedConfig      feed.Config      `env:""`
	SignalConfig    signal.Config    `env:""`
	ScoreConfig     score.Config     `env:""`
	SemanticConfig  semantic.Config  `env:""`
	LLMConfig       llms.Config      `env:""`
	NewsAPIConfig   newsapi.Config   `env:""`
}

func Load() (*Config, error) {
	var cfg Config

	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := lib.ValidateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
