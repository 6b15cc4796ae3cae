package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	appconfig "github.com/scoutdeck/scout/pkg/config"
	"github.com/scoutdeck/scout/pkg/intel/aggregate"
	"github.com/scoutdeck/scout/pkg/intel/normalize"
	"github.com/scoutdeck/scout/pkg/intel/score"
	intelsignal "github.com/scoutdeck/scout/pkg/intel/signal"
	"github.com/scoutdeck/scout/pkg/intel/types"
	"github.com/scoutdeck/scout/pkg/lib/log"
	"github.com/scoutdeck/scout/pkg/llms"
	"github.com/scoutdeck/scout/pkg/semantic"
	"github.com/scoutdeck/scout/pkg/sources"
	"github.com/scoutdeck/scout/pkg/sources/providers/newsapi"
	"github.com/scoutdeck/scout/pkg/sources/providers/rss"
	"github.com/scoutdeck/scout/pkg/storage/postgres"
)

type flags struct {
	Interval    time.Duration
	Budget      time.Duration
	EnvFilePath string
}

func main() {
	var f flags
	flag.DurationVar(&f.Interval, "interval", 0, "Delay between scheduled runs (0 = run once and exit)")
	flag.DurationVar(&f.Budget, "budget", 0, "Override the wall-clock run budget (0 = use config)")
	flag.StringVar(&f.EnvFilePath, "env-file", ".env", "Path to .env file")
	flag.Parse()

	ctx := context.Background()
	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	err := godotenv.Load(f.EnvFilePath)
	if err != nil {
		fmt.Println("Warning: Could not load .env file")
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if f.Budget > 0 {
		cfg.AggregateConfig.RunBudget = f.Budget
	}

	logger, err := log.NewLogger(&cfg.LogConfig)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	db := postgres.NewDB(&cfg.DBConfig)
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	orchestrator, err := buildOrchestrator(cfg, db, logger)
	if err != nil {
		return err
	}

	if f.Interval <= 0 {
		printSummary(orchestrator.Run(ctx))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler := cron.New()
	schedule := fmt.Sprintf("@every %s", f.Interval)
	_, err = scheduler.AddFunc(schedule, func() {
		summary := orchestrator.Run(runCtx)
		logger.Info().
			Str("run_id", summary.RunID).
			Int("processed", summary.ItemsProcessed).
			Int("updated", summary.ItemsUpdated).
			Int("skipped", summary.ItemsSkipped).
			Int("signals", summary.SignalsEmitted).
			Int("errors", len(summary.Errors)).
			Dur("duration", summary.Duration).
			Msg("Aggregation run finished")
	})
	if err != nil {
		return fmt.Errorf("schedule runs: %w", err)
	}

	logger.Info().Dur("interval", f.Interval).Msg("Starting aggregation scheduler")
	scheduler.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down, draining in-flight run")
	cancel()
	<-scheduler.Stop().Done()
	return nil
}

// semanticUpserter is interface-typed so a disabled index stays a nil
// interface rather than a typed nil pointer.
type semanticUpserter interface {
	Upsert(ctx context.Context, itemID int64, text string) error
}

type itemScorer interface {
	Score(item *types.ContentItem, topics []*types.Topic) []types.TopicScore
}

func buildOrchestrator(cfg *appconfig.Config, db *postgres.DB, logger *zerolog.Logger) (*aggregate.Orchestrator, error) {
	articles := postgres.NewArticleRepository(db)
	sourceRepo := postgres.NewSourceRepository(db)
	workspaces := postgres.NewWorkspaceRepository(db)
	signalRepo := postgres.NewSignalRepository(db)

	registry := sources.NewRegistry(logger)
	registry.Register(types.SourceTypeRSS, rss.NewFetcher(logger))
	registry.Register(types.SourceTypeNewsAPI, newsapi.NewFetcher(&cfg.NewsAPIConfig, logger))

	normalizer := normalize.NewNormalizer(articles, logger)
	engine := intelsignal.NewEngineFromConfig(&cfg.SignalConfig, articles, logger)
	signals := intelsignal.NewRegistry(signalRepo, logger)

	var scorer itemScorer = score.NewScorer(&cfg.ScoreConfig, logger)

	var index semanticUpserter
	if cfg.SemanticConfig.Enabled {
		model, err := llms.NewEmbeddingModel(&cfg.LLMConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("create embedding model: %w", err)
		}
		embedder, err := semantic.NewTextEmbedder(model)
		if err != nil {
			return nil, fmt.Errorf("create text embedder: %w", err)
		}
		index = semantic.NewIndex(embedder, postgres.NewEmbeddingRepository(db), &cfg.SemanticConfig, logger)

		if cfg.ScoreConfig.SemanticWeight > 0 {
			scorer = score.NewSemanticScorer(
				score.NewScorer(&cfg.ScoreConfig, logger),
				embedder,
				cfg.SemanticConfig.Timeout,
				logger,
			)
		}
	}

	return aggregate.NewOrchestrator(
		&cfg.AggregateConfig,
		logger,
		sourceRepo,
		registry,
		normalizer,
		scorer,
		engine,
		signals,
		articles,
		workspaces,
		index,
	), nil
}

func printSummary(s *types.RunSummary) {
	fmt.Printf("Run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Printf("  processed: %d\n", s.ItemsProcessed)
	fmt.Printf("  updated:   %d\n", s.ItemsUpdated)
	fmt.Printf("  skipped:   %d\n", s.ItemsSkipped)
	fmt.Printf("  signals:   %d\n", s.SignalsEmitted)
	if len(s.Errors) > 0 {
		fmt.Printf("  errors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Printf("    %s: %s\n", e.Source, e.Message)
		}
	}
}
