package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	appconfig "github.com/scoutdeck/scout/pkg/config"
	"github.com/scoutdeck/scout/pkg/intel/score"
	"github.com/scoutdeck/scout/pkg/intel/types"
	"github.com/scoutdeck/scout/pkg/lib/log"
	"github.com/scoutdeck/scout/pkg/llms"
	"github.com/scoutdeck/scout/pkg/semantic"
	"github.com/scoutdeck/scout/pkg/storage/postgres"
)

type flags struct {
	Query       string
	SimilarTo   int64
	Topics      string
	K           int
	WorkspaceID int64
	EnvFilePath string
}

func main() {
	var f flags
	flag.StringVar(&f.Query, "query", "", "Free-text query to search for")
	flag.Int64Var(&f.SimilarTo, "similar-to", 0, "Item id to find similar items for")
	flag.StringVar(&f.Topics, "topics", "", "Fuzzy-match topics by name and keywords")
	flag.IntVar(&f.K, "k", 10, "Number of results")
	flag.Int64Var(&f.WorkspaceID, "workspace", 0, "Restrict results to a workspace's sources")
	flag.StringVar(&f.EnvFilePath, "env-file", ".env", "Path to .env file")
	flag.Parse()

	ctx := context.Background()
	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	modes := 0
	for _, set := range []bool{f.Query != "", f.SimilarTo != 0, f.Topics != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return errors.New("exactly one of -query, -similar-to or -topics is required")
	}

	err := godotenv.Load(f.EnvFilePath)
	if err != nil {
		fmt.Println("Warning: Could not load .env file")
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
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

	if f.Topics != "" {
		return searchTopics(ctx, db, f.Topics)
	}

	model, err := llms.NewEmbeddingModel(&cfg.LLMConfig, logger)
	if err != nil {
		return fmt.Errorf("create embedding model: %w", err)
	}
	embedder, err := semantic.NewTextEmbedder(model)
	if err != nil {
		return fmt.Errorf("create text embedder: %w", err)
	}
	index := semantic.NewIndex(embedder, postgres.NewEmbeddingRepository(db), &cfg.SemanticConfig, logger)
	articles := postgres.NewArticleRepository(db)

	filters := semantic.Filters{WorkspaceID: f.WorkspaceID}

	var matches []semantic.Match
	if f.Query != "" {
		matches, err = index.QueryText(ctx, f.Query, f.K, filters)
	} else {
		matches, err = index.FindSimilar(ctx, f.SimilarTo, f.K, filters)
	}
	if err != nil {
		if errors.Is(err, types.ErrUnavailable) {
			return fmt.Errorf("semantic search unavailable: %w", err)
		}
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, m := range matches {
		item, err := articles.GetByID(ctx, m.ItemID)
		if err != nil {
			return fmt.Errorf("load item %d: %w", m.ItemID, err)
		}
		fmt.Printf("%2d. [%.3f] %s\n", i+1, m.Similarity, item.Title)
		if item.URL != "" {
			fmt.Printf("    %s\n", item.URL)
		}
	}
	return nil
}

func searchTopics(ctx context.Context, db *postgres.DB, query string) error {
	topics, err := postgres.NewTopicRepository(db).List(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	matched := score.SearchTopics(topics, query)
	if len(matched) == 0 {
		fmt.Println("No matching topics.")
		return nil
	}
	for _, topic := range matched {
		fmt.Printf("%d. %s (%s): %s\n", topic.ID, topic.Name, topic.Type, strings.Join(topic.Keywords, ", "))
	}
	return nil
}
