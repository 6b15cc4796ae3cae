package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	appconfig "github.com/scoutdeck/scout/pkg/config"
	"github.com/scoutdeck/scout/pkg/intel/feed"
	"github.com/scoutdeck/scout/pkg/intel/types"
	"github.com/scoutdeck/scout/pkg/lib/log"
	"github.com/scoutdeck/scout/pkg/storage/postgres"
)

type flags struct {
	WorkspaceID int64
	ProfileID   int64
	Category    string
	TopicIDs    string
	MinScore    float64
	Limit       int
	Offset      int
	EnvFilePath string
}

func main() {
	var f flags
	flag.Int64Var(&f.WorkspaceID, "workspace", 0, "Restrict the feed to a workspace's sources")
	flag.Int64Var(&f.ProfileID, "profile", 0, "Restrict the feed to a profile")
	flag.StringVar(&f.Category, "category", "", "Filter by article category")
	flag.StringVar(&f.TopicIDs, "topics", "", "Comma-separated topic ids to filter by")
	flag.Float64Var(&f.MinScore, "min-score", 0, "Relevance threshold (0 = configured default, negative = no filter)")
	flag.IntVar(&f.Limit, "limit", 0, "Page size (0 = configured default)")
	flag.IntVar(&f.Offset, "offset", 0, "Page offset")
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

	logger, err := log.NewLogger(&cfg.LogConfig)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	db := postgres.NewDB(&cfg.DBConfig)
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	topicIDs, err := parseTopicIDs(f.TopicIDs)
	if err != nil {
		return err
	}

	svc := feed.NewService(postgres.NewArticleRepository(db), &cfg.FeedConfig, logger)
	page, err := svc.Articles(ctx, types.ItemQuery{
		WorkspaceID:       f.WorkspaceID,
		ProfileID:         f.ProfileID,
		Category:          f.Category,
		TopicIDs:          topicIDs,
		MinRelevanceScore: f.MinScore,
		Limit:             f.Limit,
		Offset:            f.Offset,
	})
	if err != nil {
		return err
	}

	if len(page.Items) == 0 {
		fmt.Println("No articles.")
		return nil
	}

	fmt.Printf("%d of %d articles:\n", len(page.Items), page.Total)
	for _, item := range page.Items {
		fmt.Printf("  [%.2f] %s  %s (%s)\n",
			item.BestScore(), item.PublishedAt.Format("2006-01-02"), item.Title, item.Category)
		if item.URL != "" {
			fmt.Printf("         %s\n", item.URL)
		}
	}
	return nil
}

func parseTopicIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid topic id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
