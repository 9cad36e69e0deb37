package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"NewsAggregator/internal/adapter"
	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/ports"
	"NewsAggregator/internal/transform"
)

const defaultConcurrency = 3

// IngestionDeps wires the profile table, adapters and storage into the use case.
type IngestionDeps struct {
	Profiles    domain.ProfileSet
	Adapters    *adapter.Registry
	Store       ports.ArticleStore
	Metrics     ports.IngestionMetrics
	Logger      *slog.Logger
	Concurrency int
}

// Ingestion implements the fetch, transform and upsert workflow for news sources.
type Ingestion struct {
	profiles    domain.ProfileSet
	adapters    *adapter.Registry
	store       ports.ArticleStore
	metrics     ports.IngestionMetrics
	logger      *slog.Logger
	concurrency int
}

// NewIngestion constructs the orchestration component.
func NewIngestion(deps IngestionDeps) *Ingestion {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Ingestion{
		profiles:    deps.Profiles,
		adapters:    deps.Adapters,
		store:       deps.Store,
		metrics:     deps.Metrics,
		logger:      logger.With("component", "ingestion"),
		concurrency: concurrency,
	}
}

// Result summarises one source run. Processed counts stored articles,
// split into Created and Updated; Skipped counts invalid items and Failed
// counts items whose storage failed.
type Result struct {
	Source    string
	RunID     string
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	Duration  time.Duration
	// Err holds the source-level cause when the run stopped early.
	Err error
}

// Succeeded reports whether at least one article was stored.
func (r Result) Succeeded() bool {
	return r.Processed > 0
}

// Run ingests one source. It never returns an error: source-level failures
// end the run with Err set, item-level failures are logged and counted.
func (i *Ingestion) Run(ctx context.Context, sourceID string, params adapter.Params) (res Result) {
	start := time.Now()
	res = Result{Source: sourceID, RunID: uuid.NewString()}
	log := i.logger.With("source", sourceID, "run_id", res.RunID)

	defer func() {
		res.Duration = time.Since(start)
		if i.metrics != nil {
			i.metrics.CountRun(sourceID, res.Succeeded())
		}
		log.Info("ingestion finished",
			"processed", res.Processed,
			"created", res.Created,
			"updated", res.Updated,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"duration", res.Duration,
		)
	}()

	profile, err := i.profiles.Lookup(sourceID)
	if err != nil {
		log.Error("source profile unavailable", "error", err)
		res.Err = err
		return res
	}

	log.Info("fetching articles", "name", profile.Name)

	if i.adapters == nil {
		res.Err = fmt.Errorf("%w: adapter registry is not configured", domain.ErrConfiguration)
		log.Error("no adapter for source", "error", res.Err)
		return res
	}
	strategy, err := i.adapters.Resolve(sourceID)
	if err != nil {
		log.Error("no adapter for source", "error", err)
		res.Err = err
		return res
	}

	fetchStart := time.Now()
	body, err := strategy.Fetch(ctx, profile, params)
	if i.metrics != nil {
		i.metrics.ObserveFetch(sourceID, time.Since(fetchStart))
	}
	if err != nil {
		log.Warn("fetch failed", "name", profile.Name, "error", err)
		res.Err = err
		return res
	}

	items := strategy.ExtractArticles(body)
	if len(items) == 0 {
		log.Warn("no articles found in response", "name", profile.Name)
		res.Err = domain.ErrNoArticles
		return res
	}

	if i.store == nil {
		res.Err = fmt.Errorf("%w: article store is not configured", domain.ErrConfiguration)
		log.Error("cannot store articles", "error", res.Err)
		return res
	}
	source, err := i.store.FindSource(ctx, sourceID)
	if err != nil {
		log.Error("source not found for profile", "error", err)
		res.Err = fmt.Errorf("find source %s: %w", sourceID, err)
		return res
	}

	for idx, raw := range items {
		created, err := i.storeItem(ctx, profile, source, raw)
		switch {
		case errors.Is(err, domain.ErrInvalidArticle):
			res.Skipped++
			i.count(sourceID, metrics.OutcomeSkipped)
		case err != nil:
			res.Failed++
			i.count(sourceID, metrics.OutcomeFailed)
			log.Warn("error processing article", "index", idx, "error", err)
		case created:
			res.Processed++
			res.Created++
			i.count(sourceID, metrics.OutcomeCreated)
		default:
			res.Processed++
			res.Updated++
			i.count(sourceID, metrics.OutcomeUpdated)
		}
	}

	log.Info("processed articles", "processed", res.Processed, "name", profile.Name)
	return res
}

// storeItem transforms one raw item and persists it with its category and author.
func (i *Ingestion) storeItem(ctx context.Context, profile domain.SourceProfile, source domain.Source, raw gjson.Result) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while storing article: %v", r)
		}
	}()

	article := transform.ForProfile(raw, profile)
	if !transform.Valid(article) {
		return false, domain.ErrInvalidArticle
	}

	category, err := i.store.GetOrCreateCategory(ctx, article.CategoryName)
	if err != nil {
		return false, fmt.Errorf("resolve category %q: %w", article.CategoryName, err)
	}
	author, err := i.store.GetOrCreateAuthor(ctx, article.AuthorName, source.ID)
	if err != nil {
		return false, fmt.Errorf("resolve author %q: %w", article.AuthorName, err)
	}

	row := domain.Article{
		SourceID:    source.ID,
		Title:       article.Title,
		Description: article.Description,
		Content:     article.Content,
		URL:         article.URL,
		URLHash:     article.URLHash,
		ImageURL:    article.ImageURL,
		PublishedAt: article.PublishedAt,
	}
	if category != nil {
		row.CategoryID = &category.ID
	}
	if author != nil {
		row.AuthorID = &author.ID
	}

	result, err := i.store.UpsertArticle(ctx, row)
	if err != nil {
		return false, fmt.Errorf("upsert article %s: %w", article.URL, err)
	}
	return result.Created, nil
}

// RunAll ingests every configured source, at most Concurrency at a time.
// Results follow the profile declaration order.
func (i *Ingestion) RunAll(ctx context.Context, params adapter.Params) []Result {
	ids := i.profiles.IDs()
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(i.concurrency)
	for idx, id := range ids {
		idx, id := idx, id
		g.Go(func() error {
			results[idx] = i.Run(ctx, id, params)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Sources lists the configured source identifiers in declaration order.
func (i *Ingestion) Sources() []string {
	return i.profiles.IDs()
}

func (i *Ingestion) count(source, outcome string) {
	if i.metrics != nil {
		i.metrics.CountArticle(source, outcome)
	}
}
