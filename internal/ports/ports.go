package ports

import (
	"context"
	"time"

	"NewsAggregator/internal/domain"
)

// FetchResponse is the raw outcome of one upstream GET.
type FetchResponse struct {
	StatusCode int
	Body       []byte
}

// Fetcher performs plain HTTP GETs against news APIs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (FetchResponse, error)
}

// ArticleStore is the write side used by ingestion.
type ArticleStore interface {
	// FindSource returns domain.ErrNotFound when no row has the identifier.
	FindSource(ctx context.Context, apiIdentifier string) (domain.Source, error)
	// GetOrCreateCategory returns nil for an empty name.
	GetOrCreateCategory(ctx context.Context, name string) (*domain.Category, error)
	// GetOrCreateAuthor returns nil for an empty name.
	GetOrCreateAuthor(ctx context.Context, name string, sourceID int64) (*domain.Author, error)
	UpsertArticle(ctx context.Context, article domain.Article) (domain.UpsertResult, error)
}

// SourceSyncer keeps the sources table in line with configured profiles.
type SourceSyncer interface {
	UpsertSource(ctx context.Context, source domain.Source) (domain.Source, error)
}

// ArticleReader serves the read-only API.
type ArticleReader interface {
	ListArticles(ctx context.Context, filter domain.ArticleFilter) (domain.ArticlePage, error)
	GetArticle(ctx context.Context, id int64) (domain.ArticleView, error)
	ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// PreferenceStore persists personalized feed settings.
type PreferenceStore interface {
	// GetPreferences returns domain.ErrNotFound when the user saved nothing yet.
	GetPreferences(ctx context.Context, userID int64) (domain.UserPreference, error)
	SavePreferences(ctx context.Context, pref domain.UserPreference) (domain.UserPreference, error)
}

// Store bundles every storage role; both the postgres and in-memory stores satisfy it.
type Store interface {
	ArticleStore
	SourceSyncer
	ArticleReader
	PreferenceStore
	Close() error
}

// IngestionMetrics receives counters from ingestion runs.
type IngestionMetrics interface {
	ObserveFetch(source string, elapsed time.Duration)
	CountArticle(source, outcome string)
	CountRun(source string, succeeded bool)
}
