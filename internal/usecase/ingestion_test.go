package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"NewsAggregator/internal/adapter"
	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/infrastructure/sources"
	"NewsAggregator/internal/infrastructure/storage"
	"NewsAggregator/internal/metrics"
	"NewsAggregator/internal/ports"
)

// routeFetcher answers by matching a substring of the request URL.
type routeFetcher struct {
	mu     sync.Mutex
	routes map[string]ports.FetchResponse
	calls  int
}

func (f *routeFetcher) Get(_ context.Context, rawURL string) (ports.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for marker, resp := range f.routes {
		if strings.Contains(rawURL, marker) {
			return resp, nil
		}
	}
	return ports.FetchResponse{}, domain.ErrNetwork
}

func ok(body string) ports.FetchResponse {
	return ports.FetchResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func strPtr(s string) *string { return &s }

func newsapiProfile() domain.SourceProfile {
	return domain.SourceProfile{
		ID:        "newsapi",
		Name:      "NewsAPI.org",
		BaseURL:   "https://newsapi.test/v2/",
		APIKey:    "k",
		Endpoints: []domain.Endpoint{{Name: "top_headlines", Path: "top-headlines"}},
		FieldMapping: domain.FieldMapping{
			domain.FieldTitle:       strPtr("title"),
			domain.FieldURL:         strPtr("url"),
			domain.FieldDescription: strPtr("description"),
			domain.FieldAuthor:      strPtr("author"),
			domain.FieldSourceName:  strPtr("source.name"),
			domain.FieldPublishedAt: strPtr("publishedAt"),
		},
	}
}

func guardianProfile() domain.SourceProfile {
	return domain.SourceProfile{
		ID:          "guardian",
		Name:        "The Guardian",
		BaseURL:     "https://guardian.test/",
		APIKey:      "g",
		APIKeyParam: "api-key",
		Endpoints:   []domain.Endpoint{{Name: "search", Path: "search"}},
		FieldMapping: domain.FieldMapping{
			domain.FieldTitle:      strPtr("webTitle"),
			domain.FieldURL:        strPtr("webUrl"),
			domain.FieldAuthor:     nil,
			domain.FieldSourceName: strPtr("sectionName"),
		},
	}
}

type fixture struct {
	ingestion *Ingestion
	store     *storage.MemoryStore
	fetcher   *routeFetcher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, routes map[string]ports.FetchResponse, profiles ...domain.SourceProfile) fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	for _, p := range profiles {
		if _, err := store.UpsertSource(context.Background(), domain.Source{Name: p.Name, APIIdentifier: p.ID, IsActive: true}); err != nil {
			t.Fatalf("seed source: %v", err)
		}
	}

	fetcher := &routeFetcher{routes: routes}
	m := metrics.New()
	ing := NewIngestion(IngestionDeps{
		Profiles: domain.NewProfileSet(profiles),
		Adapters: sources.Registry(fetcher, nil),
		Store:    store,
		Metrics:  m,
	})
	return fixture{ingestion: ing, store: store, fetcher: fetcher, metrics: m}
}

func TestRunSingleArticle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]ports.FetchResponse{
		"newsapi.test": ok(`{"articles":[{"title":"T","url":"https://x/1","author":"By A"}]}`),
	}, newsapiProfile())

	res := f.ingestion.Run(context.Background(), "newsapi", adapter.Params{})
	if !res.Succeeded() || res.Processed != 1 || res.Created != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	page, err := f.store.ListArticles(context.Background(), domain.ArticleFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one article, got %d", page.Total)
	}
	got := page.Data[0]
	if got.Title != "T" || got.AuthorName == nil || *got.AuthorName != "A" {
		t.Fatalf("unexpected article %+v", got)
	}
	src, _ := f.store.FindSource(context.Background(), "newsapi")
	if got.SourceID != src.ID {
		t.Fatalf("source fk not set: %d != %d", got.SourceID, src.ID)
	}
	if got.CategoryID != nil {
		t.Fatalf("no category expected, got %v", *got.CategoryID)
	}
}

func TestRunTwiceUpdatesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]ports.FetchResponse{
		"newsapi.test": ok(`{"articles":[{"title":"T","url":"https://x/1","source":{"name":"World News"}}]}`),
	}, newsapiProfile())

	first := f.ingestion.Run(context.Background(), "newsapi", adapter.Params{})
	second := f.ingestion.Run(context.Background(), "newsapi", adapter.Params{})

	if first.Processed != 1 || first.Created != 1 {
		t.Fatalf("first run: %+v", first)
	}
	if second.Processed != 1 || second.Updated != 1 || second.Created != 0 {
		t.Fatalf("second run: %+v", second)
	}
	if first.RunID == second.RunID {
		t.Fatalf("runs should carry distinct ids")
	}

	_, categories, _, articles := f.store.Counts()
	if articles != 1 || categories != 1 {
		t.Fatalf("expected 1 article and 1 category, got %d and %d", articles, categories)
	}
	if got := testutil.ToFloat64(f.metrics.ArticlesTotal.WithLabelValues("newsapi", metrics.OutcomeUpdated)); got != 1 {
		t.Fatalf("expected one updated article metric, got %v", got)
	}
}

func TestRunEmptyExtraction(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]ports.FetchResponse{
		"newsapi.test": ok(`{"status":"ok","articles":[]}`),
	}, newsapiProfile())

	res := f.ingestion.Run(context.Background(), "newsapi", adapter.Params{})
	if res.Succeeded() || !errors.Is(res.Err, domain.ErrNoArticles) {
		t.Fatalf("expected failure with no articles, got %+v", res)
	}

	_, categories, authors, articles := f.store.Counts()
	if categories+authors+articles != 0 {
		t.Fatalf("nothing should be written, got %d/%d/%d", categories, authors, articles)
	}
	if got := testutil.ToFloat64(f.metrics.RunsTotal.WithLabelValues("newsapi", "failure")); got != 1 {
		t.Fatalf("expected failed run metric, got %v", got)
	}
}

func TestRunSkipsInvalidItems(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]ports.FetchResponse{
		"newsapi.test": ok(`{"articles":[
			{"title":"One","url":"https://x/1"},
			{"url":"https://x/2","author":"By Ghost"},
			{"title":"Three","url":"https://x/3"}
		]}`),
	}, newsapiProfile())

	res := f.ingestion.Run(context.Background(), "newsapi", adapter.Params{})
	if res.Processed != 2 || res.Skipped != 1 {
		t.Fatalf("expected 2 processed and 1 skipped, got %+v", res)
	}

	_, _, authors, articles := f.store.Counts()
	if articles != 2 || authors != 0 {
		t.Fatalf("invalid item must not create rows, got %d articles %d authors", articles, authors)
	}
}

func TestRunUnknownSource(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, newsapiProfile())

	res := f.ingestion.Run(context.Background(), "bbc", adapter.Params{})
	if res.Succeeded() || !errors.Is(res.Err, domain.ErrUnknownSource) {
		t.Fatalf("expected unknown source, got %+v", res)
	}
	if f.fetcher.calls != 0 {
		t.Fatalf("no request expected, got %d", f.fetcher.calls)
	}
}

func TestRunProfileWithoutAdapter(t *testing.T) {
	t.Parallel()

	custom := newsapiProfile()
	custom.ID = "custom"
	f := newFixture(t, nil, custom)

	res := f.ingestion.Run(context.Background(), "custom", adapter.Params{})
	if res.Succeeded() || !errors.Is(res.Err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %+v", res)
	}
}

func TestRunFetchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[string]ports.FetchResponse{
		"newsapi.test": {StatusCode: http.StatusUnauthorized, Body: []byte(`{"status":"error"}`)},
	}, newsapiProfile())

	res := f.ingestion.Run(context.Background(), "newsapi", adapter.Params{})
	if res.Succeeded() || !errors.Is(res.Err, domain.ErrInvalidResponse) {
		t.Fatalf("expected invalid response, got %+v", res)
	}
}

func TestRunMissingSourceRow(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	fetcher := &routeFetcher{routes: map[string]ports.FetchResponse{
		"newsapi.test": ok(`{"articles":[{"title":"T","url":"https://x/1"}]}`),
	}}
	ing := NewIngestion(IngestionDeps{
		Profiles: domain.NewProfileSet([]domain.SourceProfile{newsapiProfile()}),
		Adapters: sources.Registry(fetcher, nil),
		Store:    store,
	})

	res := ing.Run(context.Background(), "newsapi", adapter.Params{})
	if res.Succeeded() || !errors.Is(res.Err, domain.ErrNotFound) {
		t.Fatalf("expected missing source row, got %+v", res)
	}
}

// flakyStore fails upserts for one url.
type flakyStore struct {
	*storage.MemoryStore
	failURL string
}

func (s flakyStore) UpsertArticle(ctx context.Context, a domain.Article) (domain.UpsertResult, error) {
	if a.URL == s.failURL {
		return domain.UpsertResult{}, errors.New("deadlock detected")
	}
	return s.MemoryStore.UpsertArticle(ctx, a)
}

func TestRunItemFailureDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	mem := storage.NewMemoryStore()
	if _, err := mem.UpsertSource(context.Background(), domain.Source{Name: "NewsAPI.org", APIIdentifier: "newsapi", IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fetcher := &routeFetcher{routes: map[string]ports.FetchResponse{
		"newsapi.test": ok(`{"articles":[{"title":"A","url":"https://x/a"},{"title":"B","url":"https://x/b"},{"title":"C","url":"https://x/c"}]}`),
	}}
	ing := NewIngestion(IngestionDeps{
		Profiles: domain.NewProfileSet([]domain.SourceProfile{newsapiProfile()}),
		Adapters: sources.Registry(fetcher, nil),
		Store:    flakyStore{MemoryStore: mem, failURL: "https://x/b"},
	})

	res := ing.Run(context.Background(), "newsapi", adapter.Params{})
	if res.Processed != 2 || res.Failed != 1 || !res.Succeeded() {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunAllKeepsDeclarationOrder(t *testing.T) {
	t.Parallel()

	broken := newsapiProfile()
	broken.ID = "broken"
	broken.BaseURL = ""

	f := newFixture(t, map[string]ports.FetchResponse{
		"newsapi.test":  ok(`{"articles":[{"title":"N","url":"https://n/1"}]}`),
		"guardian.test": ok(`{"response":{"results":[{"webTitle":"G","webUrl":"https://g/1","sectionName":"World news"}]}}`),
	}, guardianProfile(), broken, newsapiProfile())

	results := f.ingestion.RunAll(context.Background(), adapter.Params{Query: map[string]string{"q": "rates"}})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Source != "guardian" || results[1].Source != "broken" || results[2].Source != "newsapi" {
		t.Fatalf("unexpected order: %s %s %s", results[0].Source, results[1].Source, results[2].Source)
	}
	if !results[0].Succeeded() || results[1].Succeeded() || !results[2].Succeeded() {
		t.Fatalf("unexpected outcomes: %+v", results)
	}
	if !errors.Is(results[1].Err, domain.ErrConfiguration) {
		t.Fatalf("broken profile should report configuration error, got %v", results[1].Err)
	}

	cats, err := f.store.ListCategories(context.Background())
	if err != nil || len(cats) != 1 || cats[0].Slug != "world-news" {
		t.Fatalf("unexpected categories %v, %v", cats, err)
	}
}
