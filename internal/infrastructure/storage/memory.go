package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

type authorKey struct {
	name     string
	sourceID int64
}

// MemoryStore keeps everything in process memory. It enforces the same
// uniqueness keys as the postgres schema and is safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	seq int64

	sources       map[int64]domain.Source
	sourceByIdent map[string]int64

	categories     map[int64]domain.Category
	categoryBySlug map[string]int64

	authors     map[int64]domain.Author
	authorByKey map[authorKey]int64

	articles      map[int64]domain.Article
	articleByHash map[string]int64

	preferences map[int64]domain.UserPreference

	now func() time.Time
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:        map[int64]domain.Source{},
		sourceByIdent:  map[string]int64{},
		categories:     map[int64]domain.Category{},
		categoryBySlug: map[string]int64{},
		authors:        map[int64]domain.Author{},
		authorByKey:    map[authorKey]int64{},
		articles:       map[int64]domain.Article{},
		articleByHash:  map[string]int64{},
		preferences:    map[int64]domain.UserPreference{},
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

// Close implements ports.Store.
func (s *MemoryStore) Close() error { return nil }

// UpsertSource inserts or refreshes a source keyed by its api identifier.
func (s *MemoryStore) UpsertSource(_ context.Context, src domain.Source) (domain.Source, error) {
	if strings.TrimSpace(src.APIIdentifier) == "" {
		return domain.Source{}, fmt.Errorf("upsert source: empty api identifier")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id, ok := s.sourceByIdent[src.APIIdentifier]; ok {
		existing := s.sources[id]
		existing.Name = src.Name
		existing.WebsiteURL = src.WebsiteURL
		existing.Description = src.Description
		existing.IsActive = src.IsActive
		existing.UpdatedAt = now
		s.sources[id] = existing
		return existing, nil
	}

	src.ID = s.nextID()
	src.CreatedAt = now
	src.UpdatedAt = now
	s.sources[src.ID] = src
	s.sourceByIdent[src.APIIdentifier] = src.ID
	return src, nil
}

// FindSource implements ports.ArticleStore.
func (s *MemoryStore) FindSource(_ context.Context, apiIdentifier string) (domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sourceByIdent[apiIdentifier]
	if !ok {
		return domain.Source{}, fmt.Errorf("source %s: %w", apiIdentifier, domain.ErrNotFound)
	}
	return s.sources[id], nil
}

// GetOrCreateCategory returns the category owning the slug of name, creating it on first use.
func (s *MemoryStore) GetOrCreateCategory(_ context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	slug := domain.Slug(name)
	if slug == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.categoryBySlug[slug]; ok {
		c := s.categories[id]
		return &c, nil
	}
	c := domain.Category{ID: s.nextID(), Name: name, Slug: slug}
	s.categories[c.ID] = c
	s.categoryBySlug[slug] = c.ID
	return &c, nil
}

// GetOrCreateAuthor returns the author for (name, sourceID), creating it on first use.
func (s *MemoryStore) GetOrCreateAuthor(_ context.Context, name string, sourceID int64) (*domain.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := authorKey{name: name, sourceID: sourceID}
	if id, ok := s.authorByKey[key]; ok {
		a := s.authors[id]
		return &a, nil
	}
	a := domain.Author{ID: s.nextID(), Name: name, SourceID: sourceID}
	s.authors[a.ID] = a
	s.authorByKey[key] = a.ID
	return &a, nil
}

// UpsertArticle inserts or overwrites the article with the same url hash.
func (s *MemoryStore) UpsertArticle(_ context.Context, a domain.Article) (domain.UpsertResult, error) {
	if a.URLHash == "" {
		return domain.UpsertResult{}, fmt.Errorf("upsert article: %w", domain.ErrInvalidArticle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[a.SourceID]; !ok {
		return domain.UpsertResult{}, fmt.Errorf("upsert article: source %d: %w", a.SourceID, domain.ErrNotFound)
	}

	now := s.now()
	if id, ok := s.articleByHash[a.URLHash]; ok {
		existing := s.articles[id]
		a.ID = id
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = now
		s.articles[id] = a
		return domain.UpsertResult{ID: id, Created: false}, nil
	}

	a.ID = s.nextID()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.articles[a.ID] = a
	s.articleByHash[a.URLHash] = a.ID
	return domain.UpsertResult{ID: a.ID, Created: true}, nil
}

// ListArticles filters, orders (newest first, undated last) and paginates articles.
func (s *MemoryStore) ListArticles(_ context.Context, f domain.ArticleFilter) (domain.ArticlePage, error) {
	page, perPage := f.Paging()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.Article
	for _, a := range s.articles {
		if matchesFilter(a, f) {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		pi, pj := matched[i].PublishedAt, matched[j].PublishedAt
		switch {
		case pi == nil && pj == nil:
			return matched[i].ID > matched[j].ID
		case pi == nil:
			return false
		case pj == nil:
			return true
		case !pi.Equal(*pj):
			return pi.After(*pj)
		default:
			return matched[i].ID > matched[j].ID
		}
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+perPage, total)

	views := make([]domain.ArticleView, 0, end-start)
	for _, a := range matched[start:end] {
		views = append(views, s.view(a))
	}
	return domain.NewArticlePage(views, total, page, perPage), nil
}

// GetArticle implements ports.ArticleReader.
func (s *MemoryStore) GetArticle(_ context.Context, id int64) (domain.ArticleView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[id]
	if !ok {
		return domain.ArticleView{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
	}
	return s.view(a), nil
}

// ListSources implements ports.ArticleReader.
func (s *MemoryStore) ListSources(_ context.Context, activeOnly bool) ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Source, 0, len(s.sources))
	for _, src := range s.sources {
		if activeOnly && !src.IsActive {
			continue
		}
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListCategories implements ports.ArticleReader.
func (s *MemoryStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetPreferences implements ports.PreferenceStore.
func (s *MemoryStore) GetPreferences(_ context.Context, userID int64) (domain.UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[userID]
	if !ok {
		return domain.UserPreference{}, fmt.Errorf("preferences of user %d: %w", userID, domain.ErrNotFound)
	}
	return p, nil
}

// SavePreferences implements ports.PreferenceStore.
func (s *MemoryStore) SavePreferences(_ context.Context, p domain.UserPreference) (domain.UserPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.PreferredSources = slices.Clone(p.PreferredSources)
	p.PreferredCategories = slices.Clone(p.PreferredCategories)
	p.PreferredAuthors = slices.Clone(p.PreferredAuthors)
	s.preferences[p.UserID] = p
	return p, nil
}

// Counts reports row totals; used by tests and the CLI summary.
func (s *MemoryStore) Counts() (sources, categories, authors, articles int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sources), len(s.categories), len(s.authors), len(s.articles)
}

func (s *MemoryStore) view(a domain.Article) domain.ArticleView {
	v := domain.ArticleView{Article: a, SourceName: s.sources[a.SourceID].Name}
	if a.CategoryID != nil {
		if c, ok := s.categories[*a.CategoryID]; ok {
			v.CategoryName = &c.Name
		}
	}
	if a.AuthorID != nil {
		if au, ok := s.authors[*a.AuthorID]; ok {
			v.AuthorName = &au.Name
		}
	}
	return v
}

func matchesFilter(a domain.Article, f domain.ArticleFilter) bool {
	if f.SourceID != 0 && a.SourceID != f.SourceID {
		return false
	}
	if f.CategoryID != 0 && (a.CategoryID == nil || *a.CategoryID != f.CategoryID) {
		return false
	}
	if f.FromDate != nil && (a.PublishedAt == nil || a.PublishedAt.Before(*f.FromDate)) {
		return false
	}
	if f.ToDate != nil && (a.PublishedAt == nil || a.PublishedAt.After(*f.ToDate)) {
		return false
	}
	if kw := strings.ToLower(strings.TrimSpace(f.Keyword)); kw != "" {
		if !strings.Contains(strings.ToLower(a.Title), kw) &&
			!strings.Contains(strings.ToLower(a.Description), kw) &&
			!strings.Contains(strings.ToLower(a.Content), kw) {
			return false
		}
	}
	if p := f.Preferences; p != nil && !p.Empty() {
		hit := slices.Contains(p.PreferredSources, a.SourceID) ||
			(a.CategoryID != nil && slices.Contains(p.PreferredCategories, *a.CategoryID)) ||
			(a.AuthorID != nil && slices.Contains(p.PreferredAuthors, *a.AuthorID))
		if !hit {
			return false
		}
	}
	return true
}
