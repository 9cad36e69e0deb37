package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAggregator/internal/domain"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresRepository_FindSource(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM sources WHERE api_identifier = \$1`).
		WithArgs("nyt").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "api_identifier", "website_url", "description", "is_active", "created_at", "updated_at"}).
			AddRow(int64(3), "New York Times", "nyt", "https://www.nytimes.com", "", true, now, now))
	mock.ExpectQuery(`SELECT .* FROM sources WHERE api_identifier = \$1`).
		WithArgs("bbc").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	src, err := repo.FindSource(context.Background(), "nyt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), src.ID)
	assert.Equal(t, "New York Times", src.Name)

	_, err = repo.FindSource(context.Background(), "bbc")
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetOrCreateCategoryCreates(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories \(name,slug\) VALUES \(\$1,\$2\) ON CONFLICT \(slug\) DO NOTHING`).
		WithArgs("World News", "world-news").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug"}).AddRow(int64(5), "World News", "world-news"))
	mock.ExpectCommit()

	c, err := repo.GetOrCreateCategory(context.Background(), " World News ")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(5), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetOrCreateCategoryReturnsExisting(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs("world news", "world-news").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug"}))
	mock.ExpectQuery(`SELECT id, name, slug FROM categories WHERE slug = \$1`).
		WithArgs("world-news").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug"}).AddRow(int64(5), "World News", "world-news"))
	mock.ExpectCommit()

	c, err := repo.GetOrCreateCategory(context.Background(), "world news")
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.ID)
	assert.Equal(t, "World News", c.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetOrCreateCategoryTransliterates(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO categories`).
		WithArgs("Мир", "mir").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug"}).AddRow(int64(8), "Мир", "mir"))
	mock.ExpectCommit()

	c, err := repo.GetOrCreateCategory(context.Background(), "Мир")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "mir", c.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetOrCreateSkipsEmptyNames(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	c, err := repo.GetOrCreateCategory(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, c)

	a, err := repo.GetOrCreateAuthor(context.Background(), "  ", 1)
	require.NoError(t, err)
	assert.Nil(t, a)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetOrCreateAuthorRollsBackOnError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO authors \(name,source_id\) VALUES \(\$1,\$2\) ON CONFLICT \(name, source_id\) DO NOTHING`).
		WithArgs("Jane Doe", int64(2)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.GetOrCreateAuthor(context.Background(), "Jane Doe", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpsertArticle(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	categoryID := int64(4)
	published := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO articles .* ON CONFLICT \(url_hash\) DO UPDATE .* RETURNING id, \(xmax = 0\) AS created`).
		WithArgs(int64(3), int64(4), nil, "T", nil, nil, "https://x/1", domain.ContentHash("https://x/1"), nil, published).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow(int64(11), true))
	mock.ExpectQuery(`INSERT INTO articles`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created"}).AddRow(int64(11), false))

	article := domain.Article{
		SourceID:    3,
		CategoryID:  &categoryID,
		Title:       "T",
		URL:         "https://x/1",
		URLHash:     domain.ContentHash("https://x/1"),
		PublishedAt: &published,
	}

	first, err := repo.UpsertArticle(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertResult{ID: 11, Created: true}, first)

	second, err := repo.UpsertArticle(context.Background(), article)
	require.NoError(t, err)
	assert.False(t, second.Created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListArticlesSearch(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	published := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM articles a WHERE a.source_id = \$1 AND \(a.title ILIKE \$2 OR a.description ILIKE \$3 OR a.content ILIKE \$4\)`).
		WithArgs(int64(2), `%50\%%`, `%50\%%`, `%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(13))

	columns := []string{
		"id", "source_id", "category_id", "author_id", "title", "description", "content",
		"url", "url_hash", "image_url", "published_at", "created_at", "updated_at",
		"source_name", "category_name", "author_name",
	}
	mock.ExpectQuery(`SELECT a.id, .* FROM articles a JOIN sources s .* ORDER BY a.published_at DESC NULLS LAST, a.id DESC LIMIT 12 OFFSET 12`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), int64(2), nil, nil, "Up 50%", "", "", "https://x", "h", "", published, published, published, "Guardian", nil, nil))

	page, err := repo.ListArticles(context.Background(), domain.ArticleFilter{SourceID: 2, Keyword: "50%", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)
	assert.Equal(t, 2, page.LastPage)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Guardian", page.Data[0].SourceName)
	assert.Nil(t, page.Data[0].CategoryName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListArticlesPreferences(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM articles a WHERE \(a.source_id IN \(\$1,\$2\) OR a.author_id IN \(\$3\)\)`).
		WithArgs(int64(1), int64(2), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT a.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	page, err := repo.ListArticles(context.Background(), domain.ArticleFilter{Preferences: &domain.UserPreference{
		PreferredSources: []int64{1, 2},
		PreferredAuthors: []int64{9},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetArticleNotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT a.id, .* WHERE a.id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetArticle(context.Background(), 42)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Preferences(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectExec(`INSERT INTO user_preferences .* ON CONFLICT \(user_id\) DO UPDATE`).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT user_id, preferred_sources, preferred_categories, preferred_authors FROM user_preferences WHERE user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "preferred_sources", "preferred_categories", "preferred_authors"}).
			AddRow(int64(7), "{1,2}", "{}", "{3}"))
	mock.ExpectQuery(`FROM user_preferences`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := repo.SavePreferences(context.Background(), domain.UserPreference{UserID: 7, PreferredSources: []int64{1, 2}})
	require.NoError(t, err)

	got, err := repo.GetPreferences(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got.PreferredSources)
	assert.Empty(t, got.PreferredCategories)
	assert.Equal(t, []int64{3}, got.PreferredAuthors)

	_, err = repo.GetPreferences(context.Background(), 8)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
