package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"NewsAggregator/internal/config"
	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

var sourceColumns = []string{
	"id",
	"name",
	"api_identifier",
	"COALESCE(website_url, '') AS website_url",
	"COALESCE(description, '') AS description",
	"is_active",
	"created_at",
	"updated_at",
}

var articleViewColumns = []string{
	"a.id",
	"a.source_id",
	"a.category_id",
	"a.author_id",
	"a.title",
	"COALESCE(a.description, '') AS description",
	"COALESCE(a.content, '') AS content",
	"a.url",
	"a.url_hash",
	"COALESCE(a.image_url, '') AS image_url",
	"a.published_at",
	"a.created_at",
	"a.updated_at",
	"s.name AS source_name",
	"c.name AS category_name",
	"au.name AS author_name",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// PostgresRepository persists sources, articles and their side entities into Postgres.
type PostgresRepository struct {
	db *sqlx.DB
	sq sq.StatementBuilderType
}

var _ ports.Store = (*PostgresRepository)(nil)

// NewPostgresRepository wires an sqlx.DB implementation.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sq: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgres connects, configures the pool and verifies the connection.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*PostgresRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return NewPostgresRepository(db), nil
}

// Close releases the pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// MigrateUp applies the embedded schema.
func (r *PostgresRepository) MigrateUp(logger *slog.Logger) error {
	return MigrateUp(r.db.DB, logger)
}

// MigrateDown rolls back steps schema versions.
func (r *PostgresRepository) MigrateDown(steps int, logger *slog.Logger) error {
	return MigrateDown(r.db.DB, steps, logger)
}

// UpsertSource inserts or refreshes a source keyed by its api identifier.
func (r *PostgresRepository) UpsertSource(ctx context.Context, src domain.Source) (domain.Source, error) {
	query, args, err := r.sq.Insert("sources").
		Columns("name", "api_identifier", "website_url", "description", "is_active").
		Values(src.Name, src.APIIdentifier, nullString(src.WebsiteURL), nullString(src.Description), src.IsActive).
		Suffix(`ON CONFLICT (api_identifier) DO UPDATE
			SET name = EXCLUDED.name,
			    website_url = EXCLUDED.website_url,
			    description = EXCLUDED.description,
			    is_active = EXCLUDED.is_active,
			    updated_at = NOW()
			RETURNING ` + strings.Join(sourceColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build source upsert: %w", err)
	}

	var out domain.Source
	if err := r.db.GetContext(ctx, &out, query, args...); err != nil {
		return domain.Source{}, fmt.Errorf("upsert source %s: %w", src.APIIdentifier, err)
	}
	return out, nil
}

// FindSource implements ports.ArticleStore.
func (r *PostgresRepository) FindSource(ctx context.Context, apiIdentifier string) (domain.Source, error) {
	query, args, err := r.sq.Select(sourceColumns...).
		From("sources").
		Where(sq.Eq{"api_identifier": apiIdentifier}).
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build source query: %w", err)
	}

	var src domain.Source
	if err := r.db.GetContext(ctx, &src, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Source{}, fmt.Errorf("source %s: %w", apiIdentifier, domain.ErrNotFound)
		}
		return domain.Source{}, fmt.Errorf("query source %s: %w", apiIdentifier, err)
	}
	return src, nil
}

// GetOrCreateCategory inserts the category unless its slug exists, then
// returns whichever row owns the slug.
func (r *PostgresRepository) GetOrCreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	slug := domain.Slug(name)
	if slug == "" {
		return nil, nil
	}

	insert := r.sq.Insert("categories").
		Columns("name", "slug").
		Values(name, slug).
		Suffix("ON CONFLICT (slug) DO NOTHING RETURNING id, name, slug")
	lookup := r.sq.Select("id", "name", "slug").
		From("categories").
		Where(sq.Eq{"slug": slug})

	var c domain.Category
	if err := r.getOrCreate(ctx, &c, insert, lookup); err != nil {
		return nil, fmt.Errorf("category %q: %w", slug, err)
	}
	return &c, nil
}

// GetOrCreateAuthor inserts the (name, source) pair unless present, then returns its row.
func (r *PostgresRepository) GetOrCreateAuthor(ctx context.Context, name string, sourceID int64) (*domain.Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	insert := r.sq.Insert("authors").
		Columns("name", "source_id").
		Values(name, sourceID).
		Suffix("ON CONFLICT (name, source_id) DO NOTHING RETURNING id, name, source_id")
	lookup := r.sq.Select("id", "name", "source_id").
		From("authors").
		Where(sq.Eq{"name": name, "source_id": sourceID})

	var a domain.Author
	if err := r.getOrCreate(ctx, &a, insert, lookup); err != nil {
		return nil, fmt.Errorf("author %q: %w", name, err)
	}
	return &a, nil
}

// getOrCreate runs an INSERT ... ON CONFLICT DO NOTHING RETURNING and falls
// back to lookup when the row already existed.
func (r *PostgresRepository) getOrCreate(ctx context.Context, dest any, insert sq.InsertBuilder, lookup sq.SelectBuilder) error {
	insertSQL, insertArgs, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	lookupSQL, lookupArgs, err := lookup.ToSql()
	if err != nil {
		return fmt.Errorf("build lookup: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	err = tx.GetContext(ctx, dest, insertSQL, insertArgs...)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.GetContext(ctx, dest, lookupSQL, lookupArgs...)
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("get or create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertArticle inserts the article or overwrites the row sharing its url hash.
func (r *PostgresRepository) UpsertArticle(ctx context.Context, a domain.Article) (domain.UpsertResult, error) {
	query, args, err := r.sq.Insert("articles").
		Columns("source_id", "category_id", "author_id", "title", "description",
			"content", "url", "url_hash", "image_url", "published_at").
		Values(a.SourceID, a.CategoryID, a.AuthorID, a.Title, nullString(a.Description),
			nullString(a.Content), a.URL, a.URLHash, nullString(a.ImageURL), a.PublishedAt).
		Suffix(`ON CONFLICT (url_hash) DO UPDATE
			SET source_id = EXCLUDED.source_id,
			    category_id = EXCLUDED.category_id,
			    author_id = EXCLUDED.author_id,
			    title = EXCLUDED.title,
			    description = EXCLUDED.description,
			    content = EXCLUDED.content,
			    url = EXCLUDED.url,
			    image_url = EXCLUDED.image_url,
			    published_at = EXCLUDED.published_at,
			    updated_at = NOW()
			RETURNING id, (xmax = 0) AS created`).
		ToSql()
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("build article upsert: %w", err)
	}

	var res domain.UpsertResult
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&res.ID, &res.Created); err != nil {
		return domain.UpsertResult{}, fmt.Errorf("upsert article: %w", err)
	}
	return res, nil
}

// ListArticles filters, orders (newest first, undated last) and paginates articles.
func (r *PostgresRepository) ListArticles(ctx context.Context, f domain.ArticleFilter) (domain.ArticlePage, error) {
	page, perPage := f.Paging()
	conds := filterConditions(f)

	count := r.sq.Select("COUNT(*)").From("articles a")
	for _, c := range conds {
		count = count.Where(c)
	}
	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return domain.ArticlePage{}, fmt.Errorf("count articles: %w", err)
	}

	list := r.articleViews().
		OrderBy("a.published_at DESC NULLS LAST", "a.id DESC").
		Limit(uint64(perPage)).
		Offset(uint64(f.Offset()))
	for _, c := range conds {
		list = list.Where(c)
	}
	listSQL, listArgs, err := list.ToSql()
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("build list query: %w", err)
	}

	var views []domain.ArticleView
	if err := r.db.SelectContext(ctx, &views, listSQL, listArgs...); err != nil {
		return domain.ArticlePage{}, fmt.Errorf("list articles: %w", err)
	}
	return domain.NewArticlePage(views, total, page, perPage), nil
}

// GetArticle implements ports.ArticleReader.
func (r *PostgresRepository) GetArticle(ctx context.Context, id int64) (domain.ArticleView, error) {
	query, args, err := r.articleViews().Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return domain.ArticleView{}, fmt.Errorf("build article query: %w", err)
	}

	var v domain.ArticleView
	if err := r.db.GetContext(ctx, &v, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ArticleView{}, fmt.Errorf("article %d: %w", id, domain.ErrNotFound)
		}
		return domain.ArticleView{}, fmt.Errorf("query article %d: %w", id, err)
	}
	return v, nil
}

// ListSources implements ports.ArticleReader.
func (r *PostgresRepository) ListSources(ctx context.Context, activeOnly bool) ([]domain.Source, error) {
	b := r.sq.Select(sourceColumns...).From("sources").OrderBy("name")
	if activeOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	out := []domain.Source{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return out, nil
}

// ListCategories implements ports.ArticleReader.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query, args, err := r.sq.Select("id", "name", "slug").From("categories").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build categories query: %w", err)
	}

	out := []domain.Category{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// GetPreferences implements ports.PreferenceStore.
func (r *PostgresRepository) GetPreferences(ctx context.Context, userID int64) (domain.UserPreference, error) {
	query, args, err := r.sq.Select("user_id", "preferred_sources", "preferred_categories", "preferred_authors").
		From("user_preferences").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("build preferences query: %w", err)
	}

	var p domain.UserPreference
	err = r.db.QueryRowxContext(ctx, query, args...).Scan(
		&p.UserID,
		(*pq.Int64Array)(&p.PreferredSources),
		(*pq.Int64Array)(&p.PreferredCategories),
		(*pq.Int64Array)(&p.PreferredAuthors),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserPreference{}, fmt.Errorf("preferences of user %d: %w", userID, domain.ErrNotFound)
		}
		return domain.UserPreference{}, fmt.Errorf("query preferences: %w", err)
	}
	return p, nil
}

// SavePreferences implements ports.PreferenceStore.
func (r *PostgresRepository) SavePreferences(ctx context.Context, p domain.UserPreference) (domain.UserPreference, error) {
	query, args, err := r.sq.Insert("user_preferences").
		Columns("user_id", "preferred_sources", "preferred_categories", "preferred_authors").
		Values(p.UserID, int64Array(p.PreferredSources), int64Array(p.PreferredCategories), int64Array(p.PreferredAuthors)).
		Suffix(`ON CONFLICT (user_id) DO UPDATE
			SET preferred_sources = EXCLUDED.preferred_sources,
			    preferred_categories = EXCLUDED.preferred_categories,
			    preferred_authors = EXCLUDED.preferred_authors,
			    updated_at = NOW()`).
		ToSql()
	if err != nil {
		return domain.UserPreference{}, fmt.Errorf("build preferences upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.UserPreference{}, fmt.Errorf("save preferences: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) articleViews() sq.SelectBuilder {
	return r.sq.Select(articleViewColumns...).
		From("articles a").
		Join("sources s ON s.id = a.source_id").
		LeftJoin("categories c ON c.id = a.category_id").
		LeftJoin("authors au ON au.id = a.author_id")
}

func filterConditions(f domain.ArticleFilter) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if f.SourceID != 0 {
		conds = append(conds, sq.Eq{"a.source_id": f.SourceID})
	}
	if f.CategoryID != 0 {
		conds = append(conds, sq.Eq{"a.category_id": f.CategoryID})
	}
	if f.FromDate != nil {
		conds = append(conds, sq.GtOrEq{"a.published_at": *f.FromDate})
	}
	if f.ToDate != nil {
		conds = append(conds, sq.LtOrEq{"a.published_at": *f.ToDate})
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := "%" + likeEscaper.Replace(kw) + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"a.title": pattern},
			sq.ILike{"a.description": pattern},
			sq.ILike{"a.content": pattern},
		})
	}
	if p := f.Preferences; p != nil && !p.Empty() {
		var anyOf sq.Or
		if len(p.PreferredSources) > 0 {
			anyOf = append(anyOf, sq.Eq{"a.source_id": p.PreferredSources})
		}
		if len(p.PreferredCategories) > 0 {
			anyOf = append(anyOf, sq.Eq{"a.category_id": p.PreferredCategories})
		}
		if len(p.PreferredAuthors) > 0 {
			anyOf = append(anyOf, sq.Eq{"a.author_id": p.PreferredAuthors})
		}
		conds = append(conds, anyOf)
	}
	return conds
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Array(ids []int64) pq.Int64Array {
	if ids == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(ids)
}
