package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source is a news provider row owned by the sources table.
type Source struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	APIIdentifier string    `db:"api_identifier" json:"api_identifier"`
	WebsiteURL    string    `db:"website_url" json:"website_url,omitempty"`
	Description   string    `db:"description" json:"description,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Category groups articles by the section label reported by a source.
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Author is scoped to its source: equal names from different sources are distinct rows.
type Author struct {
	ID       int64  `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	SourceID int64  `db:"source_id" json:"source_id"`
}

// NormalizedArticle is the source-independent shape produced by the transformer.
// Empty strings stand for absent values.
type NormalizedArticle struct {
	Title        string
	URL          string
	Description  string
	Content      string
	ImageURL     string
	PublishedAt  *time.Time
	AuthorName   string
	CategoryName string
	URLHash      string
}

// Article is the persisted record, keyed by URLHash.
type Article struct {
	ID          int64      `db:"id" json:"id"`
	SourceID    int64      `db:"source_id" json:"source_id"`
	CategoryID  *int64     `db:"category_id" json:"category_id"`
	AuthorID    *int64     `db:"author_id" json:"author_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description,omitempty"`
	Content     string     `db:"content" json:"content,omitempty"`
	URL         string     `db:"url" json:"url"`
	URLHash     string     `db:"url_hash" json:"url_hash"`
	ImageURL    string     `db:"image_url" json:"image_url,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ArticleView is an article joined with the display names of its associations.
type ArticleView struct {
	Article
	SourceName   string  `db:"source_name" json:"source_name"`
	CategoryName *string `db:"category_name" json:"category_name"`
	AuthorName   *string `db:"author_name" json:"author_name"`
}

// UpsertResult reports whether an upsert created a new row.
type UpsertResult struct {
	ID      int64
	Created bool
}

// UserPreference lists the ids a user wants in the personalized feed.
type UserPreference struct {
	UserID              int64   `json:"user_id"`
	PreferredSources    []int64 `json:"preferred_sources"`
	PreferredCategories []int64 `json:"preferred_categories"`
	PreferredAuthors    []int64 `json:"preferred_authors"`
}

// Empty reports whether no preference list has entries.
func (p UserPreference) Empty() bool {
	return len(p.PreferredSources) == 0 && len(p.PreferredCategories) == 0 && len(p.PreferredAuthors) == 0
}

// ArticleFilter narrows article listings. Preferences, when set and non-empty,
// adds an OR over the preferred ids.
type ArticleFilter struct {
	Keyword     string
	SourceID    int64
	CategoryID  int64
	FromDate    *time.Time
	ToDate      *time.Time
	Preferences *UserPreference
	Page        int
	PerPage     int
}

// ArticlePage is one page of a listing.
type ArticlePage struct {
	Data     []ArticleView `json:"data"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PerPage  int           `json:"per_page"`
	LastPage int           `json:"last_page"`
}

// ContentHash returns the hex SHA-256 digest of the article URL.
func ContentHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Listing defaults.
const (
	DefaultPerPage = 12
	MaxPerPage     = 100
	MaxPage        = 1_000_000
)

// Paging returns the requested page and page size clamped to sane bounds.
// (page-1)*perPage stays far below the int range.
func (f ArticleFilter) Paging() (page, perPage int) {
	page, perPage = f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// NewArticlePage assembles a page; LastPage is at least 1.
func NewArticlePage(data []ArticleView, total, page, perPage int) ArticlePage {
	if data == nil {
		data = []ArticleView{}
	}
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	return ArticlePage{Data: data, Total: total, Page: page, PerPage: perPage, LastPage: last}
}

// Offset is the number of rows skipped before the requested page.
func (f ArticleFilter) Offset() int {
	page, perPage := f.Paging()
	return (page - 1) * perPage
}
