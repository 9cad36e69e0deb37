package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"NewsAggregator/internal/domain"
	"NewsAggregator/internal/ports"
)

const dateLayout = "2006-01-02"

// listQuery is the query string shared by the article listings.
type listQuery struct {
	SourceID   int64  `form:"source_id" binding:"omitempty,gt=0"`
	CategoryID int64  `form:"category_id" binding:"omitempty,gt=0"`
	FromDate   string `form:"from_date" binding:"omitempty,datetime=2006-01-02"`
	ToDate     string `form:"to_date" binding:"omitempty,datetime=2006-01-02"`
	Page       *int   `form:"page" binding:"omitempty,gte=1,lte=1000000"`
	PerPage    *int   `form:"per_page" binding:"omitempty,gte=1,lte=100"`
	Keyword    string `form:"keyword" binding:"omitempty,max=255"`
}

// filter converts the query into a store filter. to_date covers the whole day.
func (q listQuery) filter() (domain.ArticleFilter, error) {
	f := domain.ArticleFilter{
		Keyword:    strings.TrimSpace(q.Keyword),
		SourceID:   q.SourceID,
		CategoryID: q.CategoryID,
	}
	if q.Page != nil {
		f.Page = *q.Page
	}
	if q.PerPage != nil {
		f.PerPage = *q.PerPage
	}
	if q.FromDate != "" {
		from, err := time.Parse(dateLayout, q.FromDate)
		if err != nil {
			return f, err
		}
		f.FromDate = &from
	}
	if q.ToDate != "" {
		to, err := time.Parse(dateLayout, q.ToDate)
		if err != nil {
			return f, err
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		f.ToDate = &end
	}
	if f.FromDate != nil && f.ToDate != nil && f.ToDate.Before(*f.FromDate) {
		return f, errors.New("to_date must be equal to or after from_date")
	}
	return f, nil
}

// preferencesRequest carries the lists to replace; omitted lists are kept.
type preferencesRequest struct {
	PreferredSources    *[]int64 `json:"preferred_sources" binding:"omitempty,dive,gt=0"`
	PreferredCategories *[]int64 `json:"preferred_categories" binding:"omitempty,dive,gt=0"`
	PreferredAuthors    *[]int64 `json:"preferred_authors" binding:"omitempty,dive,gt=0"`
}

// Handler serves the read side of the aggregated articles and user preferences.
type Handler struct {
	reader      ports.ArticleReader
	preferences ports.PreferenceStore
	logger      *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(reader ports.ArticleReader, preferences ports.PreferenceStore, logger *slog.Logger) *Handler {
	return &Handler{reader: reader, preferences: preferences, logger: logger}
}

// ListArticles serves GET /api/articles. Authenticated callers get their personalized feed.
func (h *Handler) ListArticles(c *gin.Context) {
	f, ok := h.bindFilter(c)
	if !ok {
		return
	}
	f.Keyword = ""
	if userID, authed := UserID(c); authed {
		if !h.applyPreferences(c, userID, &f) {
			return
		}
	}
	h.respondPage(c, f)
}

// SearchArticles serves GET /api/articles/search.
func (h *Handler) SearchArticles(c *gin.Context) {
	f, ok := h.bindFilter(c)
	if !ok {
		return
	}
	if f.Keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}
	h.respondPage(c, f)
}

// PersonalizedArticles serves GET /api/articles/personalized.
func (h *Handler) PersonalizedArticles(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errMissingToken.Error()})
		return
	}
	f, ok := h.bindFilter(c)
	if !ok {
		return
	}
	f.Keyword = ""
	if !h.applyPreferences(c, userID, &f) {
		return
	}
	h.respondPage(c, f)
}

// GetArticle serves GET /api/articles/:id.
func (h *Handler) GetArticle(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	article, err := h.reader.GetArticle(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": article})
}

// ListSources serves GET /api/sources with active sources only.
func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.reader.ListSources(c.Request.Context(), true)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sources})
}

// ListCategories serves GET /api/categories.
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.reader.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// GetPreferences serves GET /api/preferences. Users without a row get empty lists.
func (h *Handler) GetPreferences(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errMissingToken.Error()})
		return
	}

	pref, err := h.loadPreferences(c, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pref})
}

// UpdatePreferences serves PUT /api/preferences.
func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errMissingToken.Error()})
		return
	}

	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pref, err := h.loadPreferences(c, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.PreferredSources != nil {
		pref.PreferredSources = nonNil(*req.PreferredSources)
	}
	if req.PreferredCategories != nil {
		pref.PreferredCategories = nonNil(*req.PreferredCategories)
	}
	if req.PreferredAuthors != nil {
		pref.PreferredAuthors = nonNil(*req.PreferredAuthors)
	}

	saved, err := h.preferences.SavePreferences(c.Request.Context(), pref)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": saved})
}

func (h *Handler) bindFilter(c *gin.Context) (domain.ArticleFilter, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.ArticleFilter{}, false
	}
	f, err := q.filter()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.ArticleFilter{}, false
	}
	return f, true
}

// applyPreferences narrows f to the user's preferences; without any the feed stays unfiltered.
func (h *Handler) applyPreferences(c *gin.Context, userID int64, f *domain.ArticleFilter) bool {
	pref, err := h.preferences.GetPreferences(c.Request.Context(), userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return true
	case err != nil:
		h.fail(c, err)
		return false
	}
	if !pref.Empty() {
		f.Preferences = &pref
	}
	return true
}

func (h *Handler) loadPreferences(c *gin.Context, userID int64) (domain.UserPreference, error) {
	pref, err := h.preferences.GetPreferences(c.Request.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UserPreference{
			UserID:              userID,
			PreferredSources:    []int64{},
			PreferredCategories: []int64{},
			PreferredAuthors:    []int64{},
		}, nil
	}
	if err != nil {
		return domain.UserPreference{}, err
	}
	pref.PreferredSources = nonNil(pref.PreferredSources)
	pref.PreferredCategories = nonNil(pref.PreferredCategories)
	pref.PreferredAuthors = nonNil(pref.PreferredAuthors)
	return pref, nil
}

func (h *Handler) respondPage(c *gin.Context, f domain.ArticleFilter) {
	page, err := h.reader.ListArticles(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
