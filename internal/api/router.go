package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"NewsAggregator/internal/ports"
)

// Deps lists what the router serves from.
type Deps struct {
	Reader      ports.ArticleReader
	Preferences ports.PreferenceStore
	// Metrics is mounted on /metrics when set.
	Metrics   http.Handler
	JWTSecret string
	Logger    *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")

	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	h := NewHandler(deps.Reader, deps.Preferences, logger)
	requireAuth := RequireAuth(deps.JWTSecret)

	v1 := router.Group("/api")
	v1.GET("/articles", OptionalAuth(deps.JWTSecret), h.ListArticles)
	v1.GET("/articles/search", h.SearchArticles)
	v1.GET("/articles/personalized", requireAuth, h.PersonalizedArticles)
	v1.GET("/articles/:id", h.GetArticle)
	v1.GET("/sources", h.ListSources)
	v1.GET("/categories", h.ListCategories)

	prefs := v1.Group("/preferences", requireAuth)
	prefs.GET("", h.GetPreferences)
	prefs.PUT("", h.UpdatePreferences)

	return router
}

func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status_code", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
