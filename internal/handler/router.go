package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shelfmark/backend/internal/metrics"
	"github.com/shelfmark/backend/internal/model"
	"github.com/shelfmark/backend/internal/service"
)

type RouterConfig struct {
	Auth           *service.AuthService
	Catalog        *service.CatalogService
	DB             Pinger
	Limiter        *RateLimiter
	Logger         zerolog.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(cfg.Logger, cfg.Metrics))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	health := NewHealthHandler(cfg.DB)
	router.GET("/", Root)
	router.GET("/ping", Ping)
	router.GET("/healthz", health.Healthz)
	router.GET("/readyz", health.Readyz)
	router.GET("/openapi.json", OpenAPIDoc)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	limit := func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		limit = cfg.Limiter.Middleware()
	}

	authHandler := NewAuthHandler(cfg.Auth)
	requireAuth := AuthMiddleware(cfg.Auth)

	auth := router.Group("/auth")
	auth.POST("/register", limit, authHandler.Register)
	auth.POST("/login", limit, authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/who-i-am", requireAuth, authHandler.WhoAmI)
	auth.GET("/me", requireAuth, authHandler.WhoAmI)
	auth.GET("/google/login", authHandler.GoogleLogin)
	auth.GET("/google/callback", limit, authHandler.GoogleCallback)

	catalogHandler := NewCatalogHandler(cfg.Catalog)
	staffOnly := RequireRole(model.StaffRoles...)

	catalog := router.Group("/author-books", requireAuth)
	catalog.GET("/authors", catalogHandler.ListAuthors)
	catalog.GET("/authors/:id", catalogHandler.GetAuthor)
	catalog.POST("/authors", staffOnly, catalogHandler.CreateAuthor)
	catalog.POST("/authors/:id/books/:bookID", staffOnly, catalogHandler.LinkAuthorBook)
	catalog.GET("/books", catalogHandler.ListBooks)
	catalog.GET("/books/:slug", catalogHandler.GetBook)
	catalog.POST("/books", staffOnly, catalogHandler.CreateBook)

	return router
}
