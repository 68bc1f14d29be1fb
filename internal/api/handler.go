package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"library-service/internal/models"
	"library-service/internal/service"
	"library-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type TransactionService interface {
	CreateTransaction(ctx context.Context, userID string, req *service.CreateTransactionRequest) (*service.CreateTransactionResponse, error)
	ListTransactions(ctx context.Context, q models.TransactionQuery) ([]models.TransactionView, models.PageMeta, error)
	GetTransaction(ctx context.Context, id string) (*models.TransactionView, error)
	GetStatistics(ctx context.Context) (*models.TransactionStatistics, error)
}

type BookService interface {
	CreateBook(ctx context.Context, req *service.CreateBookRequest) (*service.CreateBookResponse, error)
	GetBook(ctx context.Context, id string) (*models.BookView, error)
	ListBooks(ctx context.Context, q models.BookQuery) ([]models.BookView, models.PageMeta, error)
	ListBooksByGenre(ctx context.Context, genreID string, q models.BookQuery) ([]models.BookView, models.PageMeta, error)
	UpdateBook(ctx context.Context, id string, req *service.UpdateBookRequest) (*service.UpdateBookResponse, error)
	DeleteBook(ctx context.Context, id string) error
}

type GenreService interface {
	CreateGenre(ctx context.Context, req *service.GenreRequest) (*models.Genre, error)
	GetGenre(ctx context.Context, id string) (*models.Genre, error)
	ListGenres(ctx context.Context, q models.GenreQuery) ([]models.Genre, models.PageMeta, error)
	UpdateGenre(ctx context.Context, id string, req *service.GenreRequest) (*models.Genre, error)
	DeleteGenre(ctx context.Context, id string) error
}

type AuthService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *service.LoginRequest) (*service.LoginResponse, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups what the handlers call. Readiness maps a dependency name
// to its probe.
type Services struct {
	Transactions TransactionService
	Books        BookService
	Genres       GenreService
	Auth         AuthService
	Readiness    map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	transactions TransactionService
	books        BookService
	genres       GenreService
	auth         AuthService
	readiness    map[string]Pinger
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services) *Handler {
	return &Handler{
		transactions: services.Transactions,
		books:        services.Books,
		genres:       services.Genres,
		auth:         services.Auth,
		readiness:    services.Readiness,
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.GET("/me", h.authMiddleware(), h.me)
	}

	protected := api.Group("", h.authMiddleware())

	books := protected.Group("/books")
	{
		books.GET("", h.listBooks)
		books.POST("", h.createBook)
		books.GET("/genre/:genre_id", h.listBooksByGenre)
		books.GET("/:book_id", h.getBook)
		books.PATCH("/:book_id", h.updateBook)
		books.DELETE("/:book_id", h.deleteBook)
	}

	genres := protected.Group("/genre")
	{
		genres.GET("", h.listGenres)
		genres.POST("", h.createGenre)
		genres.GET("/:genre_id", h.getGenre)
		genres.PATCH("/:genre_id", h.updateGenre)
		genres.DELETE("/:genre_id", h.deleteGenre)
	}

	transactions := protected.Group("/transactions")
	{
		transactions.GET("/statistics", h.getStatistics)
		transactions.GET("", h.listTransactions)
		transactions.GET("/:transaction_id", h.getTransaction)
		transactions.POST("", h.createTransaction)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, dep := range h.readiness {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
