package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"library-service/internal/apperror"
	"library-service/internal/models"
	"library-service/internal/redisclient"
	"library-service/internal/store"
	"library-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BookStore interface {
	CreateBook(ctx context.Context, book *models.Book) error
	GetBookView(ctx context.Context, id string) (*models.BookView, error)
	ListBooks(ctx context.Context, genreID string, q models.BookQuery) ([]models.BookView, int64, error)
	UpdateBook(ctx context.Context, id string, patch store.BookPatch) (*models.Book, error)
	SoftDeleteBook(ctx context.Context, id string) error
	GetGenre(ctx context.Context, id string) (*models.Genre, error)
}

// BookService manages the catalog. Book details are cached when a cache is
// configured.
type BookService struct {
	store    BookStore
	cache    Cache
	events   EventPublisher
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// maxBookCacheTTL bounds how long a book detail filled by a read that raced a
// checkout can outlive the checkout's invalidation.
const maxBookCacheTTL = 10 * time.Second

func NewBookService(store BookStore, cache Cache, events EventPublisher, cacheTTL time.Duration) *BookService {
	if cacheTTL <= 0 || cacheTTL > maxBookCacheTTL {
		cacheTTL = maxBookCacheTTL
	}
	return &BookService{
		store:    store,
		cache:    cache,
		events:   events,
		logger:   util.GetLogger(),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

type CreateBookRequest struct {
	Title           string               `json:"title"`
	Writer          string               `json:"writer"`
	Publisher       string               `json:"publisher"`
	PublicationYear int                  `json:"publicationYear"`
	Description     *string              `json:"description"`
	CoverImage      *string              `json:"coverImage"`
	Price           *decimal.Decimal     `json:"price"`
	StockQuantity   *int                 `json:"stockQuantity"`
	Condition       models.BookCondition `json:"condition"`
	GenreID         string               `json:"genreId"`
}

type CreateBookResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateBookRequest struct {
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stockQuantity"`
}

type UpdateBookResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CreateBook adds a book to the catalog.
func (s *BookService) CreateBook(ctx context.Context, req *CreateBookRequest) (*CreateBookResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookService.CreateBook")
	defer span.End()

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.GenreID) == "" || req.Price == nil || req.StockQuantity == nil {
		return nil, apperror.NewValidation(
			"Missing required fields: title, genreId, price, and stockQuantity are required.")
	}
	if req.Price.IsNegative() || *req.StockQuantity < 0 {
		return nil, apperror.NewValidation("Price and stockQuantity must be non-negative values.")
	}
	if req.PublicationYear > s.now().Year() {
		return nil, apperror.NewValidation("Publication year cannot be in the future.")
	}
	if req.Condition == "" {
		req.Condition = models.ConditionNew
	}
	if !req.Condition.Valid() {
		return nil, apperror.NewValidation(
			fmt.Sprintf("Invalid condition %q.", req.Condition), "condition must be one of NEW, LIKE_NEW, USED")
	}
	if !isUUID(req.GenreID) {
		return nil, apperror.NewValidation("Invalid genre ID format.")
	}

	book := &models.Book{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Writer:          req.Writer,
		Publisher:       req.Publisher,
		PublicationYear: req.PublicationYear,
		Description:     req.Description,
		CoverImage:      req.CoverImage,
		Price:           *req.Price,
		StockQuantity:   *req.StockQuantity,
		Condition:       req.Condition,
		GenreID:         canonicalID(req.GenreID),
	}

	err := s.store.CreateBook(ctx, book)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperror.NewConflict(fmt.Sprintf("A book with the title %q already exists.", req.Title))
	case errors.Is(err, store.ErrForeignKey):
		return nil, apperror.NewNotFound(fmt.Sprintf("Genre with ID %q not found.", req.GenreID))
	case errors.Is(err, store.ErrInvalidInput):
		return nil, apperror.NewValidation("Invalid data provided for creating book.")
	case err != nil:
		s.logger.Error("Failed to create book", zap.String("title", req.Title), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while creating book.")
	}

	s.logger.Info("Book created", zap.String("book_id", book.ID), zap.String("title", book.Title))
	return &CreateBookResponse{ID: book.ID, Title: book.Title, CreatedAt: book.CreatedAt}, nil
}

// GetBook returns a non-deleted book with its genre name.
func (s *BookService) GetBook(ctx context.Context, id string) (*models.BookView, error) {
	ctx, span := util.StartSpan(ctx, "BookService.GetBook", attribute.String("book_id", id))
	defer span.End()

	if !isUUID(id) {
		return nil, apperror.NewValidation("Invalid book ID format")
	}
	id = canonicalID(id)
	key := redisclient.BookKey(id)

	if s.cache != nil {
		var cached models.BookView
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Book cache read failed", zap.String("book_id", id), zap.Error(err))
		}
		if hit {
			util.CacheRequestsTotal.WithLabelValues("book", "hit").Inc()
			return &cached, nil
		}
		util.CacheRequestsTotal.WithLabelValues("book", "miss").Inc()
	}

	view, err := s.store.GetBookView(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Book not found")
	}
	if err != nil {
		s.logger.Error("Failed to get book", zap.String("book_id", id), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while retrieving book by ID.")
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, view, s.cacheTTL); err != nil {
			s.logger.Warn("Book cache write failed", zap.String("book_id", id), zap.Error(err))
		}
	}
	return view, nil
}

// ListBooks returns one page of the catalog.
func (s *BookService) ListBooks(ctx context.Context, q models.BookQuery) ([]models.BookView, models.PageMeta, error) {
	ctx, span := util.StartSpan(ctx, "BookService.ListBooks")
	defer span.End()

	return s.listBooks(ctx, "", q)
}

// ListBooksByGenre returns one page of the books in a genre. The genre must
// exist.
func (s *BookService) ListBooksByGenre(ctx context.Context, genreID string, q models.BookQuery) ([]models.BookView, models.PageMeta, error) {
	ctx, span := util.StartSpan(ctx, "BookService.ListBooksByGenre", attribute.String("genre_id", genreID))
	defer span.End()

	if !isUUID(genreID) {
		return nil, models.PageMeta{}, apperror.NewValidation("Invalid genre ID format")
	}
	genreID = canonicalID(genreID)

	if _, err := s.store.GetGenre(ctx, genreID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.PageMeta{}, apperror.NewNotFound(fmt.Sprintf("Genre with ID %q not found.", genreID))
		}
		s.logger.Error("Failed to get genre", zap.String("genre_id", genreID), zap.Error(err))
		return nil, models.PageMeta{}, apperror.Wrap(err, "Database error while retrieving books by genre.")
	}
	return s.listBooks(ctx, genreID, q)
}

func (s *BookService) listBooks(ctx context.Context, genreID string, q models.BookQuery) ([]models.BookView, models.PageMeta, error) {
	q.Normalize()
	if err := validateSort(map[string]models.SortOrder{
		"orderByTitle":       q.OrderByTitle,
		"orderByPublishDate": q.OrderByPublishDate,
	}); err != nil {
		return nil, models.PageMeta{}, err
	}

	books, total, err := s.store.ListBooks(ctx, genreID, q)
	if err != nil {
		s.logger.Error("Failed to list books", zap.String("genre_id", genreID), zap.Error(err))
		return nil, models.PageMeta{}, apperror.Wrap(err, "Database error while retrieving books.")
	}
	return books, q.Meta(total), nil
}

// UpdateBook changes the description, price or stock of a book.
func (s *BookService) UpdateBook(ctx context.Context, id string, req *UpdateBookRequest) (*UpdateBookResponse, error) {
	ctx, span := util.StartSpan(ctx, "BookService.UpdateBook", attribute.String("book_id", id))
	defer span.End()

	if !isUUID(id) {
		return nil, apperror.NewValidation("Invalid book ID format")
	}
	id = canonicalID(id)

	if req.Description == nil && req.Price == nil && req.StockQuantity == nil {
		return nil, apperror.NewValidation(
			"No valid fields provided for update. Only 'description', 'price', or 'stockQuantity' can be updated.")
	}
	if (req.Price != nil && req.Price.IsNegative()) || (req.StockQuantity != nil && *req.StockQuantity < 0) {
		return nil, apperror.NewValidation("Price and stockQuantity must be non-negative values.")
	}

	book, err := s.store.UpdateBook(ctx, id, store.BookPatch{
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperror.NewNotFound("Book not found")
	case errors.Is(err, store.ErrInvalidInput):
		return nil, apperror.NewValidation("Invalid data provided for updating book.")
	case err != nil:
		s.logger.Error("Failed to update book", zap.String("book_id", id), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while updating book.")
	}

	s.bookChanged(ctx, id, models.EventTypeBookUpdated)
	return &UpdateBookResponse{
		ID:            book.ID,
		Title:         book.Title,
		Price:         book.Price,
		StockQuantity: book.StockQuantity,
		UpdatedAt:     book.UpdatedAt,
	}, nil
}

// DeleteBook soft deletes a book. Past transactions keep referencing it.
func (s *BookService) DeleteBook(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "BookService.DeleteBook", attribute.String("book_id", id))
	defer span.End()

	if !isUUID(id) {
		return apperror.NewValidation("Invalid book ID format")
	}
	id = canonicalID(id)

	err := s.store.SoftDeleteBook(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NewNotFound("Book not found or already removed")
	}
	if err != nil {
		s.logger.Error("Failed to delete book", zap.String("book_id", id), zap.Error(err))
		return apperror.Wrap(err, "Database error while deleting book.")
	}

	s.bookChanged(ctx, id, models.EventTypeBookDeleted)
	return nil
}

// HandleBookChanged drops the cached copy of a book changed on any instance.
func (s *BookService) HandleBookChanged(ctx context.Context, event *models.BookChangedEvent) error {
	s.invalidate(ctx, event.BookID)
	return nil
}

func (s *BookService) bookChanged(ctx context.Context, id, eventType string) {
	s.invalidate(ctx, id)
	if s.events == nil {
		return
	}
	event := &models.BookChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		BookID: id,
	}
	if err := s.events.PublishBookChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish book event",
			zap.String("book_id", id),
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (s *BookService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(ctx, redisclient.BookKey(id), redisclient.StatisticsKey()); err != nil {
		s.logger.Warn("Failed to invalidate book cache", zap.String("book_id", id), zap.Error(err))
	}
}
