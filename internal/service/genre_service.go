package service

import (
	"context"
	"errors"
	"strings"

	"library-service/internal/apperror"
	"library-service/internal/models"
	"library-service/internal/store"
	"library-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultGenres are created at startup when seeding is enabled.
var DefaultGenres = []string{
	"Fiction", "Non-Fiction", "Mystery", "Thriller", "Romance",
	"Science Fiction", "Fantasy", "Horror", "Biography", "Autobiography",
	"History", "Science", "Technology", "Self-Help", "Business",
	"Education", "Philosophy", "Psychology", "Religion", "Poetry",
	"Drama", "Comedy", "Adventure", "Children", "Young Adult",
	"Comics", "Graphic Novel", "Cookbook", "Travel", "Art",
	"Music", "Sports", "Health", "Fitness", "Medical",
	"Law", "Politics", "Economics", "Mathematics", "Programming",
}

type GenreStore interface {
	CreateGenre(ctx context.Context, genre *models.Genre) error
	GetGenre(ctx context.Context, id string) (*models.Genre, error)
	ListGenres(ctx context.Context, q models.GenreQuery) ([]models.Genre, int64, error)
	UpdateGenre(ctx context.Context, id, name string) (*models.Genre, error)
	SoftDeleteGenre(ctx context.Context, id string) error
	SeedGenres(ctx context.Context, names []string) (int, error)
}

type GenreService struct {
	store  GenreStore
	logger *zap.Logger
}

func NewGenreService(store GenreStore) *GenreService {
	return &GenreService{
		store:  store,
		logger: util.GetLogger(),
	}
}

type GenreRequest struct {
	Name string `json:"name"`
}

func (s *GenreService) CreateGenre(ctx context.Context, req *GenreRequest) (*models.Genre, error) {
	ctx, span := util.StartSpan(ctx, "GenreService.CreateGenre")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation("Genre name is required.")
	}

	genre := &models.Genre{ID: uuid.New().String(), Name: name}
	err := s.store.CreateGenre(ctx, genre)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperror.NewConflict("Genre with this name already exists.")
	}
	if err != nil {
		s.logger.Error("Failed to create genre", zap.String("name", name), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while creating genre.")
	}
	return genre, nil
}

func (s *GenreService) GetGenre(ctx context.Context, id string) (*models.Genre, error) {
	ctx, span := util.StartSpan(ctx, "GenreService.GetGenre", attribute.String("genre_id", id))
	defer span.End()

	if !isUUID(id) {
		return nil, apperror.NewValidation("Invalid genre ID format.")
	}

	genre, err := s.store.GetGenre(ctx, canonicalID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Genre not found")
	}
	if err != nil {
		s.logger.Error("Failed to get genre", zap.String("genre_id", id), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while retrieving genre by ID.")
	}
	return genre, nil
}

func (s *GenreService) ListGenres(ctx context.Context, q models.GenreQuery) ([]models.Genre, models.PageMeta, error) {
	ctx, span := util.StartSpan(ctx, "GenreService.ListGenres")
	defer span.End()

	q.Normalize()
	if err := validateSort(map[string]models.SortOrder{"orderByName": q.OrderByName}); err != nil {
		return nil, models.PageMeta{}, err
	}

	genres, total, err := s.store.ListGenres(ctx, q)
	if err != nil {
		s.logger.Error("Failed to list genres", zap.Error(err))
		return nil, models.PageMeta{}, apperror.Wrap(err, "Failed to fetch genres")
	}
	return genres, q.Meta(total), nil
}

func (s *GenreService) UpdateGenre(ctx context.Context, id string, req *GenreRequest) (*models.Genre, error) {
	ctx, span := util.StartSpan(ctx, "GenreService.UpdateGenre", attribute.String("genre_id", id))
	defer span.End()

	if !isUUID(id) {
		return nil, apperror.NewValidation("Invalid genre ID format.")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation("Genre name is required.")
	}

	genre, err := s.store.UpdateGenre(ctx, canonicalID(id), name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperror.NewNotFound("Genre not found")
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperror.NewConflict("A genre with this name already exists.")
	case err != nil:
		s.logger.Error("Failed to update genre", zap.String("genre_id", id), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while updating genre.")
	}
	return genre, nil
}

// DeleteGenre soft deletes a genre no live book belongs to.
func (s *GenreService) DeleteGenre(ctx context.Context, id string) error {
	ctx, span := util.StartSpan(ctx, "GenreService.DeleteGenre", attribute.String("genre_id", id))
	defer span.End()

	if !isUUID(id) {
		return apperror.NewValidation("Invalid genre ID format.")
	}

	err := s.store.SoftDeleteGenre(ctx, canonicalID(id))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFound("Genre not found or already removed")
	case errors.Is(err, store.ErrForeignKey):
		return apperror.NewConflict("Cannot delete genre while it is still associated with some books.")
	case err != nil:
		s.logger.Error("Failed to delete genre", zap.String("genre_id", id), zap.Error(err))
		return apperror.Wrap(err, "Database error while deleting genre.")
	}
	return nil
}

// SeedDefaultGenres creates any of DefaultGenres that are missing.
func (s *GenreService) SeedDefaultGenres(ctx context.Context) error {
	inserted, err := s.store.SeedGenres(ctx, DefaultGenres)
	if err != nil {
		return err
	}
	s.logger.Info("Genres seeded", zap.Int("inserted", inserted))
	return nil
}
