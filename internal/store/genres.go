package store

import (
	"context"
	"fmt"
	"strings"

	"library-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (s *Store) CreateGenre(ctx context.Context, genre *models.Genre) error {
	query := `
		INSERT INTO genres (id, name)
		VALUES ($1, $2)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, genre.ID, genre.Name).
		Scan(&genre.CreatedAt, &genre.UpdatedAt)
	return classify(err)
}

// GetGenre retrieves a non-deleted genre
func (s *Store) GetGenre(ctx context.Context, id string) (*models.Genre, error) {
	var genre models.Genre
	err := s.db.GetContext(ctx, &genre,
		"SELECT * FROM genres WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return nil, classify(err)
	}
	return &genre, nil
}

// ListGenres returns one page of non-deleted genres and the total match count.
func (s *Store) ListGenres(ctx context.Context, q models.GenreQuery) ([]models.Genre, int64, error) {
	where := []string{"deleted_at IS NULL"}
	args := []interface{}{}

	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM genres WHERE "+whereSQL, args...); err != nil {
		return nil, 0, classify(err)
	}

	orderSQL := "created_at DESC"
	if q.OrderByName != "" {
		orderSQL = "name " + q.OrderByName.SQL()
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf("SELECT * FROM genres WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		whereSQL, orderSQL, len(args)-1, len(args))

	genres := []models.Genre{}
	if err := s.db.SelectContext(ctx, &genres, query, args...); err != nil {
		return nil, 0, classify(err)
	}
	return genres, total, nil
}

// UpdateGenre renames a non-deleted genre.
func (s *Store) UpdateGenre(ctx context.Context, id, name string) (*models.Genre, error) {
	var genre models.Genre
	err := s.db.GetContext(ctx, &genre, `
		UPDATE genres SET name = $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING *`, name, id)
	if err != nil {
		return nil, classify(err)
	}
	return &genre, nil
}

// SoftDeleteGenre marks a genre deleted. It fails with ErrForeignKey while
// any non-deleted book still belongs to the genre.
func (s *Store) SoftDeleteGenre(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var inUse bool
		err := tx.GetContext(ctx, &inUse,
			"SELECT EXISTS(SELECT 1 FROM books WHERE genre_id = $1 AND deleted_at IS NULL)", id)
		if err != nil {
			return classify(err)
		}
		if inUse {
			return ErrForeignKey
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE genres SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
		if err != nil {
			return classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SeedGenres inserts any of names not already present.
func (s *Store) SeedGenres(ctx context.Context, names []string) (int, error) {
	inserted := 0
	for _, name := range names {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO genres (id, name)
			SELECT $1::uuid, $2::text
			WHERE NOT EXISTS (SELECT 1 FROM genres WHERE name = $2::text AND deleted_at IS NULL)`,
			uuid.New().String(), name)
		if err != nil {
			return inserted, classify(err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}
