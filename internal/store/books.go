package store

import (
	"context"
	"fmt"
	"strings"

	"library-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const bookViewColumns = `
	b.id, b.title, b.writer, b.publisher, b.publication_year, b.description,
	b.cover_image, b.price, b.stock_quantity, b.condition, g.name AS genre`

// BookPatch holds the editable fields of a book. Nil fields are left as is.
type BookPatch struct {
	Description   *string
	Price         *decimal.Decimal
	StockQuantity *int
}

// CreateBook inserts a book. A missing or deleted genre surfaces as
// ErrForeignKey and a taken title as ErrDuplicate.
func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var genreExists bool
		err := tx.GetContext(ctx, &genreExists,
			"SELECT EXISTS(SELECT 1 FROM genres WHERE id = $1 AND deleted_at IS NULL)", book.GenreID)
		if err != nil {
			return classify(err)
		}
		if !genreExists {
			return ErrForeignKey
		}

		query := `
			INSERT INTO books (id, title, writer, publisher, publication_year, description,
				cover_image, price, stock_quantity, condition, genre_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, updated_at`

		err = tx.QueryRowxContext(ctx, query,
			book.ID, book.Title, book.Writer, book.Publisher, book.PublicationYear, book.Description,
			book.CoverImage, book.Price, book.StockQuantity, book.Condition, book.GenreID).
			Scan(&book.CreatedAt, &book.UpdatedAt)
		return classify(err)
	})
}

// GetBook retrieves a non-deleted book row.
func (s *Store) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := s.db.GetContext(ctx, &book,
		"SELECT * FROM books WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return nil, classify(err)
	}
	return &book, nil
}

// GetBookView retrieves a non-deleted book with its genre name.
func (s *Store) GetBookView(ctx context.Context, id string) (*models.BookView, error) {
	var view models.BookView
	query := "SELECT" + bookViewColumns + `
		FROM books b JOIN genres g ON g.id = b.genre_id
		WHERE b.id = $1 AND b.deleted_at IS NULL`

	if err := s.db.GetContext(ctx, &view, query, id); err != nil {
		return nil, classify(err)
	}
	return &view, nil
}

// ListBooks returns one page of non-deleted books. A non-empty genreID
// restricts the listing to that genre.
func (s *Store) ListBooks(ctx context.Context, genreID string, q models.BookQuery) ([]models.BookView, int64, error) {
	where := []string{"b.deleted_at IS NULL"}
	args := []interface{}{}

	if genreID != "" {
		args = append(args, genreID)
		where = append(where, fmt.Sprintf("b.genre_id = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = append(where, fmt.Sprintf("b.title ILIKE $%d", len(args)))
	}
	if q.Condition.Valid() {
		args = append(args, q.Condition)
		where = append(where, fmt.Sprintf("b.condition = $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM books b WHERE " + whereSQL
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, classify(err)
	}

	var order []string
	if q.OrderByTitle != "" {
		order = append(order, "b.title "+q.OrderByTitle.SQL())
	}
	if q.OrderByPublishDate != "" {
		order = append(order, "b.publication_year "+q.OrderByPublishDate.SQL())
	}
	if len(order) == 0 {
		order = append(order, "b.created_at DESC")
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`SELECT %s
		FROM books b JOIN genres g ON g.id = b.genre_id
		WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		bookViewColumns, whereSQL, strings.Join(order, ", "), len(args)-1, len(args))

	books := []models.BookView{}
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, classify(err)
	}
	return books, total, nil
}

// UpdateBook applies patch to a non-deleted book and returns the result.
func (s *Store) UpdateBook(ctx context.Context, id string, patch BookPatch) (*models.Book, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	if patch.Description != nil {
		args = append(args, *patch.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if patch.Price != nil {
		args = append(args, *patch.Price)
		sets = append(sets, fmt.Sprintf("price = $%d", len(args)))
	}
	if patch.StockQuantity != nil {
		args = append(args, *patch.StockQuantity)
		sets = append(sets, fmt.Sprintf("stock_quantity = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE books SET %s WHERE id = $%d AND deleted_at IS NULL RETURNING *",
		strings.Join(sets, ", "), len(args))

	var book models.Book
	if err := s.db.GetContext(ctx, &book, query, args...); err != nil {
		return nil, classify(err)
	}
	return &book, nil
}

// SoftDeleteBook marks a book deleted. Deleting twice returns ErrNotFound.
func (s *Store) SoftDeleteBook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE books SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
