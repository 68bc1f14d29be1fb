package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"

	"library-service/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(fmt.Errorf("scan: %w", sql.ErrNoRows)), ErrNotFound)
	assert.ErrorIs(t, classify(&pq.Error{Code: "23505", Constraint: "books_title_key"}), ErrDuplicate)
	assert.ErrorIs(t, classify(&pq.Error{Code: "23503"}), ErrForeignKey)
	assert.ErrorIs(t, classify(&pq.Error{Code: "23514"}), ErrInvalidInput)
	assert.ErrorIs(t, classify(&pq.Error{Code: "22P02"}), ErrInvalidInput)

	other := &pq.Error{Code: "40001"}
	assert.Equal(t, error(other), classify(other))
}

// openTestStore connects to TEST_DATABASE_URL and applies the schema.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := NewStore(url, 10)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type catalogFixture struct {
	user  *models.User
	genre *models.Genre
	book  *models.Book
}

func seedCatalog(t *testing.T, s *Store, stock int) catalogFixture {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.New().String()

	user := &models.User{ID: uuid.New().String(), Email: "reader-" + suffix + "@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, user))

	genre := &models.Genre{ID: uuid.New().String(), Name: "Genre " + suffix}
	require.NoError(t, s.CreateGenre(ctx, genre))

	book := &models.Book{
		ID:              uuid.New().String(),
		Title:           "Book " + suffix,
		Writer:          "Writer",
		Publisher:       "Publisher",
		PublicationYear: 2020,
		Price:           decimal.RequireFromString("12.50"),
		StockQuantity:   stock,
		Condition:       models.ConditionNew,
		GenreID:         genre.ID,
	}
	require.NoError(t, s.CreateBook(ctx, book))

	return catalogFixture{user: user, genre: genre, book: book}
}

func buy(ctx context.Context, s *Store, f catalogFixture, quantity int) (string, error) {
	txnID := uuid.New().String()
	err := s.RunCheckout(ctx, func(tx CheckoutTx) error {
		if _, err := tx.GetUserByID(ctx, f.user.ID); err != nil {
			return err
		}
		books, err := tx.LockBooks(ctx, []string{f.book.ID})
		if err != nil {
			return err
		}
		if len(books) != 1 {
			return ErrNotFound
		}
		txn := &models.Transaction{
			ID:          txnID,
			UserID:      f.user.ID,
			TotalPrice:  books[0].Price.Mul(decimal.NewFromInt(int64(quantity))),
			TotalAmount: quantity,
		}
		lines := []models.TransactionBook{{BookID: f.book.ID, Quantity: quantity}}
		if err := tx.InsertTransaction(ctx, txn, lines); err != nil {
			return err
		}
		return tx.DecrementStock(ctx, f.book.ID, quantity)
	})
	return txnID, err
}

func TestCheckoutCommitsAndReadsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedCatalog(t, s, 5)

	txnID, err := buy(ctx, s, f, 2)
	require.NoError(t, err)

	book, err := s.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, book.StockQuantity)

	view, err := s.GetTransactionView(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, view.User.ID)
	assert.True(t, decimal.RequireFromString("25.00").Equal(view.TotalPrice))
	require.Len(t, view.Books, 1)
	assert.Equal(t, 2, view.Books[0].Quantity)
	assert.Equal(t, f.book.Title, view.Books[0].Book.Title)

	views, total, err := s.ListTransactions(ctx, models.TransactionQuery{
		Pagination: models.Pagination{Page: 1, Limit: 10},
		Search:     txnID[:8],
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
	assert.NotEmpty(t, views)
}

func TestCheckoutRollsBackOnInsufficientStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedCatalog(t, s, 1)

	txnID, err := buy(ctx, s, f, 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	book, err := s.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, book.StockQuantity)

	_, err = s.GetTransactionView(ctx, txnID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedCatalog(t, s, 5)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = buy(ctx, s, f, 3)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	book, err := s.GetBook(ctx, f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, book.StockQuantity)
}

func TestSoftDeletes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedCatalog(t, s, 5)

	assert.ErrorIs(t, s.SoftDeleteGenre(ctx, f.genre.ID), ErrForeignKey)

	require.NoError(t, s.SoftDeleteBook(ctx, f.book.ID))
	assert.ErrorIs(t, s.SoftDeleteBook(ctx, f.book.ID), ErrNotFound)

	_, err := s.GetBookView(ctx, f.book.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = buy(ctx, s, f, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SoftDeleteGenre(ctx, f.genre.ID))
	_, err = s.GetGenre(ctx, f.genre.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogConstraints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedCatalog(t, s, 5)

	dup := *f.book
	dup.ID = uuid.New().String()
	assert.ErrorIs(t, s.CreateBook(ctx, &dup), ErrDuplicate)

	orphan := *f.book
	orphan.ID = uuid.New().String()
	orphan.Title = "Orphan " + orphan.ID
	orphan.GenreID = uuid.New().String()
	assert.ErrorIs(t, s.CreateBook(ctx, &orphan), ErrForeignKey)

	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{ID: uuid.New().String(), Email: f.user.Email, PasswordHash: "x"}), ErrDuplicate)

	negative := -1
	_, err := s.UpdateBook(ctx, f.book.ID, BookPatch{StockQuantity: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStatisticsQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	f := seedCatalog(t, s, 5)

	_, err := buy(ctx, s, f, 1)
	require.NoError(t, err)

	count, avg, err := s.TransactionTotals(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(1))
	assert.True(t, avg.IsPositive())

	sales, err := s.GenreSales(ctx)
	require.NoError(t, err)
	found := false
	for _, gs := range sales {
		if gs.GenreID == f.genre.ID {
			found = true
			assert.Equal(t, int64(1), gs.Count)
		}
	}
	assert.True(t, found)
}
