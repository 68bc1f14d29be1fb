package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"library-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CheckoutTx is the set of operations a checkout performs inside one
// database transaction.
type CheckoutTx interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	LockBooks(ctx context.Context, ids []string) ([]models.Book, error)
	InsertTransaction(ctx context.Context, txn *models.Transaction, lines []models.TransactionBook) error
	DecrementStock(ctx context.Context, bookID string, quantity int) error
}

// RunCheckout runs fn in a database transaction. Every write fn makes is
// rolled back if fn returns an error.
func (s *Store) RunCheckout(ctx context.Context, fn func(tx CheckoutTx) error) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&checkoutTx{tx: tx})
	})
}

type checkoutTx struct {
	tx *sqlx.Tx
}

func (c *checkoutTx) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := c.tx.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id); err != nil {
		return nil, classify(err)
	}
	return &user, nil
}

// LockBooks loads the non-deleted books among ids and holds row locks on
// them until the transaction ends. Rows are locked in id order so that
// concurrent checkouts over the same books queue instead of deadlocking.
func (c *checkoutTx) LockBooks(ctx context.Context, ids []string) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM books WHERE id IN (?) AND deleted_at IS NULL ORDER BY id FOR UPDATE", ids)
	if err != nil {
		return nil, err
	}
	query = c.tx.Rebind(query)

	var books []models.Book
	if err := c.tx.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, classify(err)
	}
	return books, nil
}

// InsertTransaction writes the transaction row and all of its line items.
func (c *checkoutTx) InsertTransaction(ctx context.Context, txn *models.Transaction, lines []models.TransactionBook) error {
	err := c.tx.QueryRowxContext(ctx, `
		INSERT INTO transactions (id, user_id, total_price, total_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		txn.ID, txn.UserID, txn.TotalPrice, txn.TotalAmount).Scan(&txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", classify(err))
	}

	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].TransactionID = txn.ID
	}

	_, err = c.tx.NamedExecContext(ctx, `
		INSERT INTO transaction_books (transaction_id, book_id, quantity)
		VALUES (:transaction_id, :book_id, :quantity)`, lines)
	if err != nil {
		return fmt.Errorf("failed to insert transaction books: %w", classify(err))
	}
	return nil
}

// DecrementStock takes quantity copies of a book out of stock. The update is
// guarded so stock can never go negative; ErrInsufficientStock is returned
// instead.
func (c *checkoutTx) DecrementStock(ctx context.Context, bookID string, quantity int) error {
	res, err := c.tx.ExecContext(ctx, `
		UPDATE books SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1 AND deleted_at IS NULL`,
		quantity, bookID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientStock
	}
	return nil
}

type transactionRow struct {
	ID           string          `db:"id"`
	TotalPrice   decimal.Decimal `db:"total_price"`
	TotalAmount  int             `db:"total_amount"`
	CreatedAt    time.Time       `db:"created_at"`
	UserID       string          `db:"user_id"`
	UserEmail    string          `db:"user_email"`
	UserUsername *string         `db:"user_username"`
}

func (r transactionRow) view() models.TransactionView {
	return models.TransactionView{
		ID:          r.ID,
		TotalPrice:  r.TotalPrice,
		TotalAmount: r.TotalAmount,
		CreatedAt:   r.CreatedAt,
		User: models.PublicUser{
			ID:       r.UserID,
			Email:    r.UserEmail,
			Username: r.UserUsername,
		},
		Books: []models.TransactionLine{},
	}
}

type lineRow struct {
	TransactionID string          `db:"transaction_id"`
	Quantity      int             `db:"quantity"`
	BookID        string          `db:"book_id"`
	Title         string          `db:"title"`
	Writer        string          `db:"writer"`
	Price         decimal.Decimal `db:"price"`
}

const transactionViewColumns = `
	t.id, t.total_price, t.total_amount, t.created_at,
	u.id AS user_id, u.email AS user_email, u.username AS user_username`

// ListTransactions returns one page of transactions with users and line items.
func (s *Store) ListTransactions(ctx context.Context, q models.TransactionQuery) ([]models.TransactionView, int64, error) {
	whereSQL := "TRUE"
	args := []interface{}{}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		whereSQL = "t.id::text ILIKE $1"
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM transactions t WHERE "+whereSQL, args...); err != nil {
		return nil, 0, classify(err)
	}

	var order []string
	if q.OrderByID != "" {
		order = append(order, "t.id "+q.OrderByID.SQL())
	}
	if q.OrderByAmount != "" {
		order = append(order, "t.total_amount "+q.OrderByAmount.SQL())
	}
	if q.OrderByPrice != "" {
		order = append(order, "t.total_price "+q.OrderByPrice.SQL())
	}
	if len(order) == 0 {
		order = append(order, "t.created_at DESC")
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`SELECT %s
		FROM transactions t JOIN users u ON u.id = t.user_id
		WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		transactionViewColumns, whereSQL, strings.Join(order, ", "), len(args)-1, len(args))

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, classify(err)
	}

	views := make([]models.TransactionView, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		views[i] = row.view()
		ids[i] = row.ID
	}

	lines, err := s.transactionLines(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range views {
		views[i].Books = append(views[i].Books, lines[views[i].ID]...)
		// the list view carries no writer
		for j := range views[i].Books {
			views[i].Books[j].Book.Writer = ""
		}
	}

	return views, total, nil
}

// GetTransactionView retrieves a transaction with its user and line items.
func (s *Store) GetTransactionView(ctx context.Context, id string) (*models.TransactionView, error) {
	var row transactionRow
	query := "SELECT" + transactionViewColumns + `
		FROM transactions t JOIN users u ON u.id = t.user_id
		WHERE t.id = $1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, classify(err)
	}

	lines, err := s.transactionLines(ctx, []string{id})
	if err != nil {
		return nil, err
	}

	view := row.view()
	view.Books = append(view.Books, lines[id]...)
	return &view, nil
}

// transactionLines loads line items for the given transactions, keyed by
// transaction id, joined to the books' current details.
func (s *Store) transactionLines(ctx context.Context, ids []string) (map[string][]models.TransactionLine, error) {
	out := make(map[string][]models.TransactionLine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT tb.transaction_id, tb.quantity, b.id AS book_id, b.title, b.writer, b.price
		FROM transaction_books tb JOIN books b ON b.id = tb.book_id
		WHERE tb.transaction_id IN (?)
		ORDER BY tb.id`, ids)
	if err != nil {
		return nil, err
	}

	var rows []lineRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, classify(err)
	}

	for _, r := range rows {
		out[r.TransactionID] = append(out[r.TransactionID], models.TransactionLine{
			Quantity: r.Quantity,
			Book: models.TransactionLineBook{
				ID:     r.BookID,
				Title:  r.Title,
				Writer: r.Writer,
				Price:  r.Price,
			},
		})
	}
	return out, nil
}

// TransactionTotals returns the number of transactions and their average
// total price.
func (s *Store) TransactionTotals(ctx context.Context) (int64, decimal.Decimal, error) {
	var totals struct {
		Count   int64           `db:"count"`
		Average decimal.Decimal `db:"average"`
	}
	err := s.db.GetContext(ctx, &totals,
		"SELECT COUNT(*) AS count, COALESCE(AVG(total_price), 0) AS average FROM transactions")
	if err != nil {
		return 0, decimal.Zero, classify(err)
	}
	return totals.Count, totals.Average, nil
}

// GenreSales counts sold line items per genre over non-deleted books, best
// selling first.
func (s *Store) GenreSales(ctx context.Context) ([]models.GenreSales, error) {
	var sales []models.GenreSales
	err := s.db.SelectContext(ctx, &sales, `
		SELECT g.id AS genre_id, g.name, COUNT(tb.id) AS count
		FROM transaction_books tb
		JOIN books b ON b.id = tb.book_id AND b.deleted_at IS NULL
		JOIN genres g ON g.id = b.genre_id
		GROUP BY g.id, g.name
		ORDER BY count DESC, g.name ASC`)
	if err != nil {
		return nil, classify(err)
	}
	return sales, nil
}
