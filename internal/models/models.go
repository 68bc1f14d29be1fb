package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// BookCondition is the physical condition of a listed copy.
type BookCondition string

const (
	ConditionNew     BookCondition = "NEW"
	ConditionLikeNew BookCondition = "LIKE_NEW"
	ConditionUsed    BookCondition = "USED"
)

// Valid reports whether c is one of the known conditions.
func (c BookCondition) Valid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionUsed:
		return true
	}
	return false
}

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	Username     *string   `db:"username" json:"username"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// PublicUser is the user shape embedded in transaction views.
type PublicUser struct {
	ID       string  `db:"id" json:"id"`
	Email    string  `db:"email" json:"email"`
	Username *string `db:"username" json:"username"`
}

type Genre struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Book is a catalog row. A non-nil DeletedAt marks it soft deleted.
type Book struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Writer          string          `db:"writer" json:"writer"`
	Publisher       string          `db:"publisher" json:"publisher"`
	PublicationYear int             `db:"publication_year" json:"publicationYear"`
	Description     *string         `db:"description" json:"description"`
	CoverImage      *string         `db:"cover_image" json:"coverImage"`
	Price           decimal.Decimal `db:"price" json:"price"`
	StockQuantity   int             `db:"stock_quantity" json:"stockQuantity"`
	Condition       BookCondition   `db:"condition" json:"condition"`
	GenreID         string          `db:"genre_id" json:"genreId"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"-"`
}

// BookView is a book as listed to clients, with the genre flattened to its name.
type BookView struct {
	ID              string          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Writer          string          `db:"writer" json:"writer"`
	Publisher       string          `db:"publisher" json:"publisher"`
	PublicationYear int             `db:"publication_year" json:"publicationYear"`
	Description     *string         `db:"description" json:"description"`
	CoverImage      *string         `db:"cover_image" json:"coverImage"`
	Price           decimal.Decimal `db:"price" json:"price"`
	StockQuantity   int             `db:"stock_quantity" json:"stockQuantity"`
	Condition       BookCondition   `db:"condition" json:"condition"`
	Genre           string          `db:"genre" json:"genre"`
}

// Transaction is a committed checkout. It is never updated after insert.
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"userId"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"totalPrice"`
	TotalAmount int             `db:"total_amount" json:"totalAmount"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}

// TransactionBook is one line item of a transaction.
type TransactionBook struct {
	ID            int64  `db:"id" json:"id"`
	TransactionID string `db:"transaction_id" json:"transactionId"`
	BookID        string `db:"book_id" json:"bookId"`
	Quantity      int    `db:"quantity" json:"quantity"`
}

// TransactionLineBook is the book summary shown on a line item. Price is the
// book's current price, not the price paid.
type TransactionLineBook struct {
	ID     string          `db:"id" json:"id"`
	Title  string          `db:"title" json:"title"`
	Writer string          `db:"writer" json:"writer,omitempty"`
	Price  decimal.Decimal `db:"price" json:"price"`
}

type TransactionLine struct {
	Quantity int                 `json:"quantity"`
	Book     TransactionLineBook `json:"book"`
}

// TransactionView is a transaction with its user and line items, as returned
// by the list and detail endpoints.
type TransactionView struct {
	ID          string            `json:"id"`
	TotalPrice  decimal.Decimal   `json:"totalPrice"`
	TotalAmount int               `json:"totalAmount"`
	CreatedAt   time.Time         `json:"createdAt"`
	User        PublicUser        `json:"user"`
	Books       []TransactionLine `json:"books"`
}

// TransactionStatistics summarises sales across all transactions.
type TransactionStatistics struct {
	TotalTransactions        int64           `json:"total_transactions"`
	AverageTransactionAmount decimal.Decimal `json:"average_transaction_amount"`
	FewestBookSalesGenre     *string         `json:"fewest_book_sales_genre"`
	MostBookSalesGenre       *string         `json:"most_book_sales_genre"`
}

// GenreSales is the number of line items sold for a genre.
type GenreSales struct {
	GenreID string `db:"genre_id"`
	Name    string `db:"name"`
	Count   int64  `db:"count"`
}
