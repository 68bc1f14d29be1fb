package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeTransactionCreated = "TRANSACTION_CREATED"
	EventTypeBookUpdated        = "BOOK_UPDATED"
	EventTypeBookDeleted        = "BOOK_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionCreatedEvent is published after a checkout commits.
type TransactionCreatedEvent struct {
	BaseEvent
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalQuantity int             `json:"total_quantity"`
	Items         []LineItemData  `json:"items"`
}

// BookChangedEvent is published when a book is updated or soft deleted.
type BookChangedEvent struct {
	BaseEvent
	BookID string `json:"book_id"`
}

// LineItemData is a purchased line as carried in events.
type LineItemData struct {
	BookID    string          `json:"book_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// BookIDs returns the distinct books touched by the transaction.
func (e *TransactionCreatedEvent) BookIDs() []string {
	seen := make(map[string]struct{}, len(e.Items))
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		if _, ok := seen[item.BookID]; ok {
			continue
		}
		seen[item.BookID] = struct{}{}
		ids = append(ids, item.BookID)
	}
	return ids
}
