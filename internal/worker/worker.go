package worker

import (
	"context"

	"library-service/internal/broker"
	"library-service/internal/models"
	"library-service/internal/util"

	"go.uber.org/zap"
)

// MessageSource delivers topic messages to a handler until ctx ends.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

type TransactionEventHandler interface {
	HandleTransactionCreated(ctx context.Context, event *models.TransactionCreatedEvent) error
}

type BookEventHandler interface {
	HandleBookChanged(ctx context.Context, event *models.BookChangedEvent) error
}

// CacheWorker keeps the book and statistics caches of this instance in step
// with changes committed by any instance.
type CacheWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(consumer MessageSource, transactions TransactionEventHandler, books BookEventHandler) *CacheWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnTransactionCreated(transactions.HandleTransactionCreated)
	eventHandler.OnBookChanged(books.HandleBookChanged)

	return &CacheWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start blocks consuming events until ctx is cancelled.
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}
