package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"library-service/internal/apperror"
	"library-service/internal/models"
	"library-service/internal/redisclient"
	"library-service/internal/store"
	"library-service/internal/util"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// TransactionStore is the persistence the transaction service needs.
type TransactionStore interface {
	RunCheckout(ctx context.Context, fn func(tx store.CheckoutTx) error) error
	ListTransactions(ctx context.Context, q models.TransactionQuery) ([]models.TransactionView, int64, error)
	GetTransactionView(ctx context.Context, id string) (*models.TransactionView, error)
	TransactionTotals(ctx context.Context) (int64, decimal.Decimal, error)
	GenreSales(ctx context.Context) ([]models.GenreSales, error)
}

// IdempotencyStore remembers checkout responses by client-supplied key. Keys
// are scoped to the user that sent them.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, userID, key string, ttl time.Duration) (bool, error)
	GetIdempotencyResult(ctx context.Context, userID, key string) (result []byte, pending bool, found bool, err error)
	StoreIdempotencyResult(ctx context.Context, userID, key string, result []byte, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, userID, key string) error
}

// Cache is a JSON read-through cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
}

// EventPublisher publishes domain events after state changes commit.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, event *models.TransactionCreatedEvent) error
	PublishBookChanged(ctx context.Context, event *models.BookChangedEvent) error
}

// TransactionService handles checkout and transaction queries
type TransactionService struct {
	store          TransactionStore
	idempotency    IdempotencyStore
	cache          Cache
	events         EventPublisher
	logger         *zap.Logger
	cacheTTL       time.Duration
	idempotencyTTL time.Duration
}

// TransactionServiceOptions carries the optional collaborators. Any of them
// may be nil.
type TransactionServiceOptions struct {
	Idempotency    IdempotencyStore
	Cache          Cache
	Events         EventPublisher
	CacheTTL       time.Duration
	IdempotencyTTL time.Duration
}

// NewTransactionService creates a new transaction service
func NewTransactionService(store TransactionStore, opts TransactionServiceOptions) *TransactionService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &TransactionService{
		store:          store,
		idempotency:    opts.Idempotency,
		cache:          opts.Cache,
		events:         opts.Events,
		logger:         util.GetLogger(),
		cacheTTL:       opts.CacheTTL,
		idempotencyTTL: opts.IdempotencyTTL,
	}
}

// CheckoutItem is one requested line: a book and how many copies.
type CheckoutItem struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

// CreateTransactionRequest is the checkout body.
type CreateTransactionRequest struct {
	Books          []CheckoutItem `json:"books"`
	IdempotencyKey string         `json:"-"`
}

// CreateTransactionResponse is returned after a successful checkout.
type CreateTransactionResponse struct {
	TransactionID string          `json:"transaction_id"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// CreateTransaction checks out items for userID. Stock is checked, the
// transaction and its lines are written and stock is decremented in a single
// database transaction; on any error nothing is persisted.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID string, req *CreateTransactionRequest) (*CreateTransactionResponse, error) {
	ctx, span := util.StartSpan(ctx, "TransactionService.CreateTransaction",
		attribute.String("user_id", userID),
		attribute.Int("lines", len(req.Books)))
	defer span.End()

	if err := validateCheckout(userID, req.Books); err != nil {
		util.TransactionsFailedTotal.WithLabelValues(apperror.Validation.String()).Inc()
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		replay, claimed, err := s.claimIdempotencyKey(ctx, userID, key)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			util.TransactionsReplayedTotal.Inc()
			return replay, nil
		}
		if !claimed {
			key = ""
		}
	} else {
		key = ""
	}

	resp, lines, err := s.checkout(ctx, userID, req.Books)
	if err != nil {
		util.RecordError(span, err)
		if key != "" {
			if relErr := s.idempotency.ReleaseIdempotencyKey(ctx, userID, key); relErr != nil {
				s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}
		return nil, s.checkoutFailed(userID, err)
	}

	util.TransactionsCreatedTotal.Inc()
	util.BooksSoldTotal.Add(float64(resp.TotalQuantity))
	s.logger.Info("Transaction created",
		zap.String("transaction_id", resp.TransactionID),
		zap.String("user_id", userID),
		zap.Int("total_quantity", resp.TotalQuantity),
		zap.String("total_price", resp.TotalPrice.String()))

	if key != "" {
		s.storeIdempotentResult(ctx, userID, key, resp)
	}
	s.invalidateAfterCheckout(ctx, lines)
	s.publishTransactionCreated(ctx, userID, resp, lines)

	return resp, nil
}

// checkout runs the atomic part of CreateTransaction.
func (s *TransactionService) checkout(ctx context.Context, userID string, items []CheckoutItem) (*CreateTransactionResponse, []models.LineItemData, error) {
	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	items = canonicalItems(items)
	requested := lo.Uniq(lo.Map(items, func(item CheckoutItem, _ int) string { return item.BookID }))

	var resp *CreateTransactionResponse
	var lines []models.LineItemData

	err := s.store.RunCheckout(ctx, func(tx store.CheckoutTx) error {
		if _, err := tx.GetUserByID(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidInput) {
				return apperror.NewNotFound("User not found")
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		// Ids that are not UUIDs cannot exist; they are reported as missing.
		books, err := tx.LockBooks(ctx, lo.Filter(requested, func(id string, _ int) bool { return isUUID(id) }))
		if err != nil {
			return fmt.Errorf("failed to load books: %w", err)
		}
		byID := lo.KeyBy(books, func(b models.Book) string { return b.ID })

		if len(byID) != len(requested) {
			missing := lo.Filter(requested, func(id string, _ int) bool {
				_, ok := byID[id]
				return !ok
			})
			return apperror.NewNotFound(
				fmt.Sprintf("Book(s) not found: %s", strings.Join(missing, ", ")), missing...)
		}

		remaining := lo.MapValues(byID, func(b models.Book, _ string) int { return b.StockQuantity })
		totalPrice := decimal.Zero
		totalQuantity := 0
		lines = make([]models.LineItemData, 0, len(items))

		for _, item := range items {
			book := byID[item.BookID]
			if remaining[book.ID] < item.Quantity {
				return apperror.NewConflict(fmt.Sprintf(
					"Insufficient stock for book: %s. Available: %d, Requested: %d",
					book.Title, remaining[book.ID], item.Quantity))
			}
			remaining[book.ID] -= item.Quantity

			totalPrice = totalPrice.Add(book.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			totalQuantity += item.Quantity
			lines = append(lines, models.LineItemData{
				BookID:    book.ID,
				Quantity:  item.Quantity,
				UnitPrice: book.Price,
			})
		}

		txn := &models.Transaction{
			ID:          uuid.New().String(),
			UserID:      userID,
			TotalPrice:  totalPrice,
			TotalAmount: totalQuantity,
		}
		rows := lo.Map(items, func(item CheckoutItem, _ int) models.TransactionBook {
			return models.TransactionBook{BookID: item.BookID, Quantity: item.Quantity}
		})
		if err := tx.InsertTransaction(ctx, txn, rows); err != nil {
			return err
		}

		// one decrement per distinct book, in lock order
		for _, book := range books {
			taken := book.StockQuantity - remaining[book.ID]
			if taken == 0 {
				continue
			}
			if err := tx.DecrementStock(ctx, book.ID, taken); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return apperror.NewConflict(fmt.Sprintf(
						"Insufficient stock for book: %s. Available: %d, Requested: %d",
						book.Title, book.StockQuantity, taken))
				}
				return fmt.Errorf("failed to decrement stock for book %s: %w", book.ID, err)
			}
		}

		resp = &CreateTransactionResponse{
			TransactionID: txn.ID,
			TotalQuantity: txn.TotalAmount,
			TotalPrice:    txn.TotalPrice,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, lines, nil
}

// checkoutFailed records a failed checkout and makes sure the error the
// caller sees is classified.
func (s *TransactionService) checkoutFailed(userID string, err error) error {
	kind := apperror.KindOf(err)
	util.TransactionsFailedTotal.WithLabelValues(kind.String()).Inc()

	if kind != apperror.Internal {
		s.logger.Info("Checkout rejected",
			zap.String("user_id", userID),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return err
	}

	s.logger.Error("Checkout failed", zap.String("user_id", userID), zap.Error(err))
	return apperror.Wrap(err, "Database error during transaction creation.")
}

// claimIdempotencyKey returns a stored response to replay, or claims key for
// this request. Redis being unavailable is not fatal: the checkout proceeds
// without idempotency and claimed is false.
func (s *TransactionService) claimIdempotencyKey(ctx context.Context, userID, key string) (replay *CreateTransactionResponse, claimed bool, err error) {
	ok, err := s.idempotency.ClaimIdempotencyKey(ctx, userID, key, s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if ok {
		return nil, true, nil
	}

	result, pending, found, err := s.idempotency.GetIdempotencyResult(ctx, userID, key)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if !found {
		// expired between claim and read; treat as a fresh request
		ok, err := s.idempotency.ClaimIdempotencyKey(ctx, userID, key, s.idempotencyTTL)
		return nil, ok && err == nil, nil
	}
	if pending {
		return nil, false, apperror.NewConflict("request with this idempotency key is in progress")
	}

	var stored CreateTransactionResponse
	if err := sonic.Unmarshal(result, &stored); err != nil {
		return nil, false, apperror.Wrap(err, "Corrupt idempotency record")
	}
	s.logger.Info("Replaying checkout response", zap.String("key", key), zap.String("transaction_id", stored.TransactionID))
	return &stored, false, nil
}

func (s *TransactionService) storeIdempotentResult(ctx context.Context, userID, key string, resp *CreateTransactionResponse) {
	data, err := sonic.Marshal(resp)
	if err == nil {
		err = s.idempotency.StoreIdempotencyResult(ctx, userID, key, data, s.idempotencyTTL)
	}
	if err != nil {
		s.logger.Warn("Failed to store idempotent result", zap.String("key", key), zap.Error(err))
	}
}

func (s *TransactionService) invalidateAfterCheckout(ctx context.Context, lines []models.LineItemData) {
	if s.cache == nil {
		return
	}
	keys := []string{redisclient.StatisticsKey()}
	for _, id := range lo.Uniq(lo.Map(lines, func(l models.LineItemData, _ int) string { return l.BookID })) {
		keys = append(keys, redisclient.BookKey(id))
	}
	if _, err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Failed to invalidate caches after checkout", zap.Error(err))
	}
}

func (s *TransactionService) publishTransactionCreated(ctx context.Context, userID string, resp *CreateTransactionResponse, lines []models.LineItemData) {
	if s.events == nil {
		return
	}
	event := &models.TransactionCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeTransactionCreated,
			Timestamp: time.Now(),
		},
		TransactionID: resp.TransactionID,
		UserID:        userID,
		TotalPrice:    resp.TotalPrice,
		TotalQuantity: resp.TotalQuantity,
		Items:         lines,
	}
	if err := s.events.PublishTransactionCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish TransactionCreated event",
			zap.String("transaction_id", resp.TransactionID),
			zap.Error(err))
	}
}

// HandleTransactionCreated drops the caches a checkout on any instance made
// stale.
func (s *TransactionService) HandleTransactionCreated(ctx context.Context, event *models.TransactionCreatedEvent) error {
	s.invalidateAfterCheckout(ctx, event.Items)
	return nil
}

// ListTransactions returns one page of transactions.
func (s *TransactionService) ListTransactions(ctx context.Context, q models.TransactionQuery) ([]models.TransactionView, models.PageMeta, error) {
	ctx, span := util.StartSpan(ctx, "TransactionService.ListTransactions")
	defer span.End()

	q.Normalize()
	if err := validateSort(map[string]models.SortOrder{
		"orderById":     q.OrderByID,
		"orderByAmount": q.OrderByAmount,
		"orderByPrice":  q.OrderByPrice,
	}); err != nil {
		return nil, models.PageMeta{}, err
	}

	views, total, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		s.logger.Error("Failed to list transactions", zap.Error(err))
		return nil, models.PageMeta{}, apperror.Wrap(err, "Database error while retrieving transactions.")
	}
	return views, q.Meta(total), nil
}

// GetTransaction returns one transaction with its user and line items.
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*models.TransactionView, error) {
	ctx, span := util.StartSpan(ctx, "TransactionService.GetTransaction", attribute.String("transaction_id", id))
	defer span.End()

	if !isUUID(id) {
		return nil, apperror.NewValidation("Invalid transaction ID format")
	}

	view, err := s.store.GetTransactionView(ctx, canonicalID(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Transaction not found")
	}
	if err != nil {
		s.logger.Error("Failed to get transaction", zap.String("transaction_id", id), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while retrieving transaction by ID.")
	}
	return view, nil
}

// GetStatistics summarises sales. Results are cached until the next checkout.
func (s *TransactionService) GetStatistics(ctx context.Context) (*models.TransactionStatistics, error) {
	ctx, span := util.StartSpan(ctx, "TransactionService.GetStatistics")
	defer span.End()

	if s.cache != nil {
		var cached models.TransactionStatistics
		hit, err := s.cache.GetJSON(ctx, redisclient.StatisticsKey(), &cached)
		if err != nil {
			s.logger.Warn("Statistics cache read failed", zap.Error(err))
		}
		if hit {
			util.CacheRequestsTotal.WithLabelValues("statistics", "hit").Inc()
			return &cached, nil
		}
		util.CacheRequestsTotal.WithLabelValues("statistics", "miss").Inc()
	}

	count, average, err := s.store.TransactionTotals(ctx)
	if err != nil {
		s.logger.Error("Failed to compute transaction totals", zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while calculating transaction statistics.")
	}
	sales, err := s.store.GenreSales(ctx)
	if err != nil {
		s.logger.Error("Failed to compute genre sales", zap.Error(err))
		return nil, apperror.Wrap(err, "Database error while calculating transaction statistics.")
	}

	stats := &models.TransactionStatistics{
		TotalTransactions:        count,
		AverageTransactionAmount: average.Round(2),
	}
	most, fewest := rankGenres(sales)
	stats.MostBookSalesGenre = most
	stats.FewestBookSalesGenre = fewest

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, redisclient.StatisticsKey(), stats, s.cacheTTL); err != nil {
			s.logger.Warn("Statistics cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// rankGenres returns the best and worst selling genre names, or nils when
// nothing has sold. Ties are broken by name.
func rankGenres(sales []models.GenreSales) (most, fewest *string) {
	if len(sales) == 0 {
		return nil, nil
	}
	ranked := append([]models.GenreSales(nil), sales...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	first := ranked[0].Name
	last := ranked[len(ranked)-1].Name
	return &first, &last
}

// validateCheckout rejects malformed checkout input before any storage
// access. Every bad line is reported, each naming its index.
func validateCheckout(userID string, items []CheckoutItem) error {
	if strings.TrimSpace(userID) == "" {
		return apperror.NewValidation("Invalid input: userId and books are required.", "userId is required")
	}
	if len(items) == 0 {
		return apperror.NewValidation("Invalid input: userId and books are required.", "books must be a non-empty array")
	}

	var problems []string
	for i, item := range items {
		if strings.TrimSpace(item.BookID) == "" {
			problems = append(problems, fmt.Sprintf("books[%d]: bookId is required", i))
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("books[%d]: quantity must be a positive integer", i))
		}
	}
	if len(problems) > 0 {
		return apperror.NewValidation(
			"Invalid book item: a valid bookId and a positive quantity are required.", problems...)
	}
	return nil
}

// canonicalItems returns a copy of items with ids in canonical UUID form so
// they compare equal to ids read back from the database.
func canonicalItems(items []CheckoutItem) []CheckoutItem {
	out := make([]CheckoutItem, len(items))
	for i, item := range items {
		out[i] = CheckoutItem{BookID: canonicalID(item.BookID), Quantity: item.Quantity}
	}
	return out
}
