package broker

import (
	"context"
	"fmt"

	"library-service/internal/models"
	"library-service/internal/util"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishTransactionCreated publishes TransactionCreated event
func (ep *EventPublisher) PublishTransactionCreated(ctx context.Context, event *models.TransactionCreatedEvent) error {
	key := fmt.Sprintf("transaction-%s", event.TransactionID)
	return ep.publish(ctx, key, event.EventType, event)
}

// PublishBookChanged publishes BookUpdated or BookDeleted events
func (ep *EventPublisher) PublishBookChanged(ctx context.Context, event *models.BookChangedEvent) error {
	key := fmt.Sprintf("book-%s", event.BookID)
	return ep.publish(ctx, key, event.EventType, event)
}

func (ep *EventPublisher) publish(ctx context.Context, key, eventType string, event interface{}) error {
	err := ep.producer.PublishEvent(ctx, key, event)
	status := "ok"
	if err != nil {
		status = "error"
	}
	util.EventsPublishedTotal.WithLabelValues(eventType, status).Inc()
	return err
}

// EventHandler handles incoming events
type EventHandler struct {
	onTransactionCreated func(context.Context, *models.TransactionCreatedEvent) error
	onBookChanged        func(context.Context, *models.BookChangedEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnTransactionCreated registers a handler for TransactionCreated events
func (eh *EventHandler) OnTransactionCreated(handler func(context.Context, *models.TransactionCreatedEvent) error) {
	eh.onTransactionCreated = handler
}

// OnBookChanged registers a handler for BookUpdated and BookDeleted events
func (eh *EventHandler) OnBookChanged(handler func(context.Context, *models.BookChangedEvent) error) {
	eh.onBookChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := sonic.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeTransactionCreated:
		if eh.onTransactionCreated != nil {
			var event models.TransactionCreatedEvent
			if err := sonic.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TransactionCreated event: %w", err)
			}
			return eh.onTransactionCreated(ctx, &event)
		}

	case models.EventTypeBookUpdated, models.EventTypeBookDeleted:
		if eh.onBookChanged != nil {
			var event models.BookChangedEvent
			if err := sonic.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onBookChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
