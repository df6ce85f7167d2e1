package events

import (
	"context"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
)

// Publisher is the transport the stock events go out on.
// *messaging.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// StockEventPublisher publishes stock-related events.
// A nil *StockEventPublisher is valid and drops every event.
type StockEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a publisher on the stock events exchange
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return NewStockEventPublisherWith(publisher, log), nil
}

// NewStockEventPublisherWith wraps an existing transport
func NewStockEventPublisherWith(publisher Publisher, log *logger.Logger) *StockEventPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishUrgencyUpdated publishes the outcome of one urgency recompute
func (p *StockEventPublisher) PublishUrgencyUpdated(ctx context.Context, sig *domain.Signalement, previous domain.SignalementStatus, rotationFound bool) {
	if p == nil {
		return
	}

	data := messaging.SignalementUrgencyUpdatedEvent{
		SignalementID:  sig.ID,
		ProductCode:    sig.ProductCode,
		Status:         string(sig.Status),
		PreviousStatus: string(previous),
		RotationFound:  rotationFound,
	}
	if sig.ComputedUrgency != nil {
		data.Urgency = string(*sig.ComputedUrgency)
	}
	if sig.SellThroughProbability != nil {
		data.SellThroughProbability = *sig.SellThroughProbability
	}

	if err := p.publisher.Publish(ctx, messaging.EventSignalementUrgencyUpdated, data); err != nil {
		p.logger.Error().Err(err).Str("signalement_id", sig.ID).Msg("failed to publish urgency updated event")
	}
}

// PublishAutoVerified publishes a PENDING to TO_VERIFY transition
func (p *StockEventPublisher) PublishAutoVerified(ctx context.Context, sig *domain.Signalement, monthsRemaining int) {
	if p == nil {
		return
	}

	data := messaging.SignalementAutoVerifiedEvent{
		SignalementID:   sig.ID,
		ProductCode:     sig.ProductCode,
		MonthsRemaining: monthsRemaining,
	}
	if sig.SellThroughProbability != nil {
		data.SellThroughProbability = *sig.SellThroughProbability
	}

	if err := p.publisher.Publish(ctx, messaging.EventSignalementAutoVerified, data); err != nil {
		p.logger.Error().Err(err).Str("signalement_id", sig.ID).Msg("failed to publish auto verified event")
	}
}

// PublishRotationImported publishes the counts of a bulk rotation import
func (p *StockEventPublisher) PublishRotationImported(ctx context.Context, imported, rejected int) {
	if p == nil {
		return
	}

	data := messaging.RotationImportedEvent{
		Imported: imported,
		Rejected: rejected,
	}

	if err := p.publisher.Publish(ctx, messaging.EventRotationImported, data); err != nil {
		p.logger.Error().Err(err).Int("imported", imported).Msg("failed to publish rotation imported event")
	}
}
