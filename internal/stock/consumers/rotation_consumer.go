// Package consumers reacts to stock events published by other replicas.
package consumers

import (
	"context"

	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
)

const queueName = "stock-service.rotation-events"

// CycleRunner runs one lock-guarded bulk urgency recompute
type CycleRunner interface {
	RunCycle(ctx context.Context) bool
}

// RotationEventConsumer recomputes open signalements once new rotations are imported
type RotationEventConsumer struct {
	consumer *messaging.Consumer
	runner   CycleRunner
	logger   *logger.Logger
}

// NewRotationEventConsumer creates a new rotation event consumer
func NewRotationEventConsumer(rmq *messaging.RabbitMQ, runner CycleRunner, log *logger.Logger) (*RotationEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, queueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeStockEvents, "rotation.#"); err != nil {
		return nil, err
	}

	c := newRotationEventConsumer(runner, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventRotationImported, c.handleRotationImported)

	return c, nil
}

func newRotationEventConsumer(runner CycleRunner, log *logger.Logger) *RotationEventConsumer {
	if log == nil {
		log = logger.Nop()
	}
	return &RotationEventConsumer{
		runner: runner,
		logger: log.WithComponent("rotation_consumer"),
	}
}

// Start starts consuming messages
func (c *RotationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *RotationEventConsumer) handleRotationImported(ctx context.Context, event *messaging.Event) error {
	var data messaging.RotationImportedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("event_id", event.ID).
		Int("imported", data.Imported).
		Int("rejected", data.Rejected).
		Msg("received rotation imported event")

	if data.Imported == 0 {
		return nil
	}

	// A skipped cycle means another replica holds the lock; the next tick catches up.
	c.runner.RunCycle(ctx)
	return nil
}
