package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/eventops/server/internal/domain/webhooks"
)

// DeliveryEnqueuer inserts webhook delivery jobs into the queue. The webhook
// service and the queue client depend on each other at startup, so the client
// is bound after construction.
type DeliveryEnqueuer struct {
	client *river.Client[pgx.Tx]
}

var _ webhooks.Enqueuer = (*DeliveryEnqueuer)(nil)

func NewDeliveryEnqueuer() *DeliveryEnqueuer {
	return &DeliveryEnqueuer{}
}

// Bind attaches the queue client once it exists.
func (e *DeliveryEnqueuer) Bind(client *river.Client[pgx.Tx]) {
	e.client = client
}

func (e *DeliveryEnqueuer) EnqueueDelivery(ctx context.Context, delivery webhooks.Delivery) error {
	if e.client == nil {
		return fmt.Errorf("job queue not started")
	}
	opts := InsertOptsForKind(JobKindWebhookDelivery)
	args := WebhookDeliveryArgs{
		EndpointULID: delivery.EndpointULID,
		EventKind:    string(delivery.Kind),
		Payload:      delivery.Payload,
	}
	if _, err := e.client.Insert(ctx, args, &opts); err != nil {
		return fmt.Errorf("insert delivery job: %w", err)
	}
	return nil
}
