package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys of the inventory events.
const (
	EventItemCreated = "inventory.item.created"
	EventItemUpdated = "inventory.item.updated"
	EventItemDeleted = "inventory.item.deleted"
	EventLowStock    = "inventory.stock.low"
)

// EventPublisher sends a message to a broker exchange.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// InventoryEvent is the JSON body of every inventory event.
type InventoryEvent struct {
	Type       string           `json:"type"`
	ItemID     uint             `json:"item_id"`
	Name       string           `json:"name,omitempty"`
	Category   string           `json:"category,omitempty"`
	Quantity   *int             `json:"quantity,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	Threshold  int              `json:"threshold,omitempty"`
	Actor      string           `json:"actor,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

type actorKey struct{}

// WithActor records the authenticated username on ctx so that events can
// name who made a change.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

// ActorFromContext returns the username stored by WithActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
