// Package queue publishes domain events to RabbitMQ and runs the audit
// consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
)

// Exchange and audit queue names.
const (
	ExchangeName   = "cruise.events"
	AuditQueueName = "cruise.audit"
)

// Routing keys.
const (
	BookingCreated       = "booking.created"
	BookingUpdated       = "booking.updated"
	BookingCancelled     = "booking.cancelled"
	BookingStatusChanged = "booking.status_changed"
	BookingCheckedIn     = "booking.checked_in"
	OrderCreated         = "order.created"
	OrderStatusChanged   = "order.status_changed"
	OrderCancelled       = "order.cancelled"
)

// Event is the JSON body of every message on the exchange.  It carries
// enough for consumers to log or notify without reading the database.
type Event struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	OccurredAt     string `json:"occurred_at"`
	ActorID        uint64 `json:"actor_id"`
	Entity         string `json:"entity"`
	EntityID       uint64 `json:"entity_id"`
	Reference      string `json:"reference"`
	OwnerID        uint64 `json:"owner_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Total          string `json:"total,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func newEvent(typ, entity string, actor uint64, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: at.UTC().Format(time.RFC3339),
		ActorID:    actor,
		Entity:     entity,
	}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// BookingEvent describes a booking change.  prev is empty when the status
// did not change.
func BookingEvent(typ string, actor uint64, b model.Booking, prev model.BookingStatus, at time.Time) Event {
	ev := newEvent(typ, "booking", actor, at)
	ev.EntityID = b.ID
	ev.Reference = b.Reference
	ev.OwnerID = b.UserID
	ev.Status = string(b.Status)
	ev.PreviousStatus = string(prev)
	ev.Total = money(b.Pricing.Total)
	ev.Reason = b.CancellationReason
	return ev
}

// OrderEvent describes an order change.
func OrderEvent(typ string, actor uint64, o model.Order, prev model.OrderStatus, at time.Time) Event {
	ev := newEvent(typ, "order", actor, at)
	ev.EntityID = o.ID
	ev.Reference = o.OrderNumber
	ev.OwnerID = o.UserID
	ev.Status = string(o.Status)
	ev.PreviousStatus = string(prev)
	ev.Total = money(o.Pricing.Total)
	ev.Reason = o.CancellationReason
	return ev
}
