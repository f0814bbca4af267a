package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Department identifies the onboard desk that fulfils an item or order.
type Department string

const (
	DeptCatering   Department = "catering"
	DeptStationery Department = "stationery"
)

// Departments lists every department.
var Departments = []Department{DeptCatering, DeptStationery}

// Valid reports whether d is a known department.
func (d Department) Valid() bool { return d == DeptCatering || d == DeptStationery }

// OrderStatus is the lifecycle state of an order. Which statuses a
// deployment uses is decided by its OrderWorkflow.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderPreparing  OrderStatus = "preparing"
	OrderInProgress OrderStatus = "in_progress"
	OrderReady      OrderStatus = "ready"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderPaymentMethod enumerates how an order is settled.
type OrderPaymentMethod string

const (
	OrderPayRoomCharge    OrderPaymentMethod = "room_charge"
	OrderPayCreditCard    OrderPaymentMethod = "credit_card"
	OrderPayCash          OrderPaymentMethod = "cash"
	OrderPayLoyaltyPoints OrderPaymentMethod = "loyalty_points"
)

// OrderPaymentMethods lists accepted order payment methods.
var OrderPaymentMethods = []OrderPaymentMethod{OrderPayRoomCharge, OrderPayCreditCard, OrderPayCash, OrderPayLoyaltyPoints}

// DeliveryType enumerates how an order reaches the voyager.
type DeliveryType string

const (
	DeliveryRoomService  DeliveryType = "room_service"
	DeliveryPickup       DeliveryType = "pickup"
	DeliveryVenueService DeliveryType = "venue_service"
	DeliveryDigital      DeliveryType = "digital"
)

// DeliveryTypes lists accepted delivery types.
var DeliveryTypes = []DeliveryType{DeliveryRoomService, DeliveryPickup, DeliveryVenueService, DeliveryDigital}

// OrderLine is one purchased item. Name, UnitPrice and LineTotal are
// copied from the catalog when the order is placed and never follow later
// catalog edits.
type OrderLine struct {
	ItemID              uint64          `json:"item_id"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	LineTotal           decimal.Decimal `json:"line_total"`
	ScheduledAt         *time.Time      `json:"scheduled_at,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

// OrderPricing holds the order totals.
// Total = Subtotal + Tax + ServiceCharge - Discount.
type OrderPricing struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	ServiceCharge decimal.Decimal `json:"service_charge"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
}

// OrderPayment is the payment sub-record of an order.
type OrderPayment struct {
	Method        OrderPaymentMethod `json:"method"`
	Status        PaymentStatus      `json:"status"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

// Delivery is the delivery sub-record of an order.
type Delivery struct {
	Type         DeliveryType `json:"type"`
	Location     string       `json:"location,omitempty"`
	Instructions string       `json:"instructions,omitempty"`
	EstimatedAt  *time.Time   `json:"estimated_at,omitempty"`
	DeliveredAt  *time.Time   `json:"delivered_at,omitempty"`
}

// Order represents a row in `orders` with its `order_items` lines.
type Order struct {
	ID                  uint64          `json:"id"`
	UserID              uint64          `json:"user_id"`
	BookingID           *uint64         `json:"booking_id,omitempty"`
	OrderNumber         string          `json:"order_number"`
	Type                Department      `json:"type"`
	Lines               []OrderLine     `json:"items"`
	Pricing             OrderPricing    `json:"pricing"`
	Payment             OrderPayment    `json:"payment"`
	Delivery            Delivery        `json:"delivery"`
	Status              OrderStatus     `json:"status"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	CancellationReason  string          `json:"cancellation_reason,omitempty"`
	RefundAmount        decimal.Decimal `json:"refund_amount"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TotalItems sums line quantities.
func (o Order) TotalItems() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	out := o
	out.Lines = append([]OrderLine(nil), o.Lines...)
	if o.BookingID != nil {
		id := *o.BookingID
		out.BookingID = &id
	}
	return out
}
