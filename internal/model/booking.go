package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
)

// BookingStatuses lists every booking status.
var BookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled, BookingNoShow},
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	for _, v := range BookingStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted || s == BookingNoShow
}

// CanTransitionTo reports whether the state machine has an edge s -> next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, n := range bookingTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// CabinType enumerates cabin classes.
type CabinType string

const (
	CabinInterior  CabinType = "interior"
	CabinOceanview CabinType = "oceanview"
	CabinBalcony   CabinType = "balcony"
	CabinSuite     CabinType = "suite"
)

// CabinTypes lists every cabin class.
var CabinTypes = []CabinType{CabinInterior, CabinOceanview, CabinBalcony, CabinSuite}

// PaymentMethod enumerates booking payment methods.
type PaymentMethod string

const (
	PayCreditCard   PaymentMethod = "credit_card"
	PayDebitCard    PaymentMethod = "debit_card"
	PayBankTransfer PaymentMethod = "bank_transfer"
	PayCash         PaymentMethod = "cash"
)

// BookingPaymentMethods lists the methods accepted for bookings.
var BookingPaymentMethods = []PaymentMethod{PayCreditCard, PayDebitCard, PayBankTransfer, PayCash}

// PaymentStatus tracks settlement of a booking or order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPartial, PaymentPaid, PaymentRefunded, PaymentFailed}

// CruiseDetails describes the sailing a booking is for.
type CruiseDetails struct {
	ShipName      string    `json:"ship_name"`
	CruiseCode    string    `json:"cruise_code"`
	Route         string    `json:"route"`
	DepartureDate time.Time `json:"departure_date"`
	ReturnDate    time.Time `json:"return_date"`
	DeparturePort string    `json:"departure_port"`
	ArrivalPort   string    `json:"arrival_port"`
}

// Cabin is the accommodation reserved by a booking.
type Cabin struct {
	Type     CabinType `json:"type"`
	Number   string    `json:"number"`
	Deck     string    `json:"deck"`
	Capacity int       `json:"capacity"`
}

// Passenger is one member of the travel party. Passengers are embedded in
// their booking and have no identity of their own.
type Passenger struct {
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Nationality    string     `json:"nationality,omitempty"`
	PassportNumber string     `json:"passport_number,omitempty"`
	Dietary        []string   `json:"dietary,omitempty"`
	SpecialNeeds   []string   `json:"special_needs,omitempty"`
	IsPrimary      bool       `json:"is_primary"`
}

// BookingPricing holds the price breakdown. Total is written together with
// the components and always equals Base + Taxes + Fees - Discounts.
type BookingPricing struct {
	Base      decimal.Decimal `json:"base"`
	Taxes     decimal.Decimal `json:"taxes"`
	Fees      decimal.Decimal `json:"fees"`
	Discounts decimal.Decimal `json:"discounts"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeTotal returns Base + Taxes + Fees - Discounts.
func (p BookingPricing) ComputeTotal() decimal.Decimal {
	return p.Base.Add(p.Taxes).Add(p.Fees).Sub(p.Discounts)
}

// Normalized returns p with every component rounded to cents and Total recomputed.
func (p BookingPricing) Normalized() BookingPricing {
	p.Base = p.Base.Round(2)
	p.Taxes = p.Taxes.Round(2)
	p.Fees = p.Fees.Round(2)
	p.Discounts = p.Discounts.Round(2)
	p.Total = p.ComputeTotal()
	return p
}

// BookingPayment is the payment sub-record of a booking.
type BookingPayment struct {
	Method     PaymentMethod   `json:"method"`
	Status     PaymentStatus   `json:"status"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	DueDate    *time.Time      `json:"due_date,omitempty"`
}

// Insurance is the optional travel insurance sub-record.
type Insurance struct {
	Selected bool            `json:"selected"`
	Provider string          `json:"provider,omitempty"`
	Cost     decimal.Decimal `json:"cost"`
	Coverage string          `json:"coverage,omitempty"`
}

// Booking represents a row in the `bookings` table together with its
// embedded passengers, requests and insurance.
//
// Fields:
//
//	ID                 – primary key identifier.
//	UserID             – owning voyager.
//	Reference          – generated CRS reference, immutable once set.
//	Cruise             – sailing details.
//	Cabin              – reserved cabin; Capacity bounds the passenger list.
//	Passengers         – travel party.
//	Pricing            – price breakdown.
//	Payment            – payment sub-record.
//	Status             – lifecycle state.
//	SpecialRequests    – free-text requests.
//	Insurance          – optional insurance.
//	Notes              – staff notes.
//	CancellationReason – recorded on cancel.
//	CheckedIn          – boarding check-in flag.
//	CheckedInAt        – first check-in time, kept on repeated check-ins.
type Booking struct {
	ID                 uint64         `json:"id"`
	UserID             uint64         `json:"user_id"`
	Reference          string         `json:"booking_reference"`
	Cruise             CruiseDetails  `json:"cruise"`
	Cabin              Cabin          `json:"cabin"`
	Passengers         []Passenger    `json:"passengers"`
	Pricing            BookingPricing `json:"pricing"`
	Payment            BookingPayment `json:"payment"`
	Status             BookingStatus  `json:"status"`
	SpecialRequests    []string       `json:"special_requests,omitempty"`
	Insurance          *Insurance     `json:"insurance,omitempty"`
	Notes              string         `json:"notes,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	CheckedIn          bool           `json:"checked_in"`
	CheckedInAt        *time.Time     `json:"checked_in_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// CruiseNights returns the sailing length in whole days.
func (b Booking) CruiseNights() int {
	if b.Cruise.ReturnDate.Before(b.Cruise.DepartureDate) {
		return 0
	}
	return int(b.Cruise.ReturnDate.Sub(b.Cruise.DepartureDate).Hours() / 24)
}

// Clone returns a deep copy so callers can mutate slices safely.
func (b Booking) Clone() Booking {
	out := b
	if b.Passengers != nil {
		out.Passengers = make([]Passenger, len(b.Passengers))
		for i, p := range b.Passengers {
			p.Dietary = append([]string(nil), p.Dietary...)
			p.SpecialNeeds = append([]string(nil), p.SpecialNeeds...)
			out.Passengers[i] = p
		}
	}
	if b.SpecialRequests != nil {
		out.SpecialRequests = append([]string(nil), b.SpecialRequests...)
	}
	if b.Insurance != nil {
		ins := *b.Insurance
		out.Insurance = &ins
	}
	if b.CheckedInAt != nil {
		t := *b.CheckedInAt
		out.CheckedInAt = &t
	}
	return out
}
