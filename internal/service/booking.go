package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/queue"
	"github.com/iliyamo/cruise-services/internal/repository"
	"github.com/iliyamo/cruise-services/internal/utils"
)

// DefaultCancelReason is recorded when a cancel request carries no reason.
const DefaultCancelReason = "Cancelled by user"

type CruiseInput struct {
	ShipName      string    `json:"ship_name" validate:"required,max=100"`
	CruiseCode    string    `json:"cruise_code" validate:"required,max=50"`
	Route         string    `json:"route" validate:"max=200"`
	DepartureDate time.Time `json:"departure_date"`
	ReturnDate    time.Time `json:"return_date"`
	DeparturePort string    `json:"departure_port" validate:"required,max=100"`
	ArrivalPort   string    `json:"arrival_port" validate:"max=100"`
}

type CabinInput struct {
	Type     model.CabinType `json:"type" validate:"required,oneof=interior oceanview balcony suite"`
	Number   string          `json:"number" validate:"required,max=10"`
	Deck     string          `json:"deck" validate:"required,max=10"`
	Capacity int             `json:"capacity" validate:"min=1,max=8"`
}

type PassengerInput struct {
	FirstName      string     `json:"first_name" validate:"required,max=50"`
	LastName       string     `json:"last_name" validate:"required,max=50"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Nationality    string     `json:"nationality" validate:"max=50"`
	PassportNumber string     `json:"passport_number" validate:"max=30"`
	Dietary        []string   `json:"dietary" validate:"max=10,dive,max=50"`
	SpecialNeeds   []string   `json:"special_needs" validate:"max=10,dive,max=100"`
	IsPrimary      bool       `json:"is_primary"`
}

type PricingInput struct {
	Base      decimal.Decimal `json:"base"`
	Taxes     decimal.Decimal `json:"taxes"`
	Fees      decimal.Decimal `json:"fees"`
	Discounts decimal.Decimal `json:"discounts"`
}

type PaymentInput struct {
	Method     model.PaymentMethod `json:"method" validate:"required,oneof=credit_card debit_card bank_transfer cash"`
	Status     model.PaymentStatus `json:"status" validate:"omitempty,oneof=pending partial paid refunded failed"`
	PaidAmount decimal.Decimal     `json:"paid_amount"`
	DueDate    *time.Time          `json:"due_date"`
}

// PaymentPatch changes only the payment fields it carries.
type PaymentPatch struct {
	Method     *model.PaymentMethod `json:"method"`
	Status     *model.PaymentStatus `json:"status"`
	PaidAmount *decimal.Decimal     `json:"paid_amount"`
	DueDate    *time.Time           `json:"due_date"`
}

func (p PaymentPatch) applyTo(in *PaymentInput) {
	if p.Method != nil {
		in.Method = *p.Method
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.PaidAmount != nil {
		in.PaidAmount = *p.PaidAmount
	}
	if p.DueDate != nil {
		in.DueDate = p.DueDate
	}
}

type InsuranceInput struct {
	Selected bool            `json:"selected"`
	Provider string          `json:"provider" validate:"max=100"`
	Cost     decimal.Decimal `json:"cost"`
	Coverage string          `json:"coverage" validate:"max=200"`
}

// BookingInput is the body of a booking creation.
type BookingInput struct {
	Cruise          CruiseInput      `json:"cruise"`
	Cabin           CabinInput       `json:"cabin"`
	Passengers      []PassengerInput `json:"passengers" validate:"min=1,max=8,dive"`
	Pricing         PricingInput     `json:"pricing"`
	Payment         PaymentInput     `json:"payment"`
	SpecialRequests []string         `json:"special_requests" validate:"max=20,dive,max=500"`
	Insurance       *InsuranceInput  `json:"insurance"`
	Notes           string           `json:"notes" validate:"max=1000"`
}

// BookingPatch is a partial booking update.  Present sub-records replace
// the stored ones whole, except payment which is merged field by field.
// Reference and Status are decoded only so that an attempt to set them can
// be rejected.
type BookingPatch struct {
	Cruise          *CruiseInput     `json:"cruise"`
	Cabin           *CabinInput      `json:"cabin"`
	Passengers      []PassengerInput `json:"passengers"`
	Pricing         *PricingInput    `json:"pricing"`
	Payment         *PaymentPatch    `json:"payment"`
	SpecialRequests []string         `json:"special_requests"`
	Insurance       *InsuranceInput  `json:"insurance"`
	Notes           *string          `json:"notes"`
	Reference       *string          `json:"booking_reference"`
	Status          *string          `json:"status"`
}

// BookingService implements the booking lifecycle.
type BookingService struct {
	Bookings    BookingStore
	Events      EventPublisher
	Log         *logger.Logger
	AutoConfirm bool

	refs *utils.RefGenerator
	now  func() time.Time
}

func NewBookingService(bookings BookingStore, autoConfirm bool, pub EventPublisher, log *logger.Logger) *BookingService {
	if log == nil {
		log = logger.Discard()
	}
	if pub == nil {
		pub = queue.Nop{}
	}
	return &BookingService{
		Bookings:    bookings,
		Events:      pub,
		Log:         log,
		AutoConfirm: autoConfirm,
		refs:        utils.NewRefGenerator(utils.BookingRefPrefix),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithRefs replaces the reference generator.
func (s *BookingService) WithRefs(g *utils.RefGenerator) *BookingService {
	s.refs = g
	return s
}

// WithClock replaces the clock used for check-in times and events.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// Create books a cruise for the caller.
func (s *BookingService) Create(ctx context.Context, id *authz.Identity, in BookingInput) (model.Booking, error) {
	if err := authz.Require(id, authz.CanCreateBooking); err != nil {
		return model.Booking{}, err
	}
	if !id.HasCompleteProfile() {
		return model.Booking{}, apperr.New(apperr.IncompleteProfile, "complete your first name, last name and email before booking")
	}
	if err := validateBooking(in); err != nil {
		return model.Booking{}, err
	}
	if err := authorizePayment(id, model.BookingPayment{Status: model.PaymentPending}, in.Payment); err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{UserID: id.UserID, Status: model.BookingPending}
	applyInput(&b, in)
	if s.AutoConfirm {
		b.Status = model.BookingConfirmed
	}
	if err := s.checkDuplicate(ctx, b, 0); err != nil {
		return model.Booking{}, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		ref, err := s.refs.Next()
		if err != nil {
			return model.Booking{}, apperr.Wrap(err, "generate booking reference")
		}
		b.Reference = ref
		err = s.Bookings.Create(ctx, &b)
		if err == nil {
			s.Log.Info("booking", "created %s for user %d", b.Reference, b.UserID)
			emit(ctx, s.Events, s.Log, queue.BookingEvent(queue.BookingCreated, id.UserID, b, "", s.now()))
			return b, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return model.Booking{}, apperr.Wrap(err, "create booking")
		}
	}
	return model.Booking{}, apperr.New(apperr.DuplicateReference, "could not allocate a unique booking reference")
}

// Get returns a booking the caller may see.  Bookings outside the caller's
// visibility are reported as not found.
func (s *BookingService) Get(ctx context.Context, id *authz.Identity, bookingID uint64) (model.Booking, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.Booking{}, err
	}
	return s.load(ctx, id, bookingID)
}

// List returns the caller's bookings, or every booking for roles that may
// view all of them.
func (s *BookingService) List(ctx context.Context, id *authz.Identity, f model.BookingFilter) (Page[model.Booking], error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return Page[model.Booking]{}, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return Page[model.Booking]{}, apperr.New(apperr.InvalidStatus, "unknown booking status %q", f.Status)
	}
	f.UserID = nil
	if !authz.Can(id.Role, authz.CanViewAllBookings) {
		uid := id.UserID
		f.UserID = &uid
	}
	f.Page = f.Page.Normalize()
	rows, total, err := s.Bookings.List(ctx, f)
	if err != nil {
		return Page[model.Booking]{}, apperr.Wrap(err, "list bookings")
	}
	return newPage(rows, f.Page, total), nil
}

// Update applies a patch.  The merged booking is validated with the
// creation rules.
func (s *BookingService) Update(ctx context.Context, id *authz.Identity, bookingID uint64, p BookingPatch) (model.Booking, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.Booking{}, err
	}
	var locked fieldSet
	if p.Reference != nil {
		locked.add("booking_reference", "cannot be changed")
	}
	if p.Status != nil {
		locked.add("status", "cannot be changed here, use the status or cancel endpoints")
	}
	if err := locked.err(); err != nil {
		return model.Booking{}, err
	}

	b, err := s.load(ctx, id, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status.Terminal() {
		return model.Booking{}, apperr.New(apperr.InvalidTransition, "booking %s is %s and can no longer be changed", b.Reference, b.Status)
	}

	in := inputOf(b)
	if p.Cruise != nil {
		in.Cruise = *p.Cruise
	}
	if p.Cabin != nil {
		in.Cabin = *p.Cabin
	}
	if p.Passengers != nil {
		in.Passengers = p.Passengers
	}
	if p.Pricing != nil {
		in.Pricing = *p.Pricing
	}
	if p.Payment != nil {
		p.Payment.applyTo(&in.Payment)
	}
	if p.SpecialRequests != nil {
		in.SpecialRequests = p.SpecialRequests
	}
	if p.Insurance != nil {
		in.Insurance = p.Insurance
	}
	if p.Notes != nil {
		in.Notes = *p.Notes
	}
	if err := validateBooking(in); err != nil {
		return model.Booking{}, err
	}
	if err := authorizePayment(id, b.Payment, in.Payment); err != nil {
		return model.Booking{}, err
	}

	prevCode, prevDeparture := b.Cruise.CruiseCode, b.Cruise.DepartureDate
	applyInput(&b, in)
	if b.Cruise.CruiseCode != prevCode || !sameUTCDay(b.Cruise.DepartureDate, prevDeparture) {
		if err := s.checkDuplicate(ctx, b, b.ID); err != nil {
			return model.Booking{}, err
		}
	}
	if err := s.Bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, notFound(err, "booking", bookingID)
	}
	emit(ctx, s.Events, s.Log, queue.BookingEvent(queue.BookingUpdated, id.UserID, b, "", s.now()))
	return b, nil
}

// Cancel cancels a booking the caller may see.
func (s *BookingService) Cancel(ctx context.Context, id *authz.Identity, bookingID uint64, reason string) (model.Booking, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.Booking{}, err
	}
	b, err := s.load(ctx, id, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	return s.cancel(ctx, id, b, reason)
}

func (s *BookingService) cancel(ctx context.Context, id *authz.Identity, b model.Booking, reason string) (model.Booking, error) {
	switch {
	case b.Status == model.BookingCancelled:
		return model.Booking{}, apperr.New(apperr.AlreadyCancelled, "booking %s is already cancelled", b.Reference)
	case b.Status.Terminal():
		return model.Booking{}, apperr.New(apperr.InvalidTransition, "booking %s is %s and cannot be cancelled", b.Reference, b.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}
	prev := b.Status
	b.Status = model.BookingCancelled
	b.CancellationReason = reason
	if err := s.Bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, notFound(err, "booking", b.ID)
	}
	s.Log.Info("booking", "cancelled %s by user %d", b.Reference, id.UserID)
	emit(ctx, s.Events, s.Log, queue.BookingEvent(queue.BookingCancelled, id.UserID, b, prev, s.now()))
	return b, nil
}

// Transition moves a booking along the state machine.  Staff only.
func (s *BookingService) Transition(ctx context.Context, id *authz.Identity, bookingID uint64, status, reason string) (model.Booking, error) {
	if err := authz.Require(id, authz.CanManageBookings); err != nil {
		return model.Booking{}, err
	}
	next := model.BookingStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return model.Booking{}, apperr.New(apperr.InvalidStatus, "unknown booking status %q", status)
	}
	b, err := s.load(ctx, id, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if next == model.BookingCancelled {
		return s.cancel(ctx, id, b, reason)
	}
	if b.Status.Terminal() || !b.Status.CanTransitionTo(next) {
		return model.Booking{}, apperr.New(apperr.InvalidTransition, "booking %s cannot move from %s to %s", b.Reference, b.Status, next)
	}
	prev := b.Status
	b.Status = next
	if err := s.Bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, notFound(err, "booking", bookingID)
	}
	emit(ctx, s.Events, s.Log, queue.BookingEvent(queue.BookingStatusChanged, id.UserID, b, prev, s.now()))
	return b, nil
}

// CheckIn marks the travel party as boarded.  Checking in twice succeeds
// and keeps the first timestamp.
func (s *BookingService) CheckIn(ctx context.Context, id *authz.Identity, bookingID uint64) (model.Booking, error) {
	if err := authz.Require(id, authz.CanCheckIn); err != nil {
		return model.Booking{}, err
	}
	b, err := s.load(ctx, id, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.CheckedIn {
		return b, nil
	}
	if b.Status.Terminal() {
		return model.Booking{}, apperr.New(apperr.InvalidTransition, "booking %s is %s and cannot be checked in", b.Reference, b.Status)
	}
	at := s.now()
	b.CheckedIn = true
	b.CheckedInAt = &at
	if err := s.Bookings.Update(ctx, &b); err != nil {
		return model.Booking{}, notFound(err, "booking", bookingID)
	}
	emit(ctx, s.Events, s.Log, queue.BookingEvent(queue.BookingCheckedIn, id.UserID, b, "", at))
	return b, nil
}

// BoardingPass renders the QR boarding pass of a checked-in booking.
func (s *BookingService) BoardingPass(ctx context.Context, id *authz.Identity, bookingID uint64, size int) ([]byte, model.Booking, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return nil, model.Booking{}, err
	}
	b, err := s.load(ctx, id, bookingID)
	if err != nil {
		return nil, model.Booking{}, err
	}
	if !b.CheckedIn {
		return nil, model.Booking{}, apperr.New(apperr.InvalidTransition, "booking %s is not checked in", b.Reference)
	}
	png, err := utils.BoardingPassPNG(b, size)
	if err != nil {
		return nil, model.Booking{}, apperr.Wrap(err, "render boarding pass")
	}
	return png, b, nil
}

// Stats returns booking counts and revenue per status.
func (s *BookingService) Stats(ctx context.Context, id *authz.Identity) ([]model.StatusStat, error) {
	if err := authz.Require(id, authz.CanViewStats); err != nil {
		return nil, err
	}
	rows, err := s.Bookings.Stats(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "booking stats")
	}
	return rows, nil
}

func (s *BookingService) load(ctx context.Context, id *authz.Identity, bookingID uint64) (model.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, notFound(err, "booking", bookingID)
	}
	if b.UserID != id.UserID && !authz.Can(id.Role, authz.CanViewAllBookings) {
		return model.Booking{}, apperr.New(apperr.NotFound, "booking %d not found", bookingID)
	}
	return b, nil
}

func (s *BookingService) checkDuplicate(ctx context.Context, b model.Booking, excludeID uint64) error {
	dup, err := s.Bookings.ExistsActive(ctx, b.UserID, b.Cruise.CruiseCode, b.Cruise.DepartureDate, excludeID)
	if err != nil {
		return apperr.Wrap(err, "check duplicate booking")
	}
	if dup {
		return apperr.New(apperr.DuplicateReference, "an active booking for cruise %s departing %s already exists",
			b.Cruise.CruiseCode, b.Cruise.DepartureDate.UTC().Format("2006-01-02"))
	}
	return nil
}

// authorizePayment keeps settlement fields in staff hands.
func authorizePayment(id *authz.Identity, current model.BookingPayment, in PaymentInput) error {
	status := in.Status
	if status == "" {
		status = current.Status
	}
	if status == current.Status && in.PaidAmount.Round(2).Equal(current.PaidAmount) {
		return nil
	}
	if authz.Can(id.Role, authz.CanManageBookings) {
		return nil
	}
	return apperr.New(apperr.InsufficientRole, "only booking staff may change payment status or paid amount")
}

func validateBooking(in BookingInput) error {
	fields := fieldSet(fieldErrors(in))

	dep, ret := in.Cruise.DepartureDate, in.Cruise.ReturnDate
	if dep.IsZero() {
		fields.add("cruise.departure_date", "is required")
	}
	if ret.IsZero() {
		fields.add("cruise.return_date", "is required")
	}
	if !dep.IsZero() && !ret.IsZero() && !ret.After(dep) {
		fields.add("cruise.return_date", "must be after departure_date")
	}

	if in.Cabin.Capacity > 0 && len(in.Passengers) > in.Cabin.Capacity {
		fields.add("passengers", "%d passengers exceed cabin capacity of %d", len(in.Passengers), in.Cabin.Capacity)
	}
	primaries := 0
	for _, p := range in.Passengers {
		if p.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		fields.add("passengers", "at most one passenger may be primary")
	}

	money := []struct {
		field string
		value decimal.Decimal
	}{
		{"pricing.base", in.Pricing.Base},
		{"pricing.taxes", in.Pricing.Taxes},
		{"pricing.fees", in.Pricing.Fees},
		{"pricing.discounts", in.Pricing.Discounts},
		{"payment.paid_amount", in.Payment.PaidAmount},
	}
	if in.Insurance != nil {
		money = append(money, struct {
			field string
			value decimal.Decimal
		}{"insurance.cost", in.Insurance.Cost})
	}
	negative := false
	for _, m := range money {
		if m.value.IsNegative() {
			fields.add(m.field, "must not be negative")
			negative = true
		}
	}
	if !negative {
		p := model.BookingPricing{Base: in.Pricing.Base, Taxes: in.Pricing.Taxes, Fees: in.Pricing.Fees, Discounts: in.Pricing.Discounts}.Normalized()
		if p.Total.IsNegative() {
			fields.add("pricing.discounts", "must not exceed base + taxes + fees")
		}
	}
	return fields.err()
}

func applyInput(b *model.Booking, in BookingInput) {
	b.Cruise = model.CruiseDetails{
		ShipName:      strings.TrimSpace(in.Cruise.ShipName),
		CruiseCode:    strings.ToUpper(strings.TrimSpace(in.Cruise.CruiseCode)),
		Route:         strings.TrimSpace(in.Cruise.Route),
		DepartureDate: in.Cruise.DepartureDate.UTC(),
		ReturnDate:    in.Cruise.ReturnDate.UTC(),
		DeparturePort: strings.TrimSpace(in.Cruise.DeparturePort),
		ArrivalPort:   strings.TrimSpace(in.Cruise.ArrivalPort),
	}
	b.Cabin = model.Cabin{
		Type:     in.Cabin.Type,
		Number:   strings.TrimSpace(in.Cabin.Number),
		Deck:     strings.TrimSpace(in.Cabin.Deck),
		Capacity: in.Cabin.Capacity,
	}
	b.Passengers = make([]model.Passenger, len(in.Passengers))
	for i, p := range in.Passengers {
		b.Passengers[i] = model.Passenger{
			FirstName:      strings.TrimSpace(p.FirstName),
			LastName:       strings.TrimSpace(p.LastName),
			DateOfBirth:    p.DateOfBirth,
			Nationality:    p.Nationality,
			PassportNumber: p.PassportNumber,
			Dietary:        append([]string(nil), p.Dietary...),
			SpecialNeeds:   append([]string(nil), p.SpecialNeeds...),
			IsPrimary:      p.IsPrimary,
		}
	}
	b.Pricing = model.BookingPricing{
		Base:      in.Pricing.Base,
		Taxes:     in.Pricing.Taxes,
		Fees:      in.Pricing.Fees,
		Discounts: in.Pricing.Discounts,
	}.Normalized()
	status := in.Payment.Status
	if status == "" {
		status = model.PaymentPending
	}
	b.Payment = model.BookingPayment{
		Method:     in.Payment.Method,
		Status:     status,
		PaidAmount: in.Payment.PaidAmount.Round(2),
		DueDate:    in.Payment.DueDate,
	}
	b.SpecialRequests = append([]string(nil), in.SpecialRequests...)
	b.Insurance = nil
	if in.Insurance != nil {
		b.Insurance = &model.Insurance{
			Selected: in.Insurance.Selected,
			Provider: in.Insurance.Provider,
			Cost:     in.Insurance.Cost.Round(2),
			Coverage: in.Insurance.Coverage,
		}
	}
	b.Notes = in.Notes
}

// inputOf turns a stored booking back into an input so patches can be
// merged and revalidated.
func inputOf(b model.Booking) BookingInput {
	in := BookingInput{
		Cruise: CruiseInput{
			ShipName:      b.Cruise.ShipName,
			CruiseCode:    b.Cruise.CruiseCode,
			Route:         b.Cruise.Route,
			DepartureDate: b.Cruise.DepartureDate,
			ReturnDate:    b.Cruise.ReturnDate,
			DeparturePort: b.Cruise.DeparturePort,
			ArrivalPort:   b.Cruise.ArrivalPort,
		},
		Cabin: CabinInput{Type: b.Cabin.Type, Number: b.Cabin.Number, Deck: b.Cabin.Deck, Capacity: b.Cabin.Capacity},
		Pricing: PricingInput{
			Base:      b.Pricing.Base,
			Taxes:     b.Pricing.Taxes,
			Fees:      b.Pricing.Fees,
			Discounts: b.Pricing.Discounts,
		},
		Payment: PaymentInput{
			Method:     b.Payment.Method,
			Status:     b.Payment.Status,
			PaidAmount: b.Payment.PaidAmount,
			DueDate:    b.Payment.DueDate,
		},
		SpecialRequests: b.SpecialRequests,
		Notes:           b.Notes,
	}
	for _, p := range b.Passengers {
		in.Passengers = append(in.Passengers, PassengerInput{
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			DateOfBirth:    p.DateOfBirth,
			Nationality:    p.Nationality,
			PassportNumber: p.PassportNumber,
			Dietary:        p.Dietary,
			SpecialNeeds:   p.SpecialNeeds,
			IsPrimary:      p.IsPrimary,
		})
	}
	if b.Insurance != nil {
		in.Insurance = &InsuranceInput{
			Selected: b.Insurance.Selected,
			Provider: b.Insurance.Provider,
			Cost:     b.Insurance.Cost,
			Coverage: b.Insurance.Coverage,
		}
	}
	return in
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
