package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
)

// BookingRepo persists bookings.  Passengers, special requests and
// insurance are embedded in their booking and stored as JSON columns.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

const bookingColumns = `b.id,b.user_id,b.reference,b.ship_name,b.cruise_code,b.route,b.departure_date,b.return_date,
	b.departure_port,b.arrival_port,b.cabin_type,b.cabin_number,b.cabin_deck,b.cabin_capacity,b.passengers,
	b.base_price,b.taxes,b.fees,b.discounts,b.total,b.payment_method,b.payment_status,b.paid_amount,b.due_date,
	b.status,b.special_requests,b.insurance,b.notes,b.cancellation_reason,b.checked_in,b.checked_in_at,
	b.created_at,b.updated_at`

// bookingDocs holds the JSON-encoded embedded records of a booking.  They
// are sent as strings: MySQL refuses JSON built from binary parameters.
type bookingDocs struct {
	passengers string
	requests   sql.NullString
	insurance  sql.NullString
}

func encodeBookingDocs(b *model.Booking) (bookingDocs, error) {
	var d bookingDocs
	passengers := b.Passengers
	if passengers == nil {
		passengers = []model.Passenger{}
	}
	raw, err := json.Marshal(passengers)
	if err != nil {
		return d, err
	}
	d.passengers = string(raw)
	if len(b.SpecialRequests) > 0 {
		if raw, err = json.Marshal(b.SpecialRequests); err != nil {
			return d, err
		}
		d.requests = sql.NullString{String: string(raw), Valid: true}
	}
	if b.Insurance != nil {
		if raw, err = json.Marshal(b.Insurance); err != nil {
			return d, err
		}
		d.insurance = sql.NullString{String: string(raw), Valid: true}
	}
	return d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b                         model.Booking
		cabinType, method, status string
		payStatus                 string
		passengers, requests, ins []byte
		notes                     sql.NullString
		due, checkedAt            sql.NullTime
	)
	err := s.Scan(&b.ID, &b.UserID, &b.Reference, &b.Cruise.ShipName, &b.Cruise.CruiseCode, &b.Cruise.Route,
		&b.Cruise.DepartureDate, &b.Cruise.ReturnDate, &b.Cruise.DeparturePort, &b.Cruise.ArrivalPort,
		&cabinType, &b.Cabin.Number, &b.Cabin.Deck, &b.Cabin.Capacity, &passengers,
		&b.Pricing.Base, &b.Pricing.Taxes, &b.Pricing.Fees, &b.Pricing.Discounts, &b.Pricing.Total,
		&method, &payStatus, &b.Payment.PaidAmount, &due,
		&status, &requests, &ins, &notes, &b.CancellationReason, &b.CheckedIn, &checkedAt,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, translate(err)
	}
	b.Cabin.Type = model.CabinType(cabinType)
	b.Payment.Method = model.PaymentMethod(method)
	b.Payment.Status = model.PaymentStatus(payStatus)
	b.Payment.DueDate = timePtr(due)
	b.Status = model.BookingStatus(status)
	b.Notes = notes.String
	b.CheckedInAt = timePtr(checkedAt)
	if len(passengers) > 0 {
		if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
			return model.Booking{}, err
		}
	}
	if len(requests) > 0 {
		if err := json.Unmarshal(requests, &b.SpecialRequests); err != nil {
			return model.Booking{}, err
		}
	}
	if len(ins) > 0 {
		b.Insurance = &model.Insurance{}
		if err := json.Unmarshal(ins, b.Insurance); err != nil {
			return model.Booking{}, err
		}
	}
	return b, nil
}

// Create inserts b.  A reference collision yields ErrDuplicate.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	docs, err := encodeBookingDocs(b)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO bookings (
		user_id, reference, ship_name, cruise_code, route, departure_date, return_date, departure_port, arrival_port,
		cabin_type, cabin_number, cabin_deck, cabin_capacity, passengers,
		base_price, taxes, fees, discounts, total, payment_method, payment_status, paid_amount, due_date,
		status, special_requests, insurance, notes, cancellation_reason, checked_in, checked_in_at
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.Reference, b.Cruise.ShipName, b.Cruise.CruiseCode, b.Cruise.Route,
		b.Cruise.DepartureDate.UTC(), b.Cruise.ReturnDate.UTC(), b.Cruise.DeparturePort, b.Cruise.ArrivalPort,
		string(b.Cabin.Type), b.Cabin.Number, b.Cabin.Deck, b.Cabin.Capacity, docs.passengers,
		b.Pricing.Base, b.Pricing.Taxes, b.Pricing.Fees, b.Pricing.Discounts, b.Pricing.Total,
		string(b.Payment.Method), string(b.Payment.Status), b.Payment.PaidAmount, nullTime(b.Payment.DueDate),
		string(b.Status), docs.requests, docs.insurance, b.Notes, b.CancellationReason, b.CheckedIn, nullTime(b.CheckedInAt))
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

// GetByID fetches one booking.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return scanBooking(r.DB.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings b WHERE b.id=?", id))
}

// List returns one page of bookings matching f, newest first, and the
// total number of matches.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	cond, args := bookingWhere(f)

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings b WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings b WHERE "+cond+" ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?",
		append(append([]any{}, args...), page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Booking, 0, page.Limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update overwrites every mutable column.  The reference and owner are
// never written after insert.
func (r *BookingRepo) Update(ctx context.Context, b *model.Booking) error {
	docs, err := encodeBookingDocs(b)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE bookings SET
		ship_name=?, cruise_code=?, route=?, departure_date=?, return_date=?, departure_port=?, arrival_port=?,
		cabin_type=?, cabin_number=?, cabin_deck=?, cabin_capacity=?, passengers=?,
		base_price=?, taxes=?, fees=?, discounts=?, total=?, payment_method=?, payment_status=?, paid_amount=?, due_date=?,
		status=?, special_requests=?, insurance=?, notes=?, cancellation_reason=?, checked_in=?, checked_in_at=?
		WHERE id=?`,
		b.Cruise.ShipName, b.Cruise.CruiseCode, b.Cruise.Route, b.Cruise.DepartureDate.UTC(), b.Cruise.ReturnDate.UTC(),
		b.Cruise.DeparturePort, b.Cruise.ArrivalPort,
		string(b.Cabin.Type), b.Cabin.Number, b.Cabin.Deck, b.Cabin.Capacity, docs.passengers,
		b.Pricing.Base, b.Pricing.Taxes, b.Pricing.Fees, b.Pricing.Discounts, b.Pricing.Total,
		string(b.Payment.Method), string(b.Payment.Status), b.Payment.PaidAmount, nullTime(b.Payment.DueDate),
		string(b.Status), docs.requests, docs.insurance, b.Notes, b.CancellationReason, b.CheckedIn, nullTime(b.CheckedInAt),
		b.ID)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, b.ID); err != nil {
			return err
		}
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// ExistsActive reports whether userID already holds a non-cancelled
// booking for the same cruise code and departure day.
func (r *BookingRepo) ExistsActive(ctx context.Context, userID uint64, cruiseCode string, departure time.Time, excludeID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE user_id=? AND cruise_code=? AND DATE(departure_date)=DATE(?) AND status<>'cancelled' AND id<>?`,
		userID, cruiseCode, departure.UTC(), excludeID).Scan(&n)
	return n > 0, err
}

// Stats returns booking counts and revenue per status.
func (r *BookingRepo) Stats(ctx context.Context) ([]model.StatusStat, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM bookings GROUP BY status ORDER BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.StatusStat{}
	for rows.Next() {
		var (
			s   model.StatusStat
			rev decimal.Decimal
		)
		if err := rows.Scan(&s.Status, &s.Count, &rev); err != nil {
			return nil, err
		}
		s.Revenue = rev
		out = append(out, s)
	}
	return out, rows.Err()
}
