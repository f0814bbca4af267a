package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/database"
	"github.com/iliyamo/cruise-services/internal/model"
)

// OrderRepo persists orders and their line items.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

const orderColumns = `o.id,o.user_id,o.booking_id,o.order_number,o.type,o.subtotal,o.tax,o.service_charge,o.discount,o.total,
	o.payment_method,o.payment_status,o.transaction_id,o.delivery_type,o.delivery_location,o.delivery_instructions,
	o.estimated_at,o.delivered_at,o.status,o.special_instructions,o.cancellation_reason,o.refund_amount,o.created_at,o.updated_at`

func scanOrder(s rowScanner) (model.Order, error) {
	var (
		o                      model.Order
		bookingID              sql.NullInt64
		typ, method, payStatus string
		delivery, status       string
		estimated, delivered   sql.NullTime
	)
	err := s.Scan(&o.ID, &o.UserID, &bookingID, &o.OrderNumber, &typ,
		&o.Pricing.Subtotal, &o.Pricing.Tax, &o.Pricing.ServiceCharge, &o.Pricing.Discount, &o.Pricing.Total,
		&method, &payStatus, &o.Payment.TransactionID, &delivery, &o.Delivery.Location, &o.Delivery.Instructions,
		&estimated, &delivered, &status, &o.SpecialInstructions, &o.CancellationReason, &o.RefundAmount,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Order{}, translate(err)
	}
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		o.BookingID = &id
	}
	o.Type = model.Department(typ)
	o.Payment.Method = model.OrderPaymentMethod(method)
	o.Payment.Status = model.PaymentStatus(payStatus)
	o.Delivery.Type = model.DeliveryType(delivery)
	o.Delivery.EstimatedAt = timePtr(estimated)
	o.Delivery.DeliveredAt = timePtr(delivered)
	o.Status = model.OrderStatus(status)
	return o, nil
}

func nullID(p *uint64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// Create reserves stock and inserts the order with its lines in one
// transaction.  Each stock-tracked item is locked, re-checked and
// decremented; if any item cannot cover its quantity the whole
// transaction is rolled back and a *StockError is returned.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	return database.InTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := reserveStock(ctx, tx, o.Lines); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO orders (
			user_id, booking_id, order_number, type, subtotal, tax, service_charge, discount, total,
			payment_method, payment_status, transaction_id, delivery_type, delivery_location, delivery_instructions,
			estimated_at, delivered_at, status, special_instructions, cancellation_reason, refund_amount
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			o.UserID, nullID(o.BookingID), o.OrderNumber, string(o.Type),
			o.Pricing.Subtotal, o.Pricing.Tax, o.Pricing.ServiceCharge, o.Pricing.Discount, o.Pricing.Total,
			string(o.Payment.Method), string(o.Payment.Status), o.Payment.TransactionID,
			string(o.Delivery.Type), o.Delivery.Location, o.Delivery.Instructions,
			nullTime(o.Delivery.EstimatedAt), nullTime(o.Delivery.DeliveredAt),
			string(o.Status), o.SpecialInstructions, o.CancellationReason, o.RefundAmount)
		if err != nil {
			return translate(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for i, l := range o.Lines {
			if _, err := tx.ExecContext(ctx, `INSERT INTO order_items
				(order_id, position, item_id, name, quantity, unit_price, line_total, scheduled_at, special_instructions)
				VALUES (?,?,?,?,?,?,?,?,?)`,
				id, i, l.ItemID, l.Name, l.Quantity, l.UnitPrice, l.LineTotal, nullTime(l.ScheduledAt), l.SpecialInstructions); err != nil {
				return translate(err)
			}
		}
		o.ID = uint64(id)
		now := time.Now().UTC()
		o.CreatedAt, o.UpdatedAt = now, now
		return nil
	})
}

// reserveStock locks every referenced item in id order (to avoid lock
// cycles between concurrent orders) and decrements tracked stock.
func reserveStock(ctx context.Context, tx *sql.Tx, lines []model.OrderLine) error {
	want := map[uint64]int{}
	for _, l := range lines {
		want[l.ItemID] += l.Quantity
	}
	ids := make([]uint64, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		var (
			stock sql.NullInt64
			avail string
		)
		err := tx.QueryRowContext(ctx, "SELECT stock, availability FROM items WHERE id=? FOR UPDATE", id).Scan(&stock, &avail)
		if err != nil {
			return translate(err)
		}
		if !model.Availability(avail).Orderable() {
			return &StockError{ItemID: id}
		}
		if !stock.Valid {
			continue
		}
		left := int(stock.Int64) - want[id]
		if left < 0 {
			return &StockError{ItemID: id}
		}
		next := model.Availability(avail)
		if left == 0 {
			next = model.Unavailable
		}
		if _, err := tx.ExecContext(ctx, "UPDATE items SET stock=?, availability=? WHERE id=?", left, string(next), id); err != nil {
			return err
		}
	}
	return nil
}

// GetByID fetches one order with its lines.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	o, err := scanOrder(r.DB.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id=?", id))
	if err != nil {
		return model.Order{}, err
	}
	lines, err := r.loadLines(ctx, []uint64{o.ID})
	if err != nil {
		return model.Order{}, err
	}
	o.Lines = lines[o.ID]
	return o, nil
}

func (r *OrderRepo) loadLines(ctx context.Context, orderIDs []uint64) (map[uint64][]model.OrderLine, error) {
	out := make(map[uint64][]model.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	marks := make([]string, len(orderIDs))
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		marks[i] = "?"
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT order_id, item_id, name, quantity, unit_price, line_total, scheduled_at, special_instructions
		 FROM order_items WHERE order_id IN (`+strings.Join(marks, ",")+`) ORDER BY order_id, position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID   uint64
			l         model.OrderLine
			scheduled sql.NullTime
		)
		if err := rows.Scan(&orderID, &l.ItemID, &l.Name, &l.Quantity, &l.UnitPrice, &l.LineTotal,
			&scheduled, &l.SpecialInstructions); err != nil {
			return nil, err
		}
		l.ScheduledAt = timePtr(scheduled)
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

// List returns one page of orders matching f, newest first.
func (r *OrderRepo) List(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	cond, args := orderWhere(f)

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders o WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders o WHERE "+cond+" ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?",
		append(append([]any{}, args...), page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]model.Order, 0, page.Limit)
	ids := make([]uint64, 0, page.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, total, nil
}

// Update writes the mutable order columns.  Lines are a snapshot taken at
// creation and are never rewritten.
func (r *OrderRepo) Update(ctx context.Context, o *model.Order) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE orders SET
		booking_id=?, subtotal=?, tax=?, service_charge=?, discount=?, total=?,
		payment_method=?, payment_status=?, transaction_id=?,
		delivery_type=?, delivery_location=?, delivery_instructions=?, estimated_at=?, delivered_at=?,
		status=?, special_instructions=?, cancellation_reason=?, refund_amount=?
		WHERE id=?`,
		nullID(o.BookingID), o.Pricing.Subtotal, o.Pricing.Tax, o.Pricing.ServiceCharge, o.Pricing.Discount, o.Pricing.Total,
		string(o.Payment.Method), string(o.Payment.Status), o.Payment.TransactionID,
		string(o.Delivery.Type), o.Delivery.Location, o.Delivery.Instructions,
		nullTime(o.Delivery.EstimatedAt), nullTime(o.Delivery.DeliveredAt),
		string(o.Status), o.SpecialInstructions, o.CancellationReason, o.RefundAmount,
		o.ID)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM orders WHERE id=?", o.ID).Scan(&one); err != nil {
			return translate(err)
		}
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Stats returns order counts and revenue per type and status.
func (r *OrderRepo) Stats(ctx context.Context) ([]model.OrderStat, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT type, status, COUNT(*), COALESCE(SUM(total), 0) FROM orders GROUP BY type, status ORDER BY type, status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderStat{}
	for rows.Next() {
		var (
			s           model.OrderStat
			typ, status string
			rev         decimal.Decimal
		)
		if err := rows.Scan(&typ, &status, &s.Count, &rev); err != nil {
			return nil, err
		}
		s.Type = model.Department(typ)
		s.Status = model.OrderStatus(status)
		s.Revenue = rev
		out = append(out, s)
	}
	return out, rows.Err()
}
