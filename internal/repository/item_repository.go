package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
)

// ItemRepo persists the catalog.
type ItemRepo struct{ DB *sql.DB }

func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{DB: db} }

const itemColumns = "i.id,i.name,i.description,i.type,i.category,i.price,i.currency,i.availability,i.stock,i.image_url,i.created_at,i.updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (model.Item, error) {
	var (
		it    model.Item
		typ   string
		avail string
		stock sql.NullInt64
	)
	if err := s.Scan(&it.ID, &it.Name, &it.Description, &typ, &it.Category, &it.Price,
		&it.Currency, &avail, &stock, &it.ImageURL, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return model.Item{}, translate(err)
	}
	it.Type = model.Department(typ)
	it.Availability = model.Availability(avail)
	if stock.Valid {
		n := int(stock.Int64)
		it.Stock = &n
	}
	return it, nil
}

func nullStock(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// Create inserts it.  (name, type) collisions yield ErrDuplicate.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO items (name, description, type, category, price, currency, availability, stock, image_url)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		it.Name, it.Description, string(it.Type), it.Category, it.Price, it.Currency,
		string(it.Availability), nullStock(it.Stock), it.ImageURL)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	return nil
}

// GetByID fetches one item.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (model.Item, error) {
	return scanItem(r.DB.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items i WHERE i.id=?", id))
}

// GetMany fetches items by id.  Missing ids are absent from the result.
func (r *ItemRepo) GetMany(ctx context.Context, ids []uint64) (map[uint64]model.Item, error) {
	out := make(map[uint64]model.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items i WHERE i.id IN ("+strings.Join(marks, ",")+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

// ExistsByNameType reports whether another item already uses (name, type).
func (r *ItemRepo) ExistsByNameType(ctx context.Context, name string, typ model.Department, excludeID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM items WHERE LOWER(name)=LOWER(?) AND type=? AND id<>?",
		strings.TrimSpace(name), string(typ), excludeID).Scan(&n)
	return n > 0, err
}

// Update overwrites every mutable column of it.
func (r *ItemRepo) Update(ctx context.Context, it *model.Item) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE items SET name=?, description=?, type=?, category=?, price=?, currency=?,
		 availability=?, stock=?, image_url=? WHERE id=?`,
		it.Name, it.Description, string(it.Type), it.Category, it.Price, it.Currency,
		string(it.Availability), nullStock(it.Stock), it.ImageURL, it.ID)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, it.ID); err != nil {
			return err
		}
	}
	it.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes an item.  Order lines keep their snapshot.
func (r *ItemRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM items WHERE id=?", id)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock applies op in a single statement.  Subtract clamps at zero
// and an item whose stock reaches zero becomes unavailable.
func (r *ItemRepo) AdjustStock(ctx context.Context, id uint64, op model.StockOp, qty int) (model.Item, error) {
	var expr string
	switch op {
	case model.StockAdd:
		expr = "COALESCE(stock,0) + ?"
	case model.StockSubtract:
		expr = "GREATEST(COALESCE(stock,0) - ?, 0)"
	case model.StockSet:
		expr = "GREATEST(?, 0)"
	default:
		return model.Item{}, fmt.Errorf("unknown stock operation %q", op)
	}
	// availability is assigned first so it sees the old stock value
	q := "UPDATE items SET availability = CASE WHEN (" + expr + ") = 0 THEN 'unavailable' ELSE availability END, " +
		"stock = " + expr + " WHERE id = ?"
	if _, err := r.DB.ExecContext(ctx, q, qty, qty, id); err != nil {
		return model.Item{}, translate(err)
	}
	return r.GetByID(ctx, id)
}

// Query runs a filtered, paginated catalog listing.
func (r *ItemRepo) Query(ctx context.Context, f model.ItemFilter) ([]model.Item, int, error) {
	cond, args := itemWhere(f)

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM items i WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	dataSQL := "SELECT " + itemColumns + " FROM items i WHERE " + cond +
		" ORDER BY " + itemOrderBy(f.Sort) + " LIMIT ? OFFSET ?"
	argsData := append(append([]any{}, args...), page.Limit, page.Offset())

	rows, err := r.DB.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Item, 0, page.Limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Categories lists the distinct categories in use, optionally for one type.
func (r *ItemRepo) Categories(ctx context.Context, typ model.Department) ([]string, error) {
	q := "SELECT DISTINCT category FROM items"
	args := []any{}
	if typ != "" {
		q += " WHERE type = ?"
		args = append(args, string(typ))
	}
	rows, err := r.DB.QueryContext(ctx, q+" ORDER BY category", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats groups the catalog by type and availability.
func (r *ItemRepo) Stats(ctx context.Context) ([]model.ItemStat, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT type, availability, COUNT(*), COALESCE(AVG(price), 0)
		 FROM items GROUP BY type, availability ORDER BY type, availability`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ItemStat{}
	for rows.Next() {
		var (
			s          model.ItemStat
			typ, avail string
			avg        decimal.Decimal
		)
		if err := rows.Scan(&typ, &avail, &s.Count, &avg); err != nil {
			return nil, err
		}
		s.Type = model.Department(typ)
		s.Availability = model.Availability(avail)
		s.AvgPrice = avg.Round(2)
		out = append(out, s)
	}
	return out, rows.Err()
}
