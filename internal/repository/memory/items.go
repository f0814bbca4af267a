package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/repository"
)

// Items implements the catalog repository.
type Items struct{ s *Store }

func (r *Items) nameTaken(name string, typ model.Department, excludeID uint64) bool {
	for _, it := range r.s.items {
		if it.ID != excludeID && it.Type == typ && strings.EqualFold(it.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (r *Items) Create(_ context.Context, it *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(it.Name, it.Type, 0) {
		return repository.ErrDuplicate
	}
	it.ID = r.s.nextID("items")
	now := r.s.now()
	it.CreatedAt, it.UpdatedAt = now, now
	r.s.items[it.ID] = it.Clone()
	return nil
}

func (r *Items) GetByID(_ context.Context, id uint64) (model.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.items[id]
	if !ok {
		return model.Item{}, repository.ErrNotFound
	}
	return it.Clone(), nil
}

func (r *Items) GetMany(_ context.Context, ids []uint64) (map[uint64]model.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[uint64]model.Item, len(ids))
	for _, id := range ids {
		if it, ok := r.s.items[id]; ok {
			out[id] = it.Clone()
		}
	}
	return out, nil
}

func (r *Items) ExistsByNameType(_ context.Context, name string, typ model.Department, excludeID uint64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.nameTaken(name, typ, excludeID), nil
}

func (r *Items) Update(_ context.Context, it *model.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.items[it.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(it.Name, it.Type, it.ID) {
		return repository.ErrDuplicate
	}
	it.CreatedAt = cur.CreatedAt
	it.UpdatedAt = r.s.now()
	r.s.items[it.ID] = it.Clone()
	return nil
}

func (r *Items) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.items, id)
	return nil
}

func (r *Items) AdjustStock(_ context.Context, id uint64, op model.StockOp, qty int) (model.Item, error) {
	if !op.Valid() {
		return model.Item{}, fmt.Errorf("unknown stock operation %q", op)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return model.Item{}, repository.ErrNotFound
	}
	cur := 0
	if it.Stock != nil {
		cur = *it.Stock
	}
	n := model.ApplyStock(cur, op, qty)
	it.Stock = &n
	if n == 0 {
		it.Availability = model.Unavailable
	}
	it.UpdatedAt = r.s.now()
	r.s.items[id] = it
	return it.Clone(), nil
}

func matchItem(it model.Item, f model.ItemFilter) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(it.Name), q) && !strings.Contains(strings.ToLower(it.Description), q) {
			return false
		}
	}
	if f.Type != "" && it.Type != f.Type {
		return false
	}
	if f.Category != "" && it.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && it.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && it.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Availability != "" && it.Availability != f.Availability {
		return false
	}
	if f.InStock && it.Stock != nil && *it.Stock <= 0 {
		return false
	}
	return true
}

func sortItems(rows []model.Item, s model.ItemSort) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch s {
		case model.SortPriceAsc:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
			return a.ID < b.ID
		case model.SortPriceDesc:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
			return a.ID > b.ID
		case model.SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
			return a.ID < b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})
}

func (r *Items) Query(_ context.Context, f model.ItemFilter) ([]model.Item, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := []model.Item{}
	for _, it := range r.s.items {
		if matchItem(it, f) {
			rows = append(rows, it.Clone())
		}
	}
	sortItems(rows, f.Sort)
	return paginate(rows, f.Page), len(rows), nil
}

func (r *Items) Categories(_ context.Context, typ model.Department) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]bool{}
	out := []string{}
	for _, it := range r.s.items {
		if typ != "" && it.Type != typ {
			continue
		}
		if !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Items) Stats(_ context.Context) ([]model.ItemStat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	type key struct {
		t model.Department
		a model.Availability
	}
	sums := map[key]decimal.Decimal{}
	counts := map[key]int{}
	for _, it := range r.s.items {
		k := key{it.Type, it.Availability}
		counts[k]++
		sums[k] = sums[k].Add(it.Price)
	}
	out := make([]model.ItemStat, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.ItemStat{
			Type:         k.t,
			Availability: k.a,
			Count:        n,
			AvgPrice:     sums[k].Div(decimal.NewFromInt(int64(n))).Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Availability < out[j].Availability
	})
	return out, nil
}
