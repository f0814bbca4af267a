package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/repository"
)

// ItemInput is the body of an item create or full update.
type ItemInput struct {
	Name         string             `json:"name" validate:"required,min=2,max=100"`
	Description  string             `json:"description" validate:"max=500"`
	Type         model.Department   `json:"type" validate:"required,oneof=catering stationery"`
	Category     string             `json:"category" validate:"required"`
	Price        decimal.Decimal    `json:"price"`
	Currency     string             `json:"currency" validate:"omitempty,oneof=USD EUR GBP CAD"`
	Availability model.Availability `json:"availability" validate:"omitempty,oneof=available limited unavailable"`
	Stock        *int               `json:"stock" validate:"omitempty,min=0"`
	ImageURL     string             `json:"image_url" validate:"omitempty,url,max=500"`
}

// ItemPage is a catalog page plus the category facet.
type ItemPage struct {
	Page[model.Item]
	Categories []string `json:"categories"`
}

// CatalogService manages the item catalog.  OnChange runs after every
// successful write; the HTTP layer uses it to purge cached reads.
type CatalogService struct {
	Items    ItemStore
	Log      *logger.Logger
	OnChange func(ctx context.Context)
}

func NewCatalogService(items ItemStore, log *logger.Logger) *CatalogService {
	if log == nil {
		log = logger.Discard()
	}
	return &CatalogService{Items: items, Log: log}
}

func (s *CatalogService) changed(ctx context.Context) {
	if s.OnChange != nil {
		s.OnChange(ctx)
	}
}

// Create adds an item.  (Name, Type) must be unique.
func (s *CatalogService) Create(ctx context.Context, id *authz.Identity, in ItemInput) (model.Item, error) {
	if err := authz.Require(id, authz.CanManageCatalog); err != nil {
		return model.Item{}, err
	}
	if err := validateItem(&in); err != nil {
		return model.Item{}, err
	}
	if err := s.checkName(ctx, in.Name, in.Type, 0); err != nil {
		return model.Item{}, err
	}
	it := model.Item{}
	applyItem(&it, in)
	if err := s.Items.Create(ctx, &it); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Item{}, duplicateItem(in.Name, in.Type)
		}
		return model.Item{}, apperr.Wrap(err, "create item")
	}
	s.Log.Info("catalog", "created item %d %q (%s)", it.ID, it.Name, it.Type)
	s.changed(ctx)
	return it, nil
}

// Update replaces every editable field of an item.
func (s *CatalogService) Update(ctx context.Context, id *authz.Identity, itemID uint64, in ItemInput) (model.Item, error) {
	if err := authz.Require(id, authz.CanManageCatalog); err != nil {
		return model.Item{}, err
	}
	if err := validateItem(&in); err != nil {
		return model.Item{}, err
	}
	it, err := s.Items.GetByID(ctx, itemID)
	if err != nil {
		return model.Item{}, notFound(err, "item", itemID)
	}
	if err := s.checkName(ctx, in.Name, in.Type, itemID); err != nil {
		return model.Item{}, err
	}
	applyItem(&it, in)
	if err := s.Items.Update(ctx, &it); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Item{}, duplicateItem(in.Name, in.Type)
		}
		return model.Item{}, notFound(err, "item", itemID)
	}
	s.changed(ctx)
	return it, nil
}

// Delete removes an item.  Existing orders keep their line snapshots.
func (s *CatalogService) Delete(ctx context.Context, id *authz.Identity, itemID uint64) error {
	if err := authz.Require(id, authz.CanDeleteCatalog); err != nil {
		return err
	}
	if err := s.Items.Delete(ctx, itemID); err != nil {
		return notFound(err, "item", itemID)
	}
	s.Log.Info("catalog", "deleted item %d by user %d", itemID, id.UserID)
	s.changed(ctx)
	return nil
}

// SetAvailability changes the sale state of an item.
func (s *CatalogService) SetAvailability(ctx context.Context, id *authz.Identity, itemID uint64, availability string) (model.Item, error) {
	if err := authz.Require(id, authz.CanManageCatalog); err != nil {
		return model.Item{}, err
	}
	a := model.Availability(strings.ToLower(strings.TrimSpace(availability)))
	if !a.Valid() {
		return model.Item{}, apperr.Invalid([]apperr.FieldError{{Field: "availability", Message: "must be one of: available, limited, unavailable", Value: availability}})
	}
	it, err := s.Items.GetByID(ctx, itemID)
	if err != nil {
		return model.Item{}, notFound(err, "item", itemID)
	}
	it.Availability = a
	if err := s.Items.Update(ctx, &it); err != nil {
		return model.Item{}, notFound(err, "item", itemID)
	}
	s.changed(ctx)
	return it, nil
}

// AdjustStock applies add, subtract or set to an item's stock.  The result
// never goes below zero.
func (s *CatalogService) AdjustStock(ctx context.Context, id *authz.Identity, itemID uint64, op string, qty int) (model.Item, error) {
	if err := authz.Require(id, authz.CanManageCatalog); err != nil {
		return model.Item{}, err
	}
	var fields fieldSet
	sop := model.StockOp(strings.ToLower(strings.TrimSpace(op)))
	if !sop.Valid() {
		fields.add("operation", "must be one of: add, subtract, set")
	}
	if qty < 0 {
		fields.add("quantity", "must not be negative")
	}
	if err := fields.err(); err != nil {
		return model.Item{}, err
	}
	it, err := s.Items.AdjustStock(ctx, itemID, sop, qty)
	if err != nil {
		return model.Item{}, notFound(err, "item", itemID)
	}
	s.changed(ctx)
	return it, nil
}

// Get returns one item.  Public.
func (s *CatalogService) Get(ctx context.Context, itemID uint64) (model.Item, error) {
	it, err := s.Items.GetByID(ctx, itemID)
	if err != nil {
		return model.Item{}, notFound(err, "item", itemID)
	}
	return it, nil
}

// Query searches the catalog.  Public.  The category facet covers the
// requested type, or every type when none is given.
func (s *CatalogService) Query(ctx context.Context, f model.ItemFilter) (ItemPage, error) {
	var fields fieldSet
	if f.Type != "" && !f.Type.Valid() {
		fields.add("type", "must be one of: catering, stationery")
	}
	if f.Availability != "" && !f.Availability.Valid() {
		fields.add("availability", "must be one of: available, limited, unavailable")
	}
	switch f.Sort {
	case "":
		f.Sort = model.SortNewest
	case model.SortNewest, model.SortPriceAsc, model.SortPriceDesc, model.SortName:
	default:
		fields.add("sort", "must be one of: newest, price_asc, price_desc, name")
	}
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		fields.add("min_price", "must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		fields.add("max_price", "must not be below min_price")
	}
	if err := fields.err(); err != nil {
		return ItemPage{}, err
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Page = f.Page.Normalize()

	rows, total, err := s.Items.Query(ctx, f)
	if err != nil {
		return ItemPage{}, apperr.Wrap(err, "query items")
	}
	cats, err := s.Items.Categories(ctx, f.Type)
	if err != nil {
		return ItemPage{}, apperr.Wrap(err, "load categories")
	}
	if cats == nil {
		cats = []string{}
	}
	return ItemPage{Page: newPage(rows, f.Page, total), Categories: cats}, nil
}

// Categories lists the distinct categories in use, optionally for one type.
func (s *CatalogService) Categories(ctx context.Context, typ string) ([]string, error) {
	d := model.Department(strings.ToLower(strings.TrimSpace(typ)))
	if d != "" && !d.Valid() {
		return nil, apperr.Invalid([]apperr.FieldError{{Field: "type", Message: "must be one of: catering, stationery", Value: typ}})
	}
	cats, err := s.Items.Categories(ctx, d)
	if err != nil {
		return nil, apperr.Wrap(err, "load categories")
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

// Stats returns item counts and average price per type and availability.
func (s *CatalogService) Stats(ctx context.Context, id *authz.Identity) ([]model.ItemStat, error) {
	if err := authz.Require(id, authz.CanViewStats); err != nil {
		return nil, err
	}
	rows, err := s.Items.Stats(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "item stats")
	}
	return rows, nil
}

func (s *CatalogService) checkName(ctx context.Context, name string, typ model.Department, excludeID uint64) error {
	taken, err := s.Items.ExistsByNameType(ctx, name, typ, excludeID)
	if err != nil {
		return apperr.Wrap(err, "check item name")
	}
	if taken {
		return duplicateItem(name, typ)
	}
	return nil
}

func duplicateItem(name string, typ model.Department) error {
	return apperr.New(apperr.DuplicateReference, "a %s item named %q already exists", typ, name)
}

func validateItem(in *ItemInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	fields := fieldSet(fieldErrors(*in))
	if in.Price.IsNegative() {
		fields.add("price", "must not be negative")
	}
	if in.Type.Valid() && in.Category != "" {
		allowed := model.CategoriesFor(in.Type)
		ok := false
		for _, c := range allowed {
			if c == in.Category {
				ok = true
				break
			}
		}
		if !ok {
			fields.add("category", "must be one of: %s", strings.Join(allowed, ", "))
		}
	}
	return fields.err()
}

func applyItem(it *model.Item, in ItemInput) {
	it.Name = in.Name
	it.Description = strings.TrimSpace(in.Description)
	it.Type = in.Type
	it.Category = in.Category
	it.Price = in.Price.Round(2)
	it.Currency = in.Currency
	if it.Currency == "" {
		it.Currency = "USD"
	}
	it.Availability = in.Availability
	if it.Availability == "" {
		it.Availability = model.Available
	}
	it.Stock = nil
	if in.Stock != nil {
		n := *in.Stock
		it.Stock = &n
	}
	it.ImageURL = strings.TrimSpace(in.ImageURL)
}
