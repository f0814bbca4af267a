package service

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
)

// PricingPolicy turns order lines into totals.  Rates are fractions of the
// subtotal and come from deployment configuration.
type PricingPolicy struct {
	TaxRate           decimal.Decimal
	ServiceChargeRate decimal.Decimal
}

// Price computes the order totals.  Each component is rounded to cents
// before the total is summed, so Total always equals the sum of the
// stored components.
func (p PricingPolicy) Price(lines []model.OrderLine, discount decimal.Decimal) model.OrderPricing {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)
	service := subtotal.Mul(p.ServiceChargeRate).Round(2)
	discount = discount.Round(2)
	return model.OrderPricing{
		Subtotal:      subtotal,
		Tax:           tax,
		ServiceCharge: service,
		Discount:      discount,
		Total:         subtotal.Add(tax).Add(service).Sub(discount),
	}
}

// Line snapshots it at the current price.
func Line(it model.Item, qty int) model.OrderLine {
	unit := it.Price.Round(2)
	return model.OrderLine{
		ItemID:    it.ID,
		Name:      it.Name,
		Quantity:  qty,
		UnitPrice: unit,
		LineTotal: unit.Mul(decimal.NewFromInt(int64(qty))),
	}
}
