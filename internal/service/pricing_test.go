package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cruise-services/internal/model"
)

func TestPricingPolicy(t *testing.T) {
	p := PricingPolicy{TaxRate: decimal.RequireFromString("0.08"), ServiceChargeRate: decimal.RequireFromString("0.15")}

	tests := []struct {
		name     string
		price    string
		qty      int
		discount string
		want     [4]string
	}{
		{"ten times two", "10.00", 2, "0", [4]string{"20.00", "1.60", "3.00", "24.60"}},
		{"rounds components", "3.33", 3, "0", [4]string{"9.99", "0.80", "1.50", "12.29"}},
		{"discount", "50", 1, "5", [4]string{"50.00", "4.00", "7.50", "56.50"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := Line(model.Item{ID: 1, Name: "x", Price: decimal.RequireFromString(tt.price)}, tt.qty)
			got := p.Price([]model.OrderLine{line}, decimal.RequireFromString(tt.discount))
			assert.Equal(t, tt.want[0], got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.want[1], got.Tax.StringFixed(2))
			assert.Equal(t, tt.want[2], got.ServiceCharge.StringFixed(2))
			assert.Equal(t, tt.want[3], got.Total.StringFixed(2))
			assert.True(t, got.Total.Equal(got.Subtotal.Add(got.Tax).Add(got.ServiceCharge).Sub(got.Discount)))
		})
	}
}
