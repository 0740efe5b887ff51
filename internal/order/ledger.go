package order

import (
	"github.com/shopspring/decimal"

	"order-processing-system/internal/models"
)

var two = decimal.NewFromInt(2)

// ApplyConsumption decrements the ingredient's stock by amount and reports
// whether a low-stock alert newly fires. The alert fires when stock drops
// below half of initial_stock and the latch is not already set; the latch is
// set here and is only ever cleared by restocking, so an ingredient alerts at
// most once per low-stock episode no matter how far stock keeps falling.
func ApplyConsumption(ing *models.Ingredient, amount decimal.Decimal) bool {
	ing.Stock = ing.Stock.Sub(amount)

	if ing.AlertSent {
		return false
	}
	if ing.Stock.LessThan(ing.InitialStock.Div(two)) {
		ing.AlertSent = true
		return true
	}
	return false
}
