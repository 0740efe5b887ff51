package order

import (
	"github.com/shopspring/decimal"

	"order-processing-system/internal/models"
)

// CheckAvailability verifies that current stock covers amount × quantity for
// every recipe entry. It fails on the first short ingredient in recipe order,
// so callers get one specific, actionable shortage rather than an aggregate.
// It never mutates stock.
func CheckAvailability(recipe []models.RecipeEntry, ingredients map[string]*models.Ingredient, quantity int) error {
	qty := decimal.NewFromInt(int64(quantity))

	for _, entry := range recipe {
		ing, ok := ingredients[entry.IngredientID]
		if !ok {
			return &ProcessingError{Reason: "recipe references ingredient " + entry.IngredientID + " that was not loaded"}
		}

		required := entry.Amount.Mul(qty)
		if ing.Stock.LessThan(required) {
			return &InsufficientStockError{IngredientName: ing.Name}
		}
	}

	return nil
}
