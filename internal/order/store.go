package order

import (
	"context"

	"order-processing-system/internal/models"
)

// Store is the transaction-scoped view of the persistent catalog the
// coordinator writes through. Implementations are only valid for the duration
// of one transaction.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	AddOrderLine(ctx context.Context, line models.OrderLine) error

	// ProductWithRecipe loads the product, its recipe entries in persisted
	// order, and the ingredient rows the recipe references, all in one read.
	// Ingredient rows are locked for the remainder of the transaction.
	// Returns (nil, nil, nil) when no product has the given id.
	ProductWithRecipe(ctx context.Context, productID string) (*models.Product, map[string]*models.Ingredient, error)

	UpdateIngredient(ctx context.Context, ing *models.Ingredient) error
	CreateStockAlert(ctx context.Context, alert *models.StockAlert) error
}

// TxRunner frames a function in a single atomic transaction. The Store passed
// to fn must not be retained after fn returns.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}
