package order

import (
	"context"
	"fmt"

	"order-processing-system/internal/models"
)

// Resolver loads products and their recipes for one transaction. The single
// combined read keeps validation from making a round trip per ingredient.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, productID string) (*models.Product, map[string]*models.Ingredient, error) {
	product, ingredients, err := r.store.ProductWithRecipe(ctx, productID)
	if err != nil {
		return nil, nil, &ProcessingError{Reason: fmt.Sprintf("resolve product %s", productID), Err: err}
	}
	if product == nil {
		return nil, nil, &NotFoundError{ProductID: productID}
	}
	return product, ingredients, nil
}
