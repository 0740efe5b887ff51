package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-processing-system/internal/models"
)

// Seed loads the demo catalog: three ingredients and a burger whose recipe
// consumes 150g beef, 30g cheese and 20g onion per unit.
func (db *DB) Seed(ctx context.Context) (*models.Product, error) {
	now := time.Now()

	ingredients := []models.Ingredient{
		{ID: uuid.New().String(), Name: "Beef", Unit: "g", Stock: decimal.NewFromInt(20000), InitialStock: decimal.NewFromInt(20000), CreatedAt: now},
		{ID: uuid.New().String(), Name: "Cheese", Unit: "g", Stock: decimal.NewFromInt(5000), InitialStock: decimal.NewFromInt(5000), CreatedAt: now},
		{ID: uuid.New().String(), Name: "Onion", Unit: "g", Stock: decimal.NewFromInt(1000), InitialStock: decimal.NewFromInt(1000), CreatedAt: now},
	}
	for i := range ingredients {
		if err := db.CreateIngredient(ctx, &ingredients[i]); err != nil {
			return nil, err
		}
	}

	amounts := []int64{150, 30, 20}
	burger := &models.Product{
		ID:        uuid.New().String(),
		Name:      "Burger",
		CreatedAt: now,
	}
	for i, ing := range ingredients {
		burger.Recipe = append(burger.Recipe, models.RecipeEntry{
			ProductID:    burger.ID,
			IngredientID: ing.ID,
			Amount:       decimal.NewFromInt(amounts[i]),
			Position:     i,
		})
	}

	if err := db.CreateProduct(ctx, burger); err != nil {
		return nil, err
	}
	return burger, nil
}
