package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-processing-system/internal/models"
)

func recipeFixture() ([]models.RecipeEntry, map[string]*models.Ingredient) {
	recipe := []models.RecipeEntry{
		{ProductID: "burger", IngredientID: "beef", Amount: decimal.NewFromInt(150), Position: 0},
		{ProductID: "burger", IngredientID: "cheese", Amount: decimal.NewFromInt(30), Position: 1},
		{ProductID: "burger", IngredientID: "onion", Amount: decimal.NewFromInt(20), Position: 2},
	}
	ingredients := map[string]*models.Ingredient{
		"beef":   ingredient("Beef", 20000, 20000),
		"cheese": ingredient("Cheese", 5000, 5000),
		"onion":  ingredient("Onion", 1000, 1000),
	}
	return recipe, ingredients
}

func TestCheckAvailabilityOk(t *testing.T) {
	recipe, ingredients := recipeFixture()

	assert.NoError(t, CheckAvailability(recipe, ingredients, 2))
}

func TestCheckAvailabilityInsufficient(t *testing.T) {
	recipe, ingredients := recipeFixture()
	ingredients["cheese"].Stock = decimal.NewFromInt(50)

	err := CheckAvailability(recipe, ingredients, 2)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Cheese", insufficient.IngredientName)
}

func TestCheckAvailabilityReportsFirstShortageInRecipeOrder(t *testing.T) {
	recipe, ingredients := recipeFixture()
	ingredients["beef"].Stock = decimal.NewFromInt(10)
	ingredients["onion"].Stock = decimal.NewFromInt(1)

	err := CheckAvailability(recipe, ingredients, 1)

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "Beef", insufficient.IngredientName)
}

func TestCheckAvailabilityExactStockSuffices(t *testing.T) {
	recipe, ingredients := recipeFixture()
	ingredients["beef"].Stock = decimal.NewFromInt(300)

	assert.NoError(t, CheckAvailability(recipe, ingredients, 2))
}

func TestCheckAvailabilityDoesNotMutate(t *testing.T) {
	recipe, ingredients := recipeFixture()

	require.NoError(t, CheckAvailability(recipe, ingredients, 2))

	assert.Equal(t, "20000", ingredients["beef"].Stock.String())
	assert.Equal(t, "5000", ingredients["cheese"].Stock.String())
	assert.Equal(t, "1000", ingredients["onion"].Stock.String())
}

func TestCheckAvailabilityMissingIngredientIsProcessingError(t *testing.T) {
	recipe, ingredients := recipeFixture()
	delete(ingredients, "onion")

	err := CheckAvailability(recipe, ingredients, 1)

	var processing *ProcessingError
	assert.ErrorAs(t, err, &processing)
}
