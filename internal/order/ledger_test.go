package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"order-processing-system/internal/models"
)

func ingredient(name string, stock, initial int64) *models.Ingredient {
	return &models.Ingredient{
		ID:           name,
		Name:         name,
		Unit:         "g",
		Stock:        decimal.NewFromInt(stock),
		InitialStock: decimal.NewFromInt(initial),
	}
}

func TestApplyConsumptionDecrementsStock(t *testing.T) {
	beef := ingredient("Beef", 20000, 20000)

	// 2 burgers at 150g each
	fired := ApplyConsumption(beef, decimal.NewFromInt(300))

	assert.False(t, fired)
	assert.False(t, beef.AlertSent)
	assert.Equal(t, "19700", beef.Stock.String())
}

func TestApplyConsumptionFiresAlertBelowHalf(t *testing.T) {
	cheese := ingredient("Cheese", 160, 160)

	fired := ApplyConsumption(cheese, decimal.NewFromInt(90))

	assert.True(t, fired)
	assert.True(t, cheese.AlertSent)
	assert.Equal(t, "70", cheese.Stock.String())
}

func TestApplyConsumptionExactlyHalfDoesNotFire(t *testing.T) {
	onion := ingredient("Onion", 100, 100)

	// 100 - 50 = 50, which is not strictly below 50% of 100
	fired := ApplyConsumption(onion, decimal.NewFromInt(50))

	assert.False(t, fired)
	assert.False(t, onion.AlertSent)
	assert.Equal(t, "50", onion.Stock.String())
}

func TestApplyConsumptionLatchFiresOnce(t *testing.T) {
	cheese := ingredient("Cheese", 160, 160)

	assert.True(t, ApplyConsumption(cheese, decimal.NewFromInt(90)))

	// Stock keeps dropping but the latch is already set.
	assert.False(t, ApplyConsumption(cheese, decimal.NewFromInt(30)))
	assert.False(t, ApplyConsumption(cheese, decimal.NewFromInt(30)))

	assert.True(t, cheese.AlertSent)
	assert.Equal(t, "10", cheese.Stock.String())
}

func TestApplyConsumptionPreLatchedNeverRefires(t *testing.T) {
	beef := ingredient("Beef", 5000, 20000)
	beef.AlertSent = true

	fired := ApplyConsumption(beef, decimal.NewFromInt(1000))

	assert.False(t, fired)
	assert.Equal(t, "4000", beef.Stock.String())
}

func TestApplyConsumptionFractionalAmounts(t *testing.T) {
	salt := ingredient("Salt", 10, 10)

	fired := ApplyConsumption(salt, decimal.RequireFromString("5.5"))

	assert.True(t, fired)
	assert.Equal(t, "4.5", salt.Stock.String())
}
