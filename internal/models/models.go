package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient is shared stock consumed by product recipes. Stock and
// InitialStock are decimals because recipe amounts are fractional in the
// ingredient's unit of measure.
type Ingredient struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Stock        decimal.Decimal `json:"stock"`
	InitialStock decimal.Decimal `json:"initial_stock"`
	AlertSent    bool            `json:"alert_sent"`
	CreatedAt    time.Time       `json:"created_at"`
}

// RecipeEntry is one row of a product's recipe: how much of one ingredient
// a single unit of the product consumes.
type RecipeEntry struct {
	ProductID    string          `json:"product_id"`
	IngredientID string          `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
	Position     int             `json:"position"`
}

type Product struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Recipe    []RecipeEntry `json:"recipe"`
	CreatedAt time.Time     `json:"created_at"`

	// SimulateFailure makes order processing fail on this product so the
	// rollback path can be exercised in integration environments.
	SimulateFailure bool `json:"simulate_failure"`
}

type OrderLine struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID        string      `json:"id"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
}

type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusDelivered AlertStatus = "delivered"
	AlertStatusDead      AlertStatus = "dead"
)

// StockAlert is the outbox row written inside an order transaction when an
// ingredient's stock first drops below half of its initial stock. Delivery
// happens asynchronously after commit.
type StockAlert struct {
	ID             string          `json:"id"`
	IngredientID   string          `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Stock          decimal.Decimal `json:"stock"`
	Unit           string          `json:"unit"`
	Status         AlertStatus     `json:"status"`
	AttemptNumber  int             `json:"attempt_number"`
	CreatedAt      time.Time       `json:"created_at"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
}

// AlertQueueItem is what the redis dispatch queue carries per pending alert.
type AlertQueueItem struct {
	AlertID      string  `json:"alert_id"`
	IngredientID string  `json:"ingredient_id"`
	Score        float64 `json:"score"`
}

// OrderRequestLine is one (product, quantity) pair of an inbound order
// payload, in caller-supplied order.
type OrderRequestLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderRequest struct {
	Products []OrderRequestLine `json:"products"`
}

// QueuedOrder wraps an order payload placed on the async intake queue.
type QueuedOrder struct {
	JobID    string             `json:"job_id"`
	Products []OrderRequestLine `json:"products"`
	Score    float64            `json:"score"`
}
