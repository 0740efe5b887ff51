package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"order-processing-system/internal/models"
	"order-processing-system/internal/order"
)

// InTx runs fn inside one transaction: every read and write fn performs
// through the Store either commits as a unit or leaves no trace. Implements
// order.TxRunner.
func (db *DB) InTx(ctx context.Context, fn func(order.Store) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the transaction-scoped implementation of order.Store.
type txStore struct {
	tx pgx.Tx
}

func (s *txStore) CreateOrder(ctx context.Context, ord *models.Order) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO orders (id, created_at) VALUES ($1, $2)`, ord.ID, ord.CreatedAt)
	return err
}

func (s *txStore) AddOrderLine(ctx context.Context, line models.OrderLine) error {
	query := `INSERT INTO order_products (order_id, product_id, quantity) VALUES ($1, $2, $3)`
	_, err := s.tx.Exec(ctx, query, line.OrderID, line.ProductID, line.Quantity)
	return err
}

// ProductWithRecipe loads the product and, in a single joined read, its
// recipe entries with the referenced ingredient rows. The FOR UPDATE on the
// ingredient rows pins them until commit so two concurrent orders cannot both
// see the same stock as sufficient and decrement past it.
func (s *txStore) ProductWithRecipe(ctx context.Context, productID string) (*models.Product, map[string]*models.Ingredient, error) {
	var p models.Product
	err := s.tx.QueryRow(ctx, `SELECT id, name, simulate_failure, created_at FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.Name, &p.SimulateFailure, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	query := `
		SELECT pi.product_id, pi.ingredient_id, pi.amount, pi.position,
		       i.id, i.name, i.unit, i.stock, i.initial_stock, i.alert_sent, i.created_at
		FROM product_ingredients pi
		JOIN ingredients i ON pi.ingredient_id = i.id
		WHERE pi.product_id = $1
		ORDER BY pi.position, pi.ingredient_id
		FOR UPDATE OF i
	`
	rows, err := s.tx.Query(ctx, query, productID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	ingredients := make(map[string]*models.Ingredient)
	for rows.Next() {
		var entry models.RecipeEntry
		var ing models.Ingredient
		if err := rows.Scan(&entry.ProductID, &entry.IngredientID, &entry.Amount, &entry.Position,
			&ing.ID, &ing.Name, &ing.Unit, &ing.Stock, &ing.InitialStock, &ing.AlertSent, &ing.CreatedAt); err != nil {
			return nil, nil, err
		}
		p.Recipe = append(p.Recipe, entry)
		ingredients[ing.ID] = &ing
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return &p, ingredients, nil
}

func (s *txStore) UpdateIngredient(ctx context.Context, ing *models.Ingredient) error {
	query := `UPDATE ingredients SET stock = $1, alert_sent = $2 WHERE id = $3`
	_, err := s.tx.Exec(ctx, query, ing.Stock, ing.AlertSent, ing.ID)
	return err
}

func (s *txStore) CreateStockAlert(ctx context.Context, alert *models.StockAlert) error {
	query := `
		INSERT INTO stock_alerts (id, ingredient_id, ingredient_name, stock, unit, status, attempt_number, created_at, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.tx.Exec(ctx, query, alert.ID, alert.IngredientID, alert.IngredientName,
		alert.Stock, alert.Unit, alert.Status, alert.AttemptNumber, alert.CreatedAt, alert.NextRetryAt)
	return err
}
