package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"order-processing-system/internal/models"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(connString string) (*DB, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Migrate() error {
	ctx := context.Background()

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ingredients (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(50) NOT NULL,
			stock NUMERIC(16,4) NOT NULL,
			initial_stock NUMERIC(16,4) NOT NULL,
			alert_sent BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingredients_alert_sent ON ingredients(alert_sent)`,

		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(255) NOT NULL,
			simulate_failure BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS product_ingredients (
			product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			ingredient_id UUID NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
			amount NUMERIC(16,4) NOT NULL CHECK (amount >= 0),
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (product_id, ingredient_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_product_ingredients_product_id ON product_ingredients(product_id)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS order_products (
			id BIGSERIAL PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity >= 1)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_products_order_id ON order_products(order_id)`,

		`CREATE TABLE IF NOT EXISTS stock_alerts (
			id UUID PRIMARY KEY,
			ingredient_id UUID NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
			ingredient_name VARCHAR(255) NOT NULL,
			stock NUMERIC(16,4) NOT NULL,
			unit VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			attempt_number INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			next_retry_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_alerts_status ON stock_alerts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_alerts_ingredient_id ON stock_alerts(ingredient_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

func (db *DB) CreateIngredient(ctx context.Context, ing *models.Ingredient) error {
	query := `
		INSERT INTO ingredients (id, name, unit, stock, initial_stock, alert_sent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.pool.Exec(ctx, query, ing.ID, ing.Name, ing.Unit, ing.Stock, ing.InitialStock, ing.AlertSent, ing.CreatedAt)
	return err
}

func (db *DB) GetIngredient(ctx context.Context, id string) (*models.Ingredient, error) {
	query := `SELECT id, name, unit, stock, initial_stock, alert_sent, created_at FROM ingredients WHERE id = $1`

	var ing models.Ingredient
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&ing.ID, &ing.Name, &ing.Unit, &ing.Stock, &ing.InitialStock, &ing.AlertSent, &ing.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

func (db *DB) ListIngredients(ctx context.Context) ([]models.Ingredient, error) {
	query := `SELECT id, name, unit, stock, initial_stock, alert_sent, created_at FROM ingredients ORDER BY created_at`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []models.Ingredient
	for rows.Next() {
		var ing models.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.Stock, &ing.InitialStock, &ing.AlertSent, &ing.CreatedAt); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

func (db *DB) UpdateIngredient(ctx context.Context, ing *models.Ingredient) error {
	query := `UPDATE ingredients SET name = $1, unit = $2, stock = $3, initial_stock = $4, alert_sent = $5 WHERE id = $6`
	_, err := db.pool.Exec(ctx, query, ing.Name, ing.Unit, ing.Stock, ing.InitialStock, ing.AlertSent, ing.ID)
	return err
}

// RestockIngredient sets a new stock level and clears the alert latch, ending
// the current low-stock episode. This is the only place the latch is cleared.
func (db *DB) RestockIngredient(ctx context.Context, id string, stock decimal.Decimal) (*models.Ingredient, error) {
	query := `
		UPDATE ingredients SET stock = $1, alert_sent = false
		WHERE id = $2
		RETURNING id, name, unit, stock, initial_stock, alert_sent, created_at
	`
	var ing models.Ingredient
	err := db.pool.QueryRow(ctx, query, stock, id).Scan(
		&ing.ID, &ing.Name, &ing.Unit, &ing.Stock, &ing.InitialStock, &ing.AlertSent, &ing.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

func (db *DB) DeleteIngredient(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	return err
}

func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `INSERT INTO products (id, name, simulate_failure, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, query, p.ID, p.Name, p.SimulateFailure, p.CreatedAt); err != nil {
		return err
	}

	if err := insertRecipe(ctx, tx, p.ID, p.Recipe); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertRecipe(ctx context.Context, tx pgx.Tx, productID string, recipe []models.RecipeEntry) error {
	query := `INSERT INTO product_ingredients (product_id, ingredient_id, amount, position) VALUES ($1, $2, $3, $4)`
	for i, entry := range recipe {
		if _, err := tx.Exec(ctx, query, productID, entry.IngredientID, entry.Amount, i); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT id, name, simulate_failure, created_at FROM products WHERE id = $1`

	var p models.Product
	err := db.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.SimulateFailure, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	recipe, err := db.getRecipe(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Recipe = recipe
	return &p, nil
}

func (db *DB) getRecipe(ctx context.Context, productID string) ([]models.RecipeEntry, error) {
	query := `
		SELECT product_id, ingredient_id, amount, position
		FROM product_ingredients
		WHERE product_id = $1
		ORDER BY position, ingredient_id
	`
	rows, err := db.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipe []models.RecipeEntry
	for rows.Next() {
		var entry models.RecipeEntry
		if err := rows.Scan(&entry.ProductID, &entry.IngredientID, &entry.Amount, &entry.Position); err != nil {
			return nil, err
		}
		recipe = append(recipe, entry)
	}
	return recipe, rows.Err()
}

func (db *DB) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := `SELECT id, name, simulate_failure, created_at FROM products ORDER BY created_at`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SimulateFailure, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProduct replaces the product row and its whole recipe.
func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE products SET name = $1, simulate_failure = $2 WHERE id = $3`,
		p.Name, p.SimulateFailure, p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_ingredients WHERE product_id = $1`, p.ID); err != nil {
		return err
	}
	if err := insertRecipe(ctx, tx, p.ID, p.Recipe); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *DB) DeleteProduct(ctx context.Context, id string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (db *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var ord models.Order
	err := db.pool.QueryRow(ctx, `SELECT id, created_at FROM orders WHERE id = $1`, id).
		Scan(&ord.ID, &ord.CreatedAt)
	if err != nil {
		return nil, err
	}

	query := `SELECT order_id, product_id, quantity FROM order_products WHERE order_id = $1 ORDER BY id`
	rows, err := db.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ord.Lines = []models.OrderLine{}
	for rows.Next() {
		var line models.OrderLine
		if err := rows.Scan(&line.OrderID, &line.ProductID, &line.Quantity); err != nil {
			return nil, err
		}
		ord.Lines = append(ord.Lines, line)
	}
	return &ord, rows.Err()
}

func (db *DB) GetStockAlert(ctx context.Context, id string) (*models.StockAlert, error) {
	query := `
		SELECT id, ingredient_id, ingredient_name, stock, unit, status, attempt_number, created_at, next_retry_at
		FROM stock_alerts WHERE id = $1
	`
	var a models.StockAlert
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.IngredientID, &a.IngredientName, &a.Stock, &a.Unit,
		&a.Status, &a.AttemptNumber, &a.CreatedAt, &a.NextRetryAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) ListStockAlerts(ctx context.Context, status models.AlertStatus, limit, offset int) ([]models.StockAlert, error) {
	query := `
		SELECT id, ingredient_id, ingredient_name, stock, unit, status, attempt_number, created_at, next_retry_at
		FROM stock_alerts
	`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.StockAlert
	for rows.Next() {
		var a models.StockAlert
		if err := rows.Scan(&a.ID, &a.IngredientID, &a.IngredientName, &a.Stock, &a.Unit,
			&a.Status, &a.AttemptNumber, &a.CreatedAt, &a.NextRetryAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (db *DB) UpdateStockAlert(ctx context.Context, alert *models.StockAlert) error {
	query := `UPDATE stock_alerts SET status = $1, attempt_number = $2, next_retry_at = $3 WHERE id = $4`
	_, err := db.pool.Exec(ctx, query, alert.Status, alert.AttemptNumber, alert.NextRetryAt, alert.ID)
	return err
}

// GetPendingAlerts returns alerts that still need delivery, oldest retry
// first. Used on startup to re-enqueue anything lost between commit and
// enqueue.
func (db *DB) GetPendingAlerts(ctx context.Context) ([]models.StockAlert, error) {
	query := `
		SELECT id, ingredient_id, ingredient_name, stock, unit, status, attempt_number, created_at, next_retry_at
		FROM stock_alerts
		WHERE status = 'pending'
		ORDER BY next_retry_at ASC NULLS FIRST
	`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []models.StockAlert
	for rows.Next() {
		var a models.StockAlert
		if err := rows.Scan(&a.ID, &a.IngredientID, &a.IngredientName, &a.Stock, &a.Unit,
			&a.Status, &a.AttemptNumber, &a.CreatedAt, &a.NextRetryAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
