package order

import "fmt"

// NotFoundError means an order line referenced a product id that does not
// exist in the catalog.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError is a business-rule rejection: the first ingredient
// (in recipe order) whose stock does not cover the requirement.
type InsufficientStockError struct {
	IngredientName string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %q", e.IngredientName)
}

// ProcessingError is an unexpected internal fault. The transaction is always
// rolled back before it is surfaced.
type ProcessingError struct {
	Reason string
	Err    error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order processing failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("order processing failed: %s", e.Reason)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
