package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-processing-system/internal/metrics"
	"order-processing-system/internal/models"
)

// lineBatchSize bounds how many order lines are resolved and validated per
// pass. Batching only shapes resource usage: every batch runs inside the same
// transaction, so a failure in a later batch still undoes earlier ones.
const lineBatchSize = 100

// AlertQueue receives dispatch requests for stock alerts after the order
// transaction has committed.
type AlertQueue interface {
	EnqueueAlert(ctx context.Context, item models.AlertQueueItem) error
}

// Service is the order transaction coordinator. It owns the all-or-nothing
// semantics of an order: either the order row, every order line, every stock
// decrement and every alert latch are committed together, or none are.
type Service struct {
	db      TxRunner
	alerts  AlertQueue
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewService(db TxRunner, alerts AlertQueue, m *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		alerts:  alerts,
		metrics: m,
		logger:  logger,
	}
}

// ProcessOrder validates and commits the requested lines as a single unit.
// Lines are processed in caller-supplied order; an empty request is valid and
// yields an order with no lines. On any failure the whole transaction is
// rolled back and a typed error is returned: *NotFoundError for an unknown
// product, *InsufficientStockError for a shortage, *ProcessingError for
// anything unexpected.
func (s *Service) ProcessOrder(ctx context.Context, lines []models.OrderRequestLine) (*models.Order, error) {
	ord := &models.Order{
		ID:        uuid.New().String(),
		Lines:     []models.OrderLine{},
		CreatedAt: time.Now(),
	}

	var pending []models.StockAlert

	err := s.db.InTx(ctx, func(st Store) error {
		if err := st.CreateOrder(ctx, ord); err != nil {
			return &ProcessingError{Reason: "create order", Err: err}
		}

		resolver := NewResolver(st)

		for _, batch := range partition(lines, lineBatchSize) {
			for _, line := range batch {
				alerts, err := s.processLine(ctx, st, resolver, ord, line)
				if err != nil {
					return err
				}
				pending = append(pending, alerts...)
			}
		}
		return nil
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	// The order is committed; alert delivery is a side channel and must not
	// affect it. The pending rows are already persisted, so a failed enqueue
	// is recovered at startup.
	for _, alert := range pending {
		s.metrics.RecordAlertFired()
		item := models.AlertQueueItem{
			AlertID:      alert.ID,
			IngredientID: alert.IngredientID,
			Score:        float64(time.Now().UnixNano()),
		}
		if err := s.alerts.EnqueueAlert(ctx, item); err != nil {
			s.logger.Error("failed to enqueue stock alert",
				zap.String("alert_id", alert.ID),
				zap.String("ingredient", alert.IngredientName),
				zap.Error(err))
		}
	}

	s.metrics.RecordOrderProcessed()
	s.logger.Info("order processed",
		zap.String("order_id", ord.ID),
		zap.Int("lines", len(ord.Lines)),
		zap.Int("alerts_fired", len(pending)))

	return ord, nil
}

// processLine handles one (product, quantity) pair: resolve, validate, attach
// the line, consume stock. Returns the stock alerts that newly latched.
func (s *Service) processLine(ctx context.Context, st Store, resolver *Resolver, ord *models.Order, line models.OrderRequestLine) ([]models.StockAlert, error) {
	product, ingredients, err := resolver.Resolve(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	if err := CheckAvailability(product.Recipe, ingredients, line.Quantity); err != nil {
		return nil, err
	}

	// Stand-in for any persistence fault mid-transaction; exercises the
	// rollback path end to end.
	if product.SimulateFailure {
		return nil, &ProcessingError{Reason: fmt.Sprintf("product %s is flagged to fail", product.ID)}
	}

	ol := models.OrderLine{
		OrderID:   ord.ID,
		ProductID: product.ID,
		Quantity:  line.Quantity,
	}
	if err := st.AddOrderLine(ctx, ol); err != nil {
		return nil, &ProcessingError{Reason: "add order line", Err: err}
	}
	ord.Lines = append(ord.Lines, ol)

	var fired []models.StockAlert
	qty := decimal.NewFromInt(int64(line.Quantity))

	for _, entry := range product.Recipe {
		ing := ingredients[entry.IngredientID]

		if ApplyConsumption(ing, entry.Amount.Mul(qty)) {
			alert := models.StockAlert{
				ID:             uuid.New().String(),
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Stock:          ing.Stock,
				Unit:           ing.Unit,
				Status:         models.AlertStatusPending,
				CreatedAt:      time.Now(),
			}
			if err := st.CreateStockAlert(ctx, &alert); err != nil {
				return nil, &ProcessingError{Reason: "create stock alert", Err: err}
			}
			fired = append(fired, alert)
		}

		if err := st.UpdateIngredient(ctx, ing); err != nil {
			return nil, &ProcessingError{Reason: "update ingredient stock", Err: err}
		}
	}

	return fired, nil
}

func (s *Service) recordFailure(err error) {
	var insufficient *InsufficientStockError
	var notFound *NotFoundError

	switch {
	case errors.As(err, &insufficient):
		s.metrics.RecordOrderRejected()
		s.logger.Info("order rejected", zap.String("ingredient", insufficient.IngredientName))
	case errors.As(err, &notFound):
		s.metrics.RecordOrderRejected()
		s.logger.Info("order referenced unknown product", zap.String("product_id", notFound.ProductID))
	default:
		s.metrics.RecordOrderFailed()
		s.logger.Error("order processing failed", zap.Error(err))
	}
}

// partition splits lines into order-preserving chunks of at most size.
func partition(lines []models.OrderRequestLine, size int) [][]models.OrderRequestLine {
	if len(lines) == 0 {
		return nil
	}

	var batches [][]models.OrderRequestLine
	for start := 0; start < len(lines); start += size {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		batches = append(batches, lines[start:end])
	}
	return batches
}
