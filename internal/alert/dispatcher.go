package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"order-processing-system/internal/metrics"
	"order-processing-system/internal/models"
)

const (
	maxAttempts         = 10
	maxBackoffDuration  = time.Hour
	httpTimeout         = 30 * time.Second
	workerPollInterval  = 100 * time.Millisecond
	maxResponseBodySize = 8 * 1024
)

// Payload is the JSON body posted to the notification endpoint for one
// low-stock alert. Delivery, templating and any onward email are the
// endpoint's business; this service only guarantees at-least-once dispatch.
type Payload struct {
	AlertID        string `json:"alert_id"`
	IngredientID   string `json:"ingredient_id"`
	IngredientName string `json:"ingredient_name"`
	Stock          string `json:"stock"`
	Unit           string `json:"unit"`
	Message        string `json:"message"`
}

// Store is the slice of the database the dispatcher reads and writes.
type Store interface {
	GetStockAlert(ctx context.Context, id string) (*models.StockAlert, error)
	UpdateStockAlert(ctx context.Context, alert *models.StockAlert) error
	GetPendingAlerts(ctx context.Context) ([]models.StockAlert, error)
}

// Queue is the redis-backed dispatch queue the workers drain.
type Queue interface {
	DequeueAlert(ctx context.Context) (*models.AlertQueueItem, error)
	CompleteAlert(ctx context.Context, alertID string) error
	EnqueueAlert(ctx context.Context, item models.AlertQueueItem) error
	EnqueueAlertWithDelay(ctx context.Context, item models.AlertQueueItem, delay time.Duration) error
	RescheduleAlert(ctx context.Context, item models.AlertQueueItem, delay time.Duration) error
	GetQueuedAlerts(ctx context.Context) ([]models.AlertQueueItem, error)
	ClearAlertProcessing(ctx context.Context) error
}

// Dispatcher drains the alert queue and posts each alert to the configured
// webhook, retrying with exponential backoff and dead-lettering after
// maxAttempts. It never touches order state: a lost alert is re-driven from
// its pending outbox row, never by replaying the order.
type Dispatcher struct {
	db             Store
	queue          Queue
	metrics        *metrics.Collector
	circuitBreaker *CircuitBreaker
	rateLimiter    *RateLimiter
	logger         *zap.Logger
	targetURL      string
	httpClient     *http.Client
}

func NewDispatcher(db Store, q Queue, m *metrics.Collector, cb *CircuitBreaker, rl *RateLimiter, logger *zap.Logger, targetURL string) *Dispatcher {
	return &Dispatcher{
		db:             db,
		queue:          q,
		metrics:        m,
		circuitBreaker: cb,
		rateLimiter:    rl,
		logger:         logger,
		targetURL:      targetURL,
		httpClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (d *Dispatcher) StartWorker(ctx context.Context, workerID int) {
	d.logger.Info("alert worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("alert worker stopped", zap.Int("worker_id", workerID))
			return
		default:
			item, err := d.queue.DequeueAlert(ctx)
			if err != nil {
				d.logger.Error("failed to dequeue alert", zap.Int("worker_id", workerID), zap.Error(err))
				time.Sleep(time.Second)
				continue
			}

			if item == nil {
				time.Sleep(workerPollInterval)
				continue
			}

			d.processAlert(ctx, item)
		}
	}
}

func (d *Dispatcher) processAlert(ctx context.Context, item *models.AlertQueueItem) {
	defer func() {
		if err := d.queue.CompleteAlert(ctx, item.AlertID); err != nil {
			d.logger.Error("failed to complete alert", zap.String("alert_id", item.AlertID), zap.Error(err))
		}
	}()

	alert, err := d.db.GetStockAlert(ctx, item.AlertID)
	if err != nil {
		d.logger.Error("failed to load alert", zap.String("alert_id", item.AlertID), zap.Error(err))
		return
	}

	if alert.Status != models.AlertStatusPending {
		return
	}

	if !d.circuitBreaker.Allow(d.targetURL) {
		delay := d.circuitBreaker.GetResetDelay(d.targetURL)
		if delay == 0 {
			delay = 100 * time.Millisecond
		}
		if err := d.queue.RescheduleAlert(ctx, *item, delay); err != nil {
			d.logger.Error("failed to reschedule alert", zap.String("alert_id", item.AlertID), zap.Error(err))
		}
		return
	}

	if !d.rateLimiter.Allow(d.targetURL) {
		delay := d.rateLimiter.GetRetryDelay(d.targetURL)
		if err := d.queue.RescheduleAlert(ctx, *item, delay); err != nil {
			d.logger.Error("failed to reschedule rate-limited alert", zap.String("alert_id", item.AlertID), zap.Error(err))
		}
		return
	}

	alert.AttemptNumber++
	success, status := d.deliver(ctx, alert)

	if success {
		alert.Status = models.AlertStatusDelivered
		alert.NextRetryAt = nil
		d.circuitBreaker.RecordSuccess(d.targetURL)
		d.metrics.RecordAlertDelivered()
		d.logger.Info("stock alert delivered",
			zap.String("alert_id", alert.ID),
			zap.String("ingredient", alert.IngredientName),
			zap.Int("attempt", alert.AttemptNumber))
	} else {
		d.circuitBreaker.RecordFailure(d.targetURL)

		if alert.AttemptNumber >= maxAttempts {
			alert.Status = models.AlertStatusDead
			alert.NextRetryAt = nil
			d.metrics.RecordAlertDead()
			d.logger.Error("stock alert dead-lettered",
				zap.String("alert_id", alert.ID),
				zap.String("ingredient", alert.IngredientName),
				zap.Int("last_status", status))
		} else {
			backoff := calculateBackoff(alert.AttemptNumber)
			retryAt := time.Now().Add(backoff)
			alert.NextRetryAt = &retryAt

			if err := d.queue.EnqueueAlertWithDelay(ctx, models.AlertQueueItem{
				AlertID:      alert.ID,
				IngredientID: alert.IngredientID,
			}, backoff); err != nil {
				d.logger.Error("failed to requeue alert", zap.String("alert_id", alert.ID), zap.Error(err))
			}
		}
	}

	if err := d.db.UpdateStockAlert(ctx, alert); err != nil {
		d.logger.Error("failed to update alert", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

func (d *Dispatcher) deliver(ctx context.Context, alert *models.StockAlert) (bool, int) {
	payload := Payload{
		AlertID:        alert.ID,
		IngredientID:   alert.IngredientID,
		IngredientName: alert.IngredientName,
		Stock:          alert.Stock.String(),
		Unit:           alert.Unit,
		Message:        fmt.Sprintf("The stock level for %s has dropped below 50%%. Current stock: %s %s.", alert.IngredientName, alert.Stock.String(), alert.Unit),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("failed to marshal alert payload", zap.String("alert_id", alert.ID), zap.Error(err))
		return false, 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.targetURL, bytes.NewReader(body))
	if err != nil {
		return false, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-ID", alert.ID)
	req.Header.Set("X-Ingredient-ID", alert.IngredientID)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("alert delivery attempt failed", zap.String("alert_id", alert.ID), zap.Error(err))
		return false, 0
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	return resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode
}

// RecoverPendingAlerts re-enqueues any pending alert that is not already in
// the redis queue. Covers the crash window between transaction commit and
// enqueue, and redis flushes.
func (d *Dispatcher) RecoverPendingAlerts(ctx context.Context) error {
	if err := d.queue.ClearAlertProcessing(ctx); err != nil {
		d.logger.Warn("failed to clear alert processing set", zap.Error(err))
	}

	pending, err := d.db.GetPendingAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending alerts: %w", err)
	}

	queued, err := d.queue.GetQueuedAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get queued alerts: %w", err)
	}

	inQueue := make(map[string]bool)
	for _, item := range queued {
		inQueue[item.AlertID] = true
	}

	recovered := 0
	for _, alert := range pending {
		if inQueue[alert.ID] {
			continue
		}

		var score float64
		if alert.NextRetryAt != nil {
			score = float64(alert.NextRetryAt.UnixNano())
		} else {
			score = float64(time.Now().UnixNano())
		}

		item := models.AlertQueueItem{
			AlertID:      alert.ID,
			IngredientID: alert.IngredientID,
			Score:        score,
		}
		if err := d.queue.EnqueueAlert(ctx, item); err != nil {
			d.logger.Error("failed to recover alert", zap.String("alert_id", alert.ID), zap.Error(err))
			continue
		}
		recovered++
	}

	if recovered > 0 {
		d.logger.Info("recovered pending alerts", zap.Int("count", recovered))
	}
	return nil
}

// ReplayAlert puts a dead alert back on the queue with a fresh attempt budget.
func (d *Dispatcher) ReplayAlert(ctx context.Context, alertID string) (*models.StockAlert, error) {
	alert, err := d.db.GetStockAlert(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	if alert.Status != models.AlertStatusDead {
		return nil, fmt.Errorf("can only replay dead alerts, current status: %s", alert.Status)
	}

	alert.Status = models.AlertStatusPending
	alert.AttemptNumber = 0
	alert.NextRetryAt = nil
	if err := d.db.UpdateStockAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}

	item := models.AlertQueueItem{
		AlertID:      alert.ID,
		IngredientID: alert.IngredientID,
		Score:        float64(time.Now().UnixNano()),
	}
	if err := d.queue.EnqueueAlert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to enqueue alert: %w", err)
	}

	return alert, nil
}

func calculateBackoff(attempt int) time.Duration {
	backoff := time.Second * time.Duration(1<<uint(attempt-1))
	if backoff > maxBackoffDuration {
		backoff = maxBackoffDuration
	}
	return backoff
}
