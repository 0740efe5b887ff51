package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"order-processing-system/internal/database"
	"order-processing-system/internal/metrics"
	"order-processing-system/internal/models"
	"order-processing-system/internal/order"
)

// OrderProcessor is the synchronous entry point of the order transaction
// coordinator.
type OrderProcessor interface {
	ProcessOrder(ctx context.Context, lines []models.OrderRequestLine) (*models.Order, error)
}

// OrderQueue accepts order payloads for background processing and reports
// the depth of both redis queues for the metrics endpoint.
type OrderQueue interface {
	EnqueueOrder(ctx context.Context, job models.QueuedOrder) error
	OrderQueueSize(ctx context.Context) (int64, error)
	AlertQueueSize(ctx context.Context) (int64, error)
}

// AlertReplayer re-queues dead stock alerts.
type AlertReplayer interface {
	ReplayAlert(ctx context.Context, alertID string) (*models.StockAlert, error)
}

type Handler struct {
	db      *database.DB
	orders  OrderProcessor
	queue   OrderQueue
	alerts  AlertReplayer
	metrics *metrics.Collector
	logger  *zap.Logger
}

func New(db *database.DB, orders OrderProcessor, q OrderQueue, alerts AlertReplayer, m *metrics.Collector, logger *zap.Logger) *Handler {
	return &Handler{
		db:      db,
		orders:  orders,
		queue:   q,
		alerts:  alerts,
		metrics: m,
		logger:  logger,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

func validateOrderRequest(req *models.OrderRequest) (string, string) {
	for _, line := range req.Products {
		if _, err := uuid.Parse(line.ProductID); err != nil {
			return "invalid_product_id", "product_id must be a valid UUID"
		}
		if line.Quantity < 1 {
			return "invalid_quantity", "quantity must be at least 1"
		}
	}
	return "", ""
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if code, msg := validateOrderRequest(&req); code != "" {
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	ord, err := h.orders.ProcessOrder(r.Context(), req.Products)
	if err != nil {
		h.writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: ord})
}

func (h *Handler) writeOrderError(w http.ResponseWriter, err error) {
	var insufficient *order.InsufficientStockError
	var notFound *order.NotFoundError

	switch {
	case errors.As(err, &insufficient):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_stock", insufficient.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "product_not_found", notFound.Error())
	default:
		// Internal detail stays in the logs; the caller gets an opaque failure.
		h.logger.Error("order processing error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "order_processing_failed", "Order could not be processed")
	}
}

func (h *Handler) CreateOrderAsync(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if code, msg := validateOrderRequest(&req); code != "" {
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	job := models.QueuedOrder{
		JobID:    uuid.New().String(),
		Products: req.Products,
		Score:    float64(time.Now().UnixNano()),
	}
	if err := h.queue.EnqueueOrder(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "queue_error", "Failed to queue order")
		return
	}

	writeJSON(w, http.StatusAccepted, SuccessResponse{Success: true, Data: map[string]string{"job_id": job.JobID}})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ord, err := h.db.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Order not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: ord})
}

type RecipeEntryRequest struct {
	IngredientID string          `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type ProductRequest struct {
	Name            string               `json:"name"`
	SimulateFailure bool                 `json:"simulate_failure"`
	Recipe          []RecipeEntryRequest `json:"recipe"`
}

func (r *ProductRequest) validate() (string, string) {
	if r.Name == "" {
		return "missing_fields", "name is required"
	}
	for _, entry := range r.Recipe {
		if _, err := uuid.Parse(entry.IngredientID); err != nil {
			return "invalid_ingredient_id", "ingredient_id must be a valid UUID"
		}
		if entry.Amount.IsNegative() {
			return "invalid_amount", "amount must not be negative"
		}
	}
	return "", ""
}

func (r *ProductRequest) toModel(id string, createdAt time.Time) *models.Product {
	p := &models.Product{
		ID:              id,
		Name:            r.Name,
		SimulateFailure: r.SimulateFailure,
		CreatedAt:       createdAt,
	}
	for i, entry := range r.Recipe {
		p.Recipe = append(p.Recipe, models.RecipeEntry{
			ProductID:    id,
			IngredientID: entry.IngredientID,
			Amount:       entry.Amount,
			Position:     i,
		})
	}
	return p
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if code, msg := req.validate(); code != "" {
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	product := req.toModel(uuid.New().String(), time.Now())
	if err := h.db.CreateProduct(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to create product")
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: product})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.db.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Product not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: product})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.db.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to list products")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: products})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if code, msg := req.validate(); code != "" {
		writeError(w, http.StatusBadRequest, code, msg)
		return
	}

	product := req.toModel(id, time.Time{})
	if err := h.db.UpdateProduct(r.Context(), product); err != nil {
		if database.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "Product not found")
			return
		}
		h.logger.Error("failed to update product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to update product")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: product})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.db.DeleteProduct(r.Context(), id); err != nil {
		h.logger.Error("failed to delete product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete product")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

type IngredientRequest struct {
	Name         string           `json:"name"`
	Unit         string           `json:"unit"`
	Stock        *decimal.Decimal `json:"stock,omitempty"`
	InitialStock *decimal.Decimal `json:"initial_stock,omitempty"`
}

// apply overlays only the fields present in the request, so a partial update
// body never zeroes what it omits.
func (r *IngredientRequest) apply(ing *models.Ingredient) {
	if r.Name != "" {
		ing.Name = r.Name
	}
	if r.Unit != "" {
		ing.Unit = r.Unit
	}
	if r.Stock != nil {
		ing.Stock = *r.Stock
	}
	if r.InitialStock != nil {
		ing.InitialStock = *r.InitialStock
	}
}

func (h *Handler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req IngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Name == "" || req.Unit == "" {
		writeError(w, http.StatusBadRequest, "missing_fields", "name and unit are required")
		return
	}

	stock := decimal.Zero
	if req.Stock != nil {
		stock = *req.Stock
	}
	if stock.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_stock", "stock must not be negative")
		return
	}

	initial := stock
	if req.InitialStock != nil {
		initial = *req.InitialStock
	}

	ing := &models.Ingredient{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Unit:         req.Unit,
		Stock:        stock,
		InitialStock: initial,
		CreatedAt:    time.Now(),
	}
	if err := h.db.CreateIngredient(r.Context(), ing); err != nil {
		h.logger.Error("failed to create ingredient", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to create ingredient")
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: ing})
}

func (h *Handler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ing, err := h.db.GetIngredient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Ingredient not found")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: ing})
}

func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.db.ListIngredients(r.Context())
	if err != nil {
		h.logger.Error("failed to list ingredients", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to list ingredients")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: ingredients})
}

func (h *Handler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ing, err := h.db.GetIngredient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Ingredient not found")
		return
	}

	var req IngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Stock != nil && req.Stock.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_stock", "stock must not be negative")
		return
	}

	req.apply(ing)

	if err := h.db.UpdateIngredient(r.Context(), ing); err != nil {
		h.logger.Error("failed to update ingredient", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to update ingredient")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: ing})
}

type RestockRequest struct {
	Stock decimal.Decimal `json:"stock"`
}

// RestockIngredient sets a new stock level and ends the ingredient's current
// low-stock episode by clearing the alert latch.
func (h *Handler) RestockIngredient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RestockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Stock.IsNegative() {
		writeError(w, http.StatusBadRequest, "invalid_stock", "stock must not be negative")
		return
	}

	ing, err := h.db.RestockIngredient(r.Context(), id, req.Stock)
	if err != nil {
		if database.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "Ingredient not found")
			return
		}
		h.logger.Error("failed to restock ingredient", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to restock ingredient")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: ing})
}

func (h *Handler) DeleteIngredient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.db.DeleteIngredient(r.Context(), id); err != nil {
		h.logger.Error("failed to delete ingredient", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to delete ingredient")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	status := models.AlertStatus(r.URL.Query().Get("status"))

	alerts, err := h.db.ListStockAlerts(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list alerts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: alerts})
}

func (h *Handler) ReplayAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.alerts.ReplayAlert(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "replay_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: alert})
}

type MetricsResponse struct {
	metrics.Stats
	AlertQueueDepth int64 `json:"alert_queue_depth"`
	OrderQueueDepth int64 `json:"order_queue_depth"`
}

func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{Stats: h.metrics.GetStats()}

	if n, err := h.queue.AlertQueueSize(r.Context()); err == nil {
		resp.AlertQueueDepth = n
	} else {
		h.logger.Warn("failed to read alert queue size", zap.Error(err))
	}
	if n, err := h.queue.OrderQueueSize(r.Context()); err == nil {
		resp.OrderQueueDepth = n
	} else {
		h.logger.Warn("failed to read order queue size", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	product, err := h.db.Seed(r.Context())
	if err != nil {
		h.logger.Error("failed to seed catalog", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "database_error", "Failed to seed catalog")
		return
	}

	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: product})
}
