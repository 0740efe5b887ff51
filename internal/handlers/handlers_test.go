package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-processing-system/internal/metrics"
	"order-processing-system/internal/models"
	"order-processing-system/internal/order"
)

type fakeProcessor struct {
	lines []models.OrderRequestLine
	ord   *models.Order
	err   error
}

func (f *fakeProcessor) ProcessOrder(ctx context.Context, lines []models.OrderRequestLine) (*models.Order, error) {
	f.lines = lines
	if f.err != nil {
		return nil, f.err
	}
	return f.ord, nil
}

type fakeOrderQueue struct {
	jobs       []models.QueuedOrder
	err        error
	alertDepth int64
}

func (f *fakeOrderQueue) EnqueueOrder(ctx context.Context, job models.QueuedOrder) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeOrderQueue) OrderQueueSize(ctx context.Context) (int64, error) {
	return int64(len(f.jobs)), nil
}

func (f *fakeOrderQueue) AlertQueueSize(ctx context.Context) (int64, error) {
	return f.alertDepth, nil
}

type fakeReplayer struct {
	alert *models.StockAlert
	err   error
}

func (f *fakeReplayer) ReplayAlert(ctx context.Context, alertID string) (*models.StockAlert, error) {
	return f.alert, f.err
}

func newTestHandler(p OrderProcessor, q OrderQueue, a AlertReplayer) *Handler {
	return New(nil, p, q, a, metrics.New(), zap.NewNop())
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func orderPayload(productID string, qty int) models.OrderRequest {
	return models.OrderRequest{Products: []models.OrderRequestLine{{ProductID: productID, Quantity: qty}}}
}

func TestCreateOrderSuccess(t *testing.T) {
	productID := uuid.New().String()
	proc := &fakeProcessor{ord: &models.Order{ID: "o1", Lines: []models.OrderLine{{OrderID: "o1", ProductID: productID, Quantity: 2}}}}
	h := newTestHandler(proc, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, orderPayload(productID, 2))

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, proc.lines, 1)
	assert.Equal(t, productID, proc.lines[0].ProductID)

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestCreateOrderInvalidJSON(t *testing.T) {
	h := newTestHandler(&fakeProcessor{}, &fakeOrderQueue{}, &fakeReplayer{})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	h.CreateOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderRejectsBadQuantity(t *testing.T) {
	h := newTestHandler(&fakeProcessor{}, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, orderPayload(uuid.New().String(), 0))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_quantity")
}

func TestCreateOrderRejectsBadProductID(t *testing.T) {
	h := newTestHandler(&fakeProcessor{}, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, orderPayload("not-a-uuid", 1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_product_id")
}

func TestCreateOrderEmptyProductListIsValid(t *testing.T) {
	proc := &fakeProcessor{ord: &models.Order{ID: "o1", Lines: []models.OrderLine{}}}
	h := newTestHandler(proc, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, models.OrderRequest{Products: []models.OrderRequestLine{}})

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateOrderInsufficientStockMapsTo422(t *testing.T) {
	proc := &fakeProcessor{err: &order.InsufficientStockError{IngredientName: "Beef"}}
	h := newTestHandler(proc, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, orderPayload(uuid.New().String(), 1))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient_stock")
	assert.Contains(t, rec.Body.String(), "Beef")
}

func TestCreateOrderUnknownProductMapsTo404(t *testing.T) {
	missing := uuid.New().String()
	proc := &fakeProcessor{err: &order.NotFoundError{ProductID: missing}}
	h := newTestHandler(proc, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, orderPayload(missing, 1))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "product_not_found")
}

func TestCreateOrderProcessingErrorMapsTo500Opaque(t *testing.T) {
	proc := &fakeProcessor{err: &order.ProcessingError{Reason: "update ingredient stock", Err: errors.New("connection reset")}}
	h := newTestHandler(proc, &fakeOrderQueue{}, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrder, orderPayload(uuid.New().String(), 1))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "order_processing_failed")
	// Internal details stay out of the response.
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestCreateOrderAsyncEnqueues(t *testing.T) {
	q := &fakeOrderQueue{}
	h := newTestHandler(&fakeProcessor{}, q, &fakeReplayer{})
	productID := uuid.New().String()

	rec := postJSON(t, h.CreateOrderAsync, orderPayload(productID, 3))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.jobs, 1)
	assert.NotEmpty(t, q.jobs[0].JobID)
	require.Len(t, q.jobs[0].Products, 1)
	assert.Equal(t, productID, q.jobs[0].Products[0].ProductID)
	assert.Contains(t, rec.Body.String(), q.jobs[0].JobID)
}

func TestCreateOrderAsyncValidatesBeforeEnqueue(t *testing.T) {
	q := &fakeOrderQueue{}
	h := newTestHandler(&fakeProcessor{}, q, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrderAsync, orderPayload(uuid.New().String(), -1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, q.jobs)
}

func TestCreateOrderAsyncQueueFailure(t *testing.T) {
	q := &fakeOrderQueue{err: errors.New("redis down")}
	h := newTestHandler(&fakeProcessor{}, q, &fakeReplayer{})

	rec := postJSON(t, h.CreateOrderAsync, orderPayload(uuid.New().String(), 1))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReplayAlertBadRequestOnError(t *testing.T) {
	h := newTestHandler(&fakeProcessor{}, &fakeOrderQueue{}, &fakeReplayer{err: errors.New("can only replay dead alerts, current status: pending")})

	req := httptest.NewRequest(http.MethodPost, "/alerts/a1/replay", nil)
	rec := httptest.NewRecorder()
	h.ReplayAlert(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "replay_failed")
}

func TestProductRequestValidation(t *testing.T) {
	ingredientID := uuid.New().String()

	cases := []struct {
		name string
		req  ProductRequest
		code string
	}{
		{"missing name", ProductRequest{}, "missing_fields"},
		{"bad ingredient id", ProductRequest{Name: "Burger", Recipe: []RecipeEntryRequest{{IngredientID: "nope"}}}, "invalid_ingredient_id"},
		{"ok", ProductRequest{Name: "Burger", Recipe: []RecipeEntryRequest{{IngredientID: ingredientID}}}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _ := tc.req.validate()
			assert.Equal(t, tc.code, code)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(&fakeProcessor{}, &fakeOrderQueue{}, &fakeReplayer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestGetMetrics(t *testing.T) {
	m := metrics.New()
	m.RecordOrderProcessed()
	m.RecordAlertFired()
	q := &fakeOrderQueue{alertDepth: 4}
	q.jobs = append(q.jobs, models.QueuedOrder{JobID: "j1"})
	h := New(nil, &fakeProcessor{}, q, &fakeReplayer{}, m, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.GetMetrics(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.OrdersProcessed)
	assert.Equal(t, int64(1), resp.AlertsFired)
	assert.Equal(t, int64(4), resp.AlertQueueDepth)
	assert.Equal(t, int64(1), resp.OrderQueueDepth)
}

func TestIngredientRequestApplyKeepsOmittedFields(t *testing.T) {
	ing := &models.Ingredient{
		Name:         "Beef",
		Unit:         "g",
		Stock:        decimal.NewFromInt(100),
		InitialStock: decimal.NewFromInt(200),
	}

	req := IngredientRequest{Name: "Ground Beef"}
	req.apply(ing)

	assert.Equal(t, "Ground Beef", ing.Name)
	assert.Equal(t, "g", ing.Unit)
	assert.Equal(t, "100", ing.Stock.String())
	assert.Equal(t, "200", ing.InitialStock.String())

	stock := decimal.NewFromInt(50)
	req = IngredientRequest{Stock: &stock}
	req.apply(ing)

	assert.Equal(t, "50", ing.Stock.String())
	assert.Equal(t, "200", ing.InitialStock.String())
}
