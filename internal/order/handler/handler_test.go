package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/inventory"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/order"
	"github.com/yemba/grocery-core/internal/order/dto"
	"github.com/yemba/grocery-core/internal/platform/logger"
)

type stubUseCase struct {
	createResult  *dto.CreateOrderResult
	createErr     error
	getOrder      *model.Order
	getErr        error
	transitioned  *model.Order
	transitionTo  model.OrderStatus
	transitionBy  auth.Actor
	transitionErr error
}

func (s *stubUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*dto.CreateOrderResult, error) {
	return s.createResult, s.createErr
}

func (s *stubUseCase) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.getOrder, s.getErr
}

func (s *stubUseCase) Transition(ctx context.Context, orderID string, target model.OrderStatus, actor auth.Actor) (*model.Order, error) {
	s.transitionTo = target
	s.transitionBy = actor
	return s.transitioned, s.transitionErr
}

func (s *stubUseCase) CancelStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	return 0, nil
}

func newServer(uc order.UseCase) http.Handler {
	mux := http.NewServeMux()
	NewHTTPHandler(uc, logger.NewNop()).Register(mux)
	return auth.Middleware(mux)
}

func testOrder(status model.OrderStatus) *model.Order {
	return &model.Order{
		ID:          "ord-1",
		OrderNumber: "ORD-20260830-ABCD1234",
		UserID:      "user-1",
		Status:      status,
		Subtotal:    2500,
		DeliveryFee: 200,
		Total:       2700,
	}
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	srv := newServer(&stubUseCase{})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	uc := &stubUseCase{createResult: &dto.CreateOrderResult{Order: testOrder(model.OrderPendingConfirmation)}}
	srv := newServer(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"lines":[{"product_id":"p1","quantity":2}]}`))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ORD-20260830-ABCD1234", body["order_number"])
	assert.Equal(t, float64(2700), body["total"])
}

func TestCreateOrderIdempotentReplayReturnsOK(t *testing.T) {
	uc := &stubUseCase{createResult: &dto.CreateOrderResult{
		Order:            testOrder(model.OrderPendingConfirmation),
		AlreadyProcessed: true,
	}}
	srv := newServer(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"lines":[{"product_id":"p1","quantity":2}]}`))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInsufficientStockItemizesLines(t *testing.T) {
	uc := &stubUseCase{transitionErr: &inventory.InsufficientStockError{
		Lines: []inventory.LineShortage{{ProductID: "p1", Requested: 5, Available: 3}},
	}}
	srv := newServer(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/ord-1/transition",
		strings.NewReader(`{"target":"CONFIRMED"}`))
	req.Header.Set("X-User-ID", "staff-1")
	req.Header.Set("X-User-Role", auth.RoleStaff)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error string `json:"error"`
		Lines []struct {
			ProductID string `json:"product_id"`
			Requested int64  `json:"requested"`
			Available int64  `json:"available"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "insufficient stock", body.Error)
	require.Len(t, body.Lines, 1)
	assert.Equal(t, "p1", body.Lines[0].ProductID)
	assert.Equal(t, int64(3), body.Lines[0].Available)
}

func TestTransitionErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid transition", &order.InvalidTransitionError{From: model.OrderPendingConfirmation, To: model.OrderDelivered}, http.StatusConflict},
		{"not found", order.ErrOrderNotFound, http.StatusNotFound},
		{"permission denied", order.ErrPermissionDenied, http.StatusForbidden},
		{"reservation mismatch", inventory.ErrReservationMismatch, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(&stubUseCase{transitionErr: tc.err})

			req := httptest.NewRequest(http.MethodPost, "/api/orders/ord-1/transition",
				strings.NewReader(`{"target":"CONFIRMED"}`))
			req.Header.Set("X-User-ID", "staff-1")
			req.Header.Set("X-User-Role", auth.RoleStaff)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestCancelShortcutTargetsCancelled(t *testing.T) {
	uc := &stubUseCase{transitioned: testOrder(model.OrderCancelled)}
	srv := newServer(uc)

	req := httptest.NewRequest(http.MethodPost, "/api/orders/ord-1/cancel", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderCancelled, uc.transitionTo)
	assert.Equal(t, auth.RoleCustomer, uc.transitionBy.Role)
}

func TestGetOrderHidesOtherCustomers(t *testing.T) {
	uc := &stubUseCase{getOrder: testOrder(model.OrderConfirmed)}
	srv := newServer(uc)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	req.Header.Set("X-User-ID", "user-2")
	req.Header.Set("X-User-Role", auth.RoleCustomer)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders/ord-1", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-User-Role", auth.RoleCustomer)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
