package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/inventory"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/order"
	"github.com/yemba/grocery-core/internal/order/dto"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
)

type HTTPHandler struct {
	uc  order.UseCase
	log logger.ZapLogger
}

func NewHTTPHandler(uc order.UseCase, log logger.ZapLogger) *HTTPHandler {
	return &HTTPHandler{uc: uc, log: log}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/{orderID}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{orderID}/transition", h.Transition)
	mux.HandleFunc("POST /api/orders/{orderID}/cancel", h.Cancel)
}

type lineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type createOrderRequest struct {
	Lines          []lineRequest `json:"lines"`
	DeliveryZoneID string        `json:"delivery_zone_id"`
	DeliveryPhone  string        `json:"delivery_phone"`
	CustomerNotes  string        `json:"customer_notes"`
}

type lineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	LineTotal int64  `json:"line_total"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	OrderNumber   string         `json:"order_number"`
	UserID        string         `json:"user_id"`
	Status        string         `json:"status"`
	Subtotal      int64          `json:"subtotal"`
	DeliveryFee   int64          `json:"delivery_fee"`
	Total         int64          `json:"total"`
	DeliveryPhone string         `json:"delivery_phone"`
	CourierID     *string        `json:"courier_id,omitempty"`
	Lines         []lineResponse `json:"lines"`
	CreatedAt     time.Time      `json:"created_at"`
	ConfirmedAt   *time.Time     `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if actor.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := &dto.CreateOrderInput{
		UserID:         actor.UserID,
		DeliveryZoneID: req.DeliveryZoneID,
		DeliveryPhone:  req.DeliveryPhone,
		CustomerNotes:  req.CustomerNotes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, l := range req.Lines {
		input.Lines = append(input.Lines, dto.LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	result, err := h.uc.CreateOrder(r.Context(), input)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	writeJSON(w, status, toOrderResponse(result.Order))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	o, err := h.uc.GetOrder(r.Context(), r.PathValue("orderID"))
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	// Customers only see their own orders.
	if actor.Role == auth.RoleCustomer && o.UserID != actor.UserID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type transitionRequest struct {
	Target string `json:"target"`
}

func (h *HTTPHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target status is required")
		return
	}
	h.transition(w, r, model.OrderStatus(req.Target))
}

// Cancel is the customer-facing shortcut for the CANCELLED transition.
func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.OrderCancelled)
}

func (h *HTTPHandler) transition(w http.ResponseWriter, r *http.Request, target model.OrderStatus) {
	actor := auth.ActorFromContext(r.Context())
	if actor.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	o, err := h.uc.Transition(r.Context(), r.PathValue("orderID"), target, actor)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type shortageLine struct {
	ProductID string `json:"product_id"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

func (h *HTTPHandler) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *inventory.InsufficientStockError
	var invalidTransition *order.InvalidTransitionError

	switch {
	case errors.As(err, &insufficient):
		lines := make([]shortageLine, 0, len(insufficient.Lines))
		for _, l := range insufficient.Lines {
			lines = append(lines, shortageLine{ProductID: l.ProductID, Requested: l.Requested, Available: l.Available})
		}
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "insufficient stock",
			"lines": lines,
		})
	case errors.As(err, &invalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
			"from":  string(invalidTransition.From),
			"to":    string(invalidTransition.To),
		})
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrProductUnavailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, inventory.ErrReservationMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case postgres.IsLockTimeout(err):
		writeError(w, http.StatusServiceUnavailable, "order busy, retry shortly")
	default:
		h.log.Error("order request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
		DeliveryPhone: o.DeliveryPhone,
		CourierID:     o.CourierID,
		CreatedAt:     o.CreatedAt,
		ConfirmedAt:   o.ConfirmedAt,
		CancelledAt:   o.CancelledAt,
		DeliveredAt:   o.DeliveredAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
