package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/inventory"
	"github.com/yemba/grocery-core/internal/inventory/dto"
	inventoryUC "github.com/yemba/grocery-core/internal/inventory/usecase"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
)

type HTTPHandler struct {
	uc  inventory.UseCase
	log logger.ZapLogger
}

func NewHTTPHandler(uc inventory.UseCase, log logger.ZapLogger) *HTTPHandler {
	return &HTTPHandler{uc: uc, log: log}
}

// Register wires the inventory routes onto mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/inventory/check", h.CheckAvailability)
	mux.HandleFunc("POST /api/inventory/adjust", h.Adjust)
	mux.HandleFunc("POST /api/inventory/inbound", h.RecordInbound)
	mux.HandleFunc("GET /api/inventory/products/{productID}", h.GetProductInventory)
	mux.HandleFunc("GET /api/inventory/low-stock", h.ListLowStock)
	mux.HandleFunc("GET /api/inventory/movements", h.ListMovements)
}

type itemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type availabilityLine struct {
	ProductID  string `json:"product_id"`
	Requested  int64  `json:"requested"`
	Available  int64  `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

type checkResponse struct {
	Available bool               `json:"available"`
	Items     []availabilityLine `json:"items"`
}

func (h *HTTPHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []itemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	items, ok := toItemRequests(req.Items)
	if !ok {
		writeError(w, http.StatusBadRequest, "each item needs a product_id and a positive quantity")
		return
	}

	result, err := h.uc.CheckAvailable(r.Context(), items)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	resp := checkResponse{Available: result.Available}
	for _, l := range result.Items {
		resp.Items = append(resp.Items, availabilityLine{
			ProductID:  l.ProductID,
			Requested:  l.Requested,
			Available:  l.Available,
			Sufficient: l.Sufficient,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type inventoryItemResponse struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	OnHand       int64  `json:"on_hand"`
	Reserved     int64  `json:"reserved"`
	Available    int64  `json:"available"`
	ReorderPoint int64  `json:"reorder_point"`
	NeedsReorder bool   `json:"needs_reorder"`
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if !actor.IsWarehouse() {
		writeError(w, http.StatusForbidden, "staff or warehouse role required")
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Delta     int64  `json:"delta"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.Delta == 0 || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "product_id, a non-zero delta and a reason are required")
		return
	}

	item, err := h.uc.AdjustInventory(r.Context(), &dto.AdjustInventoryInput{
		ProductID: req.ProductID,
		Delta:     req.Delta,
		Reason:    req.Reason,
		ActorID:   actor.UserID,
	})
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) RecordInbound(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if !actor.IsWarehouse() {
		writeError(w, http.StatusForbidden, "staff or warehouse role required")
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int64  `json:"quantity"`
		Reference string `json:"reference"`
		Notes     string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "product_id and a positive quantity are required")
		return
	}

	item, err := h.uc.RecordInbound(r.Context(), &dto.RecordInboundInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Reference: req.Reference,
		Notes:     req.Notes,
		ActorID:   actor.UserID,
	})
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) GetProductInventory(w http.ResponseWriter, r *http.Request) {
	item, err := h.uc.GetProductInventory(r.Context(), r.PathValue("productID"))
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *HTTPHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	items, total, err := h.uc.ListLowStock(r.Context(), page, pageSize)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	resp := struct {
		Items []inventoryItemResponse `json:"items"`
		Total int                     `json:"total"`
	}{Total: total}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type movementResponse struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	MovementType string    `json:"movement_type"`
	Quantity     int64     `json:"quantity"`
	Reference    string    `json:"reference,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h *HTTPHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := &dto.MovementFilters{
		ProductID:    q.Get("product_id"),
		MovementType: q.Get("movement_type"),
		Reference:    q.Get("reference"),
	}
	filters.Page, filters.PageSize = pagination(r)
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be RFC3339")
			return
		}
		filters.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be RFC3339")
			return
		}
		filters.EndDate = &t
	}

	movements, total, err := h.uc.ListMovements(r.Context(), filters)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	resp := struct {
		Movements []movementResponse `json:"movements"`
		Total     int                `json:"total"`
	}{Total: total}
	for _, m := range movements {
		resp.Movements = append(resp.Movements, movementResponse{
			ID:           m.ID,
			ProductID:    m.ProductID,
			MovementType: m.MovementType,
			Quantity:     m.Quantity,
			Reference:    m.Reference,
			Notes:        m.Notes,
			CreatedAt:    m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "inventory item not found")
	case errors.Is(err, inventory.ErrNegativeStock):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrReservationMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, inventoryUC.ErrLockBusy), postgres.IsLockTimeout(err):
		writeError(w, http.StatusServiceUnavailable, "inventory busy, retry shortly")
	default:
		h.log.Error("inventory request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toItemRequests(in []itemRequest) ([]dto.ItemRequest, bool) {
	if len(in) == 0 {
		return nil, false
	}
	out := make([]dto.ItemRequest, 0, len(in))
	for _, it := range in {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, false
		}
		out = append(out, dto.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out, true
}

func toItemResponse(item *model.InventoryItem) inventoryItemResponse {
	return inventoryItemResponse{
		ID:           item.ID,
		ProductID:    item.ProductID,
		OnHand:       item.OnHand,
		Reserved:     item.Reserved,
		Available:    item.Available(),
		ReorderPoint: item.ReorderPoint,
		NeedsReorder: item.NeedsReorder(),
	}
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
