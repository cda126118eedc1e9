package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yemba/grocery-core/internal/auth"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
	"github.com/yemba/grocery-core/internal/procurement"
	"github.com/yemba/grocery-core/internal/procurement/dto"
)

type HTTPHandler struct {
	uc  procurement.UseCase
	log logger.ZapLogger
}

func NewHTTPHandler(uc procurement.UseCase, log logger.ZapLogger) *HTTPHandler {
	return &HTTPHandler{uc: uc, log: log}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/receipts", h.CreateReceipt)
	mux.HandleFunc("GET /api/receipts/{receiptID}", h.GetReceipt)
	mux.HandleFunc("POST /api/receipts/{receiptID}/validate", h.ValidateReceipt)
}

type receiptLineRequest struct {
	PurchaseOrderItemID string `json:"purchase_order_item_id"`
	QuantityAccepted    int64  `json:"quantity_accepted"`
	QuantityRejected    int64  `json:"quantity_rejected"`
	RejectionReason     string `json:"rejection_reason"`
}

type createReceiptRequest struct {
	PurchaseOrderID string               `json:"purchase_order_id"`
	ReceiptNumber   string               `json:"receipt_number"`
	ReceiptDate     *time.Time           `json:"receipt_date"`
	Notes           string               `json:"notes"`
	Items           []receiptLineRequest `json:"items"`
}

type receiptItemResponse struct {
	ID                  string `json:"id"`
	PurchaseOrderItemID string `json:"purchase_order_item_id"`
	ProductID           string `json:"product_id"`
	QuantityAccepted    int64  `json:"quantity_accepted"`
	QuantityRejected    int64  `json:"quantity_rejected"`
	RejectionReason     string `json:"rejection_reason,omitempty"`
}

type receiptResponse struct {
	ID              string                `json:"id"`
	ReceiptNumber   string                `json:"receipt_number"`
	PurchaseOrderID string                `json:"purchase_order_id"`
	Status          string                `json:"status"`
	ReceiptDate     time.Time             `json:"receipt_date"`
	Notes           string                `json:"notes,omitempty"`
	ValidatedAt     *time.Time            `json:"validated_at,omitempty"`
	ValidatedBy     *string               `json:"validated_by,omitempty"`
	Items           []receiptItemResponse `json:"items"`
}

func (h *HTTPHandler) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if !actor.IsWarehouse() {
		writeError(w, http.StatusForbidden, "staff or warehouse role required")
		return
	}

	var req createReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PurchaseOrderID == "" || req.ReceiptNumber == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "purchase_order_id, receipt_number and items are required")
		return
	}

	input := &dto.CreateReceiptInput{
		PurchaseOrderID: req.PurchaseOrderID,
		ReceiptNumber:   req.ReceiptNumber,
		Notes:           req.Notes,
		ActorID:         actor.UserID,
	}
	if req.ReceiptDate != nil {
		input.ReceiptDate = *req.ReceiptDate
	} else {
		input.ReceiptDate = time.Now().UTC()
	}
	for _, it := range req.Items {
		input.Items = append(input.Items, dto.ReceiptLineInput{
			PurchaseOrderItemID: it.PurchaseOrderItemID,
			QuantityAccepted:    it.QuantityAccepted,
			QuantityRejected:    it.QuantityRejected,
			RejectionReason:     it.RejectionReason,
		})
	}

	receipt, err := h.uc.CreateReceipt(r.Context(), input)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *HTTPHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.uc.GetReceipt(r.Context(), r.PathValue("receiptID"))
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

type validateResponse struct {
	ReceiptID        string `json:"receipt_id"`
	AlreadyValidated bool   `json:"already_validated"`
	ItemsProcessed   int    `json:"items_processed"`
	MovementsCreated int    `json:"movements_created"`
}

func (h *HTTPHandler) ValidateReceipt(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if !actor.IsWarehouse() {
		writeError(w, http.StatusForbidden, "staff or warehouse role required")
		return
	}

	result, err := h.uc.ValidateReceipt(r.Context(), r.PathValue("receiptID"), actor)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		ReceiptID:        result.ReceiptID,
		AlreadyValidated: result.AlreadyValidated,
		ItemsProcessed:   result.ItemsProcessed,
		MovementsCreated: result.MovementsCreated,
	})
}

func (h *HTTPHandler) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, procurement.ErrReceiptNotFound),
		errors.Is(err, procurement.ErrPurchaseOrderNotFound),
		errors.Is(err, procurement.ErrPurchaseOrderItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, procurement.ErrReceiptNotDraft),
		errors.Is(err, procurement.ErrDuplicateReceiptNumber):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, procurement.ErrReceiptEmpty),
		errors.Is(err, procurement.ErrQuantityExceedsPending):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case postgres.IsLockTimeout(err):
		writeError(w, http.StatusServiceUnavailable, "receipt busy, retry shortly")
	default:
		h.log.Error("procurement request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toReceiptResponse(receipt *model.GoodsReceipt) receiptResponse {
	resp := receiptResponse{
		ID:              receipt.ID,
		ReceiptNumber:   receipt.ReceiptNumber,
		PurchaseOrderID: receipt.PurchaseOrderID,
		Status:          receipt.Status,
		ReceiptDate:     receipt.ReceiptDate,
		Notes:           receipt.Notes,
		ValidatedAt:     receipt.ValidatedAt,
		ValidatedBy:     receipt.ValidatedBy,
	}
	for _, it := range receipt.Items {
		resp.Items = append(resp.Items, receiptItemResponse{
			ID:                  it.ID,
			PurchaseOrderItemID: it.PurchaseOrderItemID,
			ProductID:           it.ProductID,
			QuantityAccepted:    it.QuantityAccepted,
			QuantityRejected:    it.QuantityRejected,
			RejectionReason:     it.RejectionReason,
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
