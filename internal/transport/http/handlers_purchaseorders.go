package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backtrail/internal/eventlog"
	"backtrail/internal/purchaseorder"
	"backtrail/internal/transport/http/shared"
	dErrors "backtrail/pkg/domain-errors"
	"backtrail/pkg/requestcontext"
)

// PurchaseOrderService is the interface the transport needs from procurement.
type PurchaseOrderService interface {
	Create(ctx context.Context, input purchaseorder.CreateInput) (purchaseorder.PurchaseOrder, error)
	Approve(ctx context.Context, id, note string) (purchaseorder.PurchaseOrder, error)
	Delete(ctx context.Context, id, note string) (purchaseorder.PurchaseOrder, error)
	Get(ctx context.Context, id string) (purchaseorder.PurchaseOrder, error)
	History(ctx context.Context, id string) ([]eventlog.Event, error)
}

type purchaseOrderHandler struct {
	service PurchaseOrderService
	logger  *slog.Logger
}

type createOrderRequest struct {
	OrderNo  string `json:"order_no"`
	Supplier string `json:"supplier"`
	Total    string `json:"total"`
	Note     string `json:"note"`
}

func (h *purchaseOrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	order, err := h.service.Create(r.Context(), purchaseorder.CreateInput{
		OrderNo:  req.OrderNo,
		Supplier: req.Supplier,
		Total:    req.Total,
		Note:     req.Note,
	})
	if err != nil {
		h.logError(r, "create purchase order", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, order)
}

func (h *purchaseOrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, order)
}

func (h *purchaseOrderHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *purchaseOrderHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Approve(r.Context(), chi.URLParam(r, "id"), noteFromBody(r))
	if err != nil {
		h.logError(r, "approve purchase order", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, order)
}

func (h *purchaseOrderHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), noteFromBody(r))
	if err != nil {
		h.logError(r, "delete purchase order", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, order)
}

func (h *purchaseOrderHandler) logError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op+" failed",
		"trace_id", requestcontext.TraceID(r.Context()),
		"error", err,
	)
}
