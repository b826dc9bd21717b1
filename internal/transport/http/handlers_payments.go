package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backtrail/internal/eventlog"
	"backtrail/internal/payments"
	"backtrail/internal/transport/http/shared"
	dErrors "backtrail/pkg/domain-errors"
	"backtrail/pkg/requestcontext"
)

// PaymentService is the interface the transport needs from the payments module.
type PaymentService interface {
	Create(ctx context.Context, input payments.CreateInput) (payments.Payment, error)
	ChangeRate(ctx context.Context, id, rate, note string) (payments.Payment, error)
	ChangeAmount(ctx context.Context, id, amount, note string) (payments.Payment, error)
	Delete(ctx context.Context, id, note string) (payments.Payment, error)
	Restore(ctx context.Context, id, note string) (payments.Payment, error)
	Get(ctx context.Context, id string) (payments.Payment, error)
	History(ctx context.Context, id string) ([]eventlog.Event, error)
}

type paymentHandler struct {
	service PaymentService
	logger  *slog.Logger
}

type createPaymentRequest struct {
	PaymentNo string `json:"payment_no"`
	Currency  string `json:"currency"`
	Rate      string `json:"rate"`
	Amount    string `json:"amount"`
	Note      string `json:"note"`
}

type changeFieldRequest struct {
	Value string `json:"value"`
	Note  string `json:"note"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *paymentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	payment, err := h.service.Create(r.Context(), payments.CreateInput{
		PaymentNo: req.PaymentNo,
		Currency:  req.Currency,
		Rate:      req.Rate,
		Amount:    req.Amount,
		Note:      req.Note,
	})
	if err != nil {
		h.logError(r, "create payment", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, payment)
}

func (h *paymentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

func (h *paymentHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *paymentHandler) handleChangeRate(w http.ResponseWriter, r *http.Request) {
	var req changeFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	payment, err := h.service.ChangeRate(r.Context(), chi.URLParam(r, "id"), req.Value, req.Note)
	if err != nil {
		h.logError(r, "change rate", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

func (h *paymentHandler) handleChangeAmount(w http.ResponseWriter, r *http.Request) {
	var req changeFieldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	payment, err := h.service.ChangeAmount(r.Context(), chi.URLParam(r, "id"), req.Value, req.Note)
	if err != nil {
		h.logError(r, "change amount", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

func (h *paymentHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	note := noteFromBody(r)
	payment, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), note)
	if err != nil {
		h.logError(r, "delete payment", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

func (h *paymentHandler) handleRestore(w http.ResponseWriter, r *http.Request) {
	note := noteFromBody(r)
	payment, err := h.service.Restore(r.Context(), chi.URLParam(r, "id"), note)
	if err != nil {
		h.logError(r, "restore payment", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

func (h *paymentHandler) logError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), op+" failed",
		"trace_id", requestcontext.TraceID(r.Context()),
		"error", err,
	)
}

// noteFromBody tolerates an absent body on DELETE/restore calls.
func noteFromBody(r *http.Request) string {
	var req noteRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req.Note
}
